package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/payload"
)

// Store indexes delivery outcomes in SQLite so the stats endpoint can answer
// without scanning the filesystem artifacts.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guid TEXT NOT NULL,
			store TEXT NOT NULL,
			terminal TEXT NOT NULL,
			seq TEXT NOT NULL,
			type TEXT NOT NULL,
			category TEXT NOT NULL,
			success INTEGER NOT NULL,
			status_code INTEGER NOT NULL,
			response_snippet TEXT,
			ts_utc TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_guid ON outcomes(guid)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_category ON outcomes(category)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_success ON outcomes(success)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

// Insert records one delivery attempt.
func (s *Store) Insert(ctx context.Context, tx *domain.Transaction, category payload.Category, success bool, statusCode int, snippet string) error {
	query := `INSERT INTO outcomes (guid, store, terminal, seq, type, category, success, status_code, response_snippet, ts_utc, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		tx.GUID, tx.Store, tx.Terminal, tx.Seq, tx.Type,
		string(category), boolInt(success), statusCode, snippet, tx.UTCTime, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Stats summarizes delivery attempts for the operational endpoint.
type Stats struct {
	Total      int            `json:"total"`
	Delivered  int            `json:"delivered"`
	Failed     int            `json:"failed"`
	ByCategory map[string]int `json:"by_category"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByCategory: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(success), 0) FROM outcomes`)
	if err := row.Scan(&stats.Total, &stats.Delivered); err != nil {
		return Stats{}, fmt.Errorf("count outcomes: %w", err)
	}
	stats.Failed = stats.Total - stats.Delivered

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM outcomes GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return Stats{}, fmt.Errorf("scan category row: %w", err)
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
