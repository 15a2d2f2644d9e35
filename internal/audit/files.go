// Package audit persists durable evidence of everything the bridge saw and
// did: per-port raw frame logs, per-transaction event JSON, date-partitioned
// copies of each delivery attempt, a cumulative CSV acceptance report, and a
// sqlite outcome index for the stats endpoint.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nsrpetrol/pos-bridge/internal/config"
	"github.com/nsrpetrol/pos-bridge/internal/domain"
)

const snippetLen = 200

// Files writes the filesystem audit artifacts.
type Files struct {
	cfg config.AuditConfig
	now func() time.Time
}

func NewFiles(cfg config.AuditConfig) *Files {
	return &Files{cfg: cfg, now: time.Now}
}

// EnsureDirs creates the audit directory tree.
func (f *Files) EnsureDirs() error {
	for _, dir := range []string{f.cfg.LogDir, f.cfg.EventsDir, f.cfg.TransactionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir %s: %w", dir, err)
		}
	}
	return nil
}

// AppendRaw appends one timestamped frame payload to the port's raw log.
func (f *Files) AppendRaw(port, payload string) error {
	path := filepath.Join(f.cfg.LogDir, fmt.Sprintf("pos_transactions_%s.log", port))
	line := fmt.Sprintf("%s %s\n", f.now().UTC().Format(time.RFC3339Nano), payload)
	return appendFile(path, line)
}

// SaveEvent writes the assembled transaction as JSON, keyed by sequence and
// GUID, before any delivery attempt is made.
func (f *Files) SaveEvent(tx *domain.Transaction) error {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}
	path := filepath.Join(f.cfg.EventsDir, txKey(tx)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transaction event: %w", err)
	}
	return nil
}

// WriteOutcome files a date-partitioned copy of the transaction under
// sent/ or failed/ and appends a one-line delivery record next to it.
func (f *Files) WriteOutcome(tx *domain.Transaction, success bool, statusCode int, responseBody string) error {
	y, m, d := f.datePart(tx.UTCTime)
	bucket := "failed"
	if success {
		bucket = "sent"
	}
	dir := filepath.Join(f.cfg.TransactionsDir, y, m, d, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create outcome dir: %w", err)
	}

	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, txKey(tx)+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write transaction copy: %w", err)
	}

	snippet := strings.ReplaceAll(truncate(responseBody, snippetLen), "\n", " ")
	line := fmt.Sprintf("%s %s %d %s\n", f.now().UTC().Format(time.RFC3339Nano), txKey(tx), statusCode, snippet)
	return appendFile(filepath.Join(dir, bucket+".log"), line)
}

// datePart splits the transaction's UTC date for partitioning, falling back
// to the current date when the transaction carries no usable timestamp.
func (f *Files) datePart(ts string) (string, string, string) {
	if len(ts) >= 10 {
		parts := strings.SplitN(ts[:10], "-", 3)
		if len(parts) == 3 {
			return parts[0], parts[1], parts[2]
		}
	}
	now := f.now().UTC()
	return now.Format("2006"), now.Format("01"), now.Format("02")
}

func txKey(tx *domain.Transaction) string {
	return fmt.Sprintf("%s_%s", tx.Seq, tx.GUID)
}

func appendFile(path, line string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
