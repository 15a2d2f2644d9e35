package audit

import (
	"context"
	"log/slog"

	"github.com/nsrpetrol/pos-bridge/internal/config"
	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/payload"
)

// Recorder fans one delivery outcome out to every audit artifact. Artifact
// failures are logged and do not affect each other or the pipeline; losing
// one copy of the evidence is better than losing them all.
type Recorder struct {
	files  *Files
	csv    *CSVReport
	store  *Store // optional
	logger *slog.Logger
}

func NewRecorder(cfg config.AuditConfig, store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		files:  NewFiles(cfg),
		csv:    NewCSVReport(cfg.CSVReport),
		store:  store,
		logger: logger,
	}
}

// EnsureDirs bootstraps the audit directory tree at startup.
func (r *Recorder) EnsureDirs() error {
	return r.files.EnsureDirs()
}

// AppendRaw implements the port readers' raw log sink.
func (r *Recorder) AppendRaw(port, payload string) error {
	return r.files.AppendRaw(port, payload)
}

// SaveEvent persists the assembled transaction before delivery.
func (r *Recorder) SaveEvent(tx *domain.Transaction) error {
	return r.files.SaveEvent(tx)
}

// RecordOutcome persists one delivery attempt across all artifacts.
func (r *Recorder) RecordOutcome(tx *domain.Transaction, category payload.Category, success bool, statusCode int, responseBody string) error {
	if err := r.files.WriteOutcome(tx, success, statusCode, responseBody); err != nil {
		r.logger.Error("outcome file write failed", slog.String("guid", tx.GUID), slog.String("error", err.Error()))
	}
	if err := r.csv.Append(tx, success, statusCode); err != nil {
		r.logger.Error("csv report append failed", slog.String("guid", tx.GUID), slog.String("error", err.Error()))
	}
	if r.store != nil {
		snippet := truncate(responseBody, snippetLen)
		if err := r.store.Insert(context.Background(), tx, category, success, statusCode, snippet); err != nil {
			r.logger.Error("outcome index insert failed", slog.String("guid", tx.GUID), slog.String("error", err.Error()))
		}
	}
	return nil
}
