package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
)

var csvHeader = []string{"ts_utc", "guid", "store", "terminal", "seq", "type", "result", "status_code"}

// CSVReport appends one row per delivery attempt to the cumulative
// acceptance report, writing the header when the file is first created.
type CSVReport struct {
	path string
}

func NewCSVReport(path string) *CSVReport {
	return &CSVReport{path: path}
}

func (r *CSVReport) Append(tx *domain.Transaction, success bool, statusCode int) error {
	_, statErr := os.Stat(r.path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv report: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	result := "failed"
	if success {
		result = "success"
	}
	row := []string{tx.UTCTime, tx.GUID, tx.Store, tx.Terminal, tx.Seq, tx.Type, result, strconv.Itoa(statusCode)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}
