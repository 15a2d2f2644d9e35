// Package assembly folds per-port record streams into complete transactions.
//
// Each port is an explicit two-state machine: Idle (no buffer) and Collecting
// (live buffer). Transitions are keyed by record shape in a fixed priority
// order; records that match nothing are consumed without effect. The
// assembler never rejects a bracket for incompleteness — missing metadata
// yields a transaction with default identity fields.
package assembly

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/record"
)

// Diagnostic describes what a record did to the state machine. Dropped and
// ignored records are explicit outcomes rather than silent control flow, so
// tests can assert on them.
type Diagnostic int

const (
	DiagNone Diagnostic = iota
	DiagStarted
	DiagMeta
	DiagCart
	DiagPayments
	DiagSummary
	DiagCompleted
	DiagDroppedNoBuffer
	DiagStrayEnd
	DiagIgnored
	DiagBadSubRecord
)

func (d Diagnostic) String() string {
	switch d {
	case DiagStarted:
		return "started"
	case DiagMeta:
		return "meta"
	case DiagCart:
		return "cart"
	case DiagPayments:
		return "payments"
	case DiagSummary:
		return "summary"
	case DiagCompleted:
		return "completed"
	case DiagDroppedNoBuffer:
		return "dropped-no-buffer"
	case DiagStrayEnd:
		return "stray-end"
	case DiagIgnored:
		return "ignored"
	case DiagBadSubRecord:
		return "bad-sub-record"
	default:
		return "none"
	}
}

// Buffer accumulates one in-flight transaction bracket for a port.
type Buffer struct {
	Meta       *record.Meta
	Items      []domain.LineEvent
	Voids      []domain.LineEvent
	Payments   []domain.Payment
	Summary    []domain.SummaryEntry
	SummaryMap map[string]decimal.Decimal
}

func newBuffer() *Buffer {
	return &Buffer{SummaryMap: make(map[string]decimal.Decimal)}
}

// Result is the outcome of applying one record. Tx is non-nil only when an
// end marker closed a live bracket.
type Result struct {
	Tx   *domain.Transaction
	Diag Diagnostic
}

// Assembler holds per-port state. It is owned by a single worker goroutine;
// no external synchronization is required.
type Assembler struct {
	store   string
	clock   domain.Clock
	logger  *slog.Logger
	buffers map[string]*Buffer // nil entry or absent key = Idle
}

func New(store string, clock domain.Clock, logger *slog.Logger) *Assembler {
	return &Assembler{
		store:   store,
		clock:   clock,
		logger:  logger,
		buffers: make(map[string]*Buffer),
	}
}

// Apply advances the port's state machine with one record. Handling is
// mutually exclusive per record: start marker, metadata, cart trail, payment
// summary, transaction summary, end marker, in that priority order.
func (a *Assembler) Apply(port string, rec record.Record) Result {
	if rec.CMD == record.CmdStartTransaction {
		// A start marker always opens a fresh buffer; any live bracket
		// on this port is abandoned without carry-over.
		a.buffers[port] = newBuffer()
		return Result{Diag: DiagStarted}
	}

	buf := a.buffers[port]
	if buf == nil {
		// The stream resynchronizes at the next start marker.
		if rec.CMD == record.CmdEndTransaction {
			return Result{Diag: DiagStrayEnd}
		}
		return Result{Diag: DiagDroppedNoBuffer}
	}

	switch {
	case rec.MetaData != nil:
		buf.Meta = rec.MetaData
		return Result{Diag: DiagMeta}

	case rec.HasCart():
		events, err := rec.CartEvents()
		if err != nil {
			a.logger.Warn("bad cart trail, dropping record", slog.String("port", port), slog.String("error", err.Error()))
			return Result{Diag: DiagBadSubRecord}
		}
		for _, ev := range events {
			if ev.Kind == domain.Void {
				buf.Voids = append(buf.Voids, ev)
			} else {
				buf.Items = append(buf.Items, ev)
			}
		}
		return Result{Diag: DiagCart}

	case rec.HasPayments():
		payments, err := rec.Payments()
		if err != nil {
			a.logger.Warn("bad payment summary, dropping record", slog.String("port", port), slog.String("error", err.Error()))
			return Result{Diag: DiagBadSubRecord}
		}
		buf.Payments = append(buf.Payments, payments...)
		return Result{Diag: DiagPayments}

	case rec.HasSummary():
		list, m, err := rec.Summary()
		if err != nil {
			a.logger.Warn("bad transaction summary, dropping record", slog.String("port", port), slog.String("error", err.Error()))
			return Result{Diag: DiagBadSubRecord}
		}
		// The summary replaces any earlier one for this bracket.
		buf.Summary = list
		buf.SummaryMap = m
		return Result{Diag: DiagSummary}

	case rec.CMD == record.CmdEndTransaction:
		tx := a.finalize(buf)
		a.buffers[port] = nil
		return Result{Tx: tx, Diag: DiagCompleted}
	}

	return Result{Diag: DiagIgnored}
}

// finalize synthesizes the immutable Transaction from a closed buffer.
func (a *Assembler) finalize(buf *Buffer) *domain.Transaction {
	meta := buf.Meta
	if meta == nil {
		meta = &record.Meta{}
	}
	localTime := meta.TimeStamp
	utcTime := ""
	if localTime != "" {
		utcTime = a.clock.ToUTC(localTime)
	}
	terminal := string(meta.TerminalNumber)
	seq := string(meta.SeqNumber)

	return &domain.Transaction{
		GUID:                domain.NewGUID(a.store, terminal, seq, utcTime),
		LocalTime:           localTime,
		UTCTime:             utcTime,
		Store:               a.store,
		Terminal:            terminal,
		Seq:                 seq,
		Type:                meta.TransactionType,
		Items:               buf.Items,
		Voids:               buf.Voids,
		Payments:            buf.Payments,
		Summary:             buf.Summary,
		SummaryMap:          buf.SummaryMap,
		EmployeeID:          meta.Operator,
		EmployeeName:        meta.Operator,
		LocationDescription: fmt.Sprintf("Store %s", a.store),
	}
}
