// Package domain holds the core types shared across the bridge pipeline.
package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind distinguishes line items added to a cart from voided ones.
type EventKind int

const (
	Add EventKind = iota
	Void
)

func (k EventKind) String() string {
	if k == Void {
		return "void"
	}
	return "add"
}

// LineEvent is one cart change: an item added or voided at the register.
type LineEvent struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Kind      EventKind       `json:"-"`
}

// Payment is one tender applied to a transaction, with the free-text
// description the register printed for it.
type Payment struct {
	Amount            decimal.Decimal `json:"amount"`
	TenderDescription string          `json:"tenderType"`
}

// SummaryEntry is one declared total line (subtotal, tax, total due, ...).
// Key is the upper-cased, trimmed description; Amount is the parsed value
// with currency symbols and thousands separators stripped, zero when
// unparsable. Entry order follows the register output.
type SummaryEntry struct {
	Description string          `json:"description"`
	Key         string          `json:"-"`
	Amount      decimal.Decimal `json:"-"`
}

// Transaction is one logically complete register transaction, assembled from
// a Start...End bracket of records. Immutable after assembly.
type Transaction struct {
	GUID      string `json:"guid"`
	LocalTime string `json:"ts_local"`
	UTCTime   string `json:"ts_utc"`
	Store     string `json:"store"`
	Terminal  string `json:"terminal"`
	Seq       string `json:"seq"`
	Type      string `json:"type"`

	Items    []LineEvent `json:"items"`
	Voids    []LineEvent `json:"voids"`
	Payments []Payment   `json:"payments"`

	Summary    []SummaryEntry             `json:"transactionSummary"`
	SummaryMap map[string]decimal.Decimal `json:"summary_map"`

	EmployeeID          string `json:"employee_id"`
	EmployeeName        string `json:"employee_name"`
	LocationDescription string `json:"location_desc"`
}

// NewGUID derives the transaction identifier from its logical coordinates so
// that re-assembly of the same bracket yields the same id. SHA-1 namespace
// hashing in the URL namespace, i.e. a version 5 UUID.
func NewGUID(store, terminal, seq, utcTime string) string {
	name := fmt.Sprintf("%s-%s-%s-%s", store, terminal, seq, utcTime)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// SummaryAmount looks up a normalized summary key, reporting presence.
func (t *Transaction) SummaryAmount(key string) (decimal.Decimal, bool) {
	v, ok := t.SummaryMap[key]
	return v, ok
}
