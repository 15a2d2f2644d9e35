// Package record defines the shape of one framed register record and
// normalizes its loosely-typed sub-records into domain types.
//
// Sub-records (cart trail, payment summary, transaction summary) arrive as a
// JSON array, a single JSON object, or a string containing either; all three
// forms normalize to a list before any downstream code sees them.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
)

// Commands recognized on the CMD field.
const (
	CmdStartTransaction = "StartTransaction"
	CmdEndTransaction   = "EndTransaction"
)

// Record is the union shape of one framed register record. Fields are
// optional; presence selects handling, in the assembler's priority order.
type Record struct {
	CMD                string          `json:"CMD"`
	MetaData           *Meta           `json:"metaData"`
	CartChangeTrail    json.RawMessage `json:"cartChangeTrail"`
	PaymentSummary     json.RawMessage `json:"paymentSummary"`
	TransactionSummary json.RawMessage `json:"transactionSummary"`
}

// Meta carries transaction identity from the register. Numeric fields show up
// as JSON numbers on some firmware revisions and strings on others.
type Meta struct {
	TimeStamp       string     `json:"timeStamp"`
	SeqNumber       FlexString `json:"transactionSeqNumber"`
	TerminalNumber  FlexString `json:"terminalNumber"`
	Operator        string     `json:"operator"`
	TransactionType string     `json:"transactionType"`
}

// Inbound pairs a decoded record with the port it arrived on.
type Inbound struct {
	Port   string
	Record Record
}

// Decode parses one frame payload into a Record. The payload must be a JSON
// object; anything else is an error the caller logs and drops.
func Decode(payload string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// HasCart reports whether a cart change trail is present. An explicit JSON
// null counts as absent.
func (r Record) HasCart() bool { return present(r.CartChangeTrail) }

// HasPayments reports whether a payment summary is present.
func (r Record) HasPayments() bool { return present(r.PaymentSummary) }

// HasSummary reports whether a transaction summary is present.
func (r Record) HasSummary() bool { return present(r.TransactionSummary) }

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// FlexString is a string that also accepts a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// flexList normalizes a raw sub-record into a list of objects, accepting a
// string-encoded JSON document, a single object, or an array.
func flexList(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("unwrap string-encoded sub-record: %w", err)
		}
		return flexList(json.RawMessage(inner))
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode sub-record object: %w", err)
		}
		return []map[string]any{obj}, nil
	case '[':
		var list []map[string]any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode sub-record array: %w", err)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("sub-record is neither object, array, nor string")
	}
}

// CartEvents decodes the cart change trail into line events. Missing prices
// default to 0, missing quantities to 1; eventType voidLineItem marks a void.
func (r Record) CartEvents() ([]domain.LineEvent, error) {
	entries, err := flexList(r.CartChangeTrail)
	if err != nil {
		return nil, err
	}
	events := make([]domain.LineEvent, 0, len(entries))
	for _, e := range entries {
		kind := domain.Add
		if strField(e, "eventType") == "voidLineItem" {
			kind = domain.Void
		}
		events = append(events, domain.LineEvent{
			Name:      strField(e, "itemName"),
			UnitPrice: decField(e, "price", decimal.Zero),
			Quantity:  intField(e, "quantity", 1),
			Kind:      kind,
		})
	}
	return events, nil
}

// Payments decodes the payment summary. The amount rides in a
// currency-prefixed details field; the tender description is free text.
func (r Record) Payments() ([]domain.Payment, error) {
	entries, err := flexList(r.PaymentSummary)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(entries))
	for _, e := range entries {
		payments = append(payments, domain.Payment{
			Amount:            decField(e, "details", decimal.Zero),
			TenderDescription: strField(e, "description"),
		})
	}
	return payments, nil
}

// Summary decodes the transaction summary into ordered entries plus the
// derived key -> amount map. Keys are upper-cased and trimmed; amounts are
// parsed with currency symbols and thousands separators stripped, and zero
// when unparsable.
func (r Record) Summary() ([]domain.SummaryEntry, map[string]decimal.Decimal, error) {
	entries, err := flexList(r.TransactionSummary)
	if err != nil {
		return nil, nil, err
	}
	list := make([]domain.SummaryEntry, 0, len(entries))
	m := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		desc := strField(e, "description")
		key := strings.ToUpper(strings.TrimSpace(desc))
		amount := parseAmount(strField(e, "details"))
		list = append(list, domain.SummaryEntry{Description: desc, Key: key, Amount: amount})
		m[key] = amount
	}
	return list, m, nil
}

func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", ""))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func strField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func intField(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		return def
	default:
		return def
	}
}

func decField(m map[string]any, key string, def decimal.Decimal) decimal.Decimal {
	switch v := m[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(v, "$", ""))
		if cleaned == "" {
			return def
		}
		if d, err := decimal.NewFromString(cleaned); err == nil {
			return d
		}
		return def
	default:
		return def
	}
}
