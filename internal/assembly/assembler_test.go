package assembly

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/record"
)

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	clock := domain.Clock{
		Loc:     loc,
		MinYear: 2023,
		Now:     func() time.Time { return time.Date(2025, 7, 16, 20, 0, 0, 0, time.UTC) },
		Logger:  slog.Default(),
	}
	return New("1001", clock, slog.Default())
}

func mustDecode(t *testing.T, payload string) record.Record {
	t.Helper()
	rec, err := record.Decode(payload)
	if err != nil {
		t.Fatalf("Decode(%q): %v", payload, err)
	}
	return rec
}

func TestBracketProducesOneTransaction(t *testing.T) {
	a := testAssembler(t)
	port := "COM3"

	steps := []struct {
		payload string
		diag    Diagnostic
	}{
		{`{"CMD":"StartTransaction"}`, DiagStarted},
		{`{"metaData":{"timeStamp":"2025-07-16T14:41:00","transactionSeqNumber":"877","terminalNumber":"02","operator":"OP15","transactionType":"Sale"}}`, DiagMeta},
		{`{"cartChangeTrail":[{"eventType":"addLineItem","itemName":"DM Banana24ct","price":0.89,"quantity":2}]}`, DiagCart},
		{`{"cartChangeTrail":{"eventType":"addLineItem","itemName":"B&M PT Casino NICE Uprt","price":1.73,"quantity":1}}`, DiagCart},
		{`{"paymentSummary":{"description":"CASH","details":"$5.00"}}`, DiagPayments},
		{`{"transactionSummary":[{"description":"Subtotal","details":"$3.51"},{"description":"Tax","details":"$0.11"},{"description":"Total Due","details":"$2.84"}]}`, DiagSummary},
	}
	for i, step := range steps {
		res := a.Apply(port, mustDecode(t, step.payload))
		if res.Diag != step.diag {
			t.Fatalf("step %d: diag = %v, want %v", i, res.Diag, step.diag)
		}
		if res.Tx != nil {
			t.Fatalf("step %d: unexpected transaction", i)
		}
	}

	res := a.Apply(port, mustDecode(t, `{"CMD":"EndTransaction"}`))
	if res.Diag != DiagCompleted {
		t.Fatalf("end diag = %v, want DiagCompleted", res.Diag)
	}
	tx := res.Tx
	if tx == nil {
		t.Fatal("no transaction emitted")
	}

	if tx.Store != "1001" {
		t.Errorf("Store = %q, want 1001 (forced)", tx.Store)
	}
	if tx.Terminal != "02" || tx.Seq != "877" || tx.Type != "Sale" {
		t.Errorf("identity = %q/%q/%q", tx.Terminal, tx.Seq, tx.Type)
	}
	if tx.UTCTime != "2025-07-16T18:41:00" {
		t.Errorf("UTCTime = %q", tx.UTCTime)
	}
	if tx.EmployeeID != "OP15" || tx.EmployeeName != "OP15" {
		t.Errorf("employee = %q/%q, want operator on both", tx.EmployeeID, tx.EmployeeName)
	}
	if tx.LocationDescription != "Store 1001" {
		t.Errorf("location = %q", tx.LocationDescription)
	}
	if len(tx.Items) != 2 || len(tx.Payments) != 1 || len(tx.Voids) != 0 {
		t.Fatalf("items/payments/voids = %d/%d/%d", len(tx.Items), len(tx.Payments), len(tx.Voids))
	}
	if tx.Items[0].Name != "DM Banana24ct" || tx.Items[1].Name != "B&M PT Casino NICE Uprt" {
		t.Errorf("item order not preserved: %q, %q", tx.Items[0].Name, tx.Items[1].Name)
	}
	if !tx.SummaryMap["TOTAL DUE"].Equal(decimal.RequireFromString("2.84")) {
		t.Errorf("TOTAL DUE = %s", tx.SummaryMap["TOTAL DUE"])
	}
	if tx.GUID != domain.NewGUID("1001", "02", "877", "2025-07-16T18:41:00") {
		t.Errorf("GUID not derived from coordinates: %s", tx.GUID)
	}

	// The port is Idle again; a second end marker is stray.
	res = a.Apply(port, mustDecode(t, `{"CMD":"EndTransaction"}`))
	if res.Diag != DiagStrayEnd || res.Tx != nil {
		t.Errorf("after close: diag = %v, tx = %v", res.Diag, res.Tx)
	}
}

func TestRecordsWithoutBufferAreDropped(t *testing.T) {
	a := testAssembler(t)

	res := a.Apply("COM3", mustDecode(t, `{"cartChangeTrail":[{"itemName":"X"}]}`))
	if res.Diag != DiagDroppedNoBuffer {
		t.Errorf("diag = %v, want DiagDroppedNoBuffer", res.Diag)
	}
	res = a.Apply("COM3", mustDecode(t, `{"CMD":"EndTransaction"}`))
	if res.Diag != DiagStrayEnd {
		t.Errorf("diag = %v, want DiagStrayEnd", res.Diag)
	}
}

func TestStartReplacesLiveBuffer(t *testing.T) {
	a := testAssembler(t)
	port := "COM4"

	a.Apply(port, mustDecode(t, `{"CMD":"StartTransaction"}`))
	a.Apply(port, mustDecode(t, `{"cartChangeTrail":[{"itemName":"Orphan","price":9.99}]}`))
	a.Apply(port, mustDecode(t, `{"CMD":"StartTransaction"}`))
	res := a.Apply(port, mustDecode(t, `{"CMD":"EndTransaction"}`))

	if res.Tx == nil {
		t.Fatal("no transaction emitted")
	}
	if len(res.Tx.Items) != 0 {
		t.Errorf("carried %d items across a restart, want 0", len(res.Tx.Items))
	}
}

func TestMissingMetaYieldsDefaults(t *testing.T) {
	a := testAssembler(t)
	port := "COM3"

	a.Apply(port, mustDecode(t, `{"CMD":"StartTransaction"}`))
	res := a.Apply(port, mustDecode(t, `{"CMD":"EndTransaction"}`))
	tx := res.Tx
	if tx == nil {
		t.Fatal("no transaction emitted")
	}
	if tx.Terminal != "" || tx.Seq != "" || tx.Type != "" || tx.EmployeeID != "" {
		t.Errorf("identity not defaulted: %+v", tx)
	}
	if tx.UTCTime != "" {
		t.Errorf("UTCTime = %q, want empty without meta timestamp", tx.UTCTime)
	}
	if tx.Store != "1001" {
		t.Errorf("Store = %q, want forced store", tx.Store)
	}
}

func TestPortsAssembleIndependently(t *testing.T) {
	a := testAssembler(t)

	a.Apply("COM3", mustDecode(t, `{"CMD":"StartTransaction"}`))
	a.Apply("COM4", mustDecode(t, `{"CMD":"StartTransaction"}`))
	a.Apply("COM3", mustDecode(t, `{"cartChangeTrail":[{"itemName":"A","price":1}]}`))
	a.Apply("COM4", mustDecode(t, `{"cartChangeTrail":[{"itemName":"B","price":2}]}`))

	res4 := a.Apply("COM4", mustDecode(t, `{"CMD":"EndTransaction"}`))
	res3 := a.Apply("COM3", mustDecode(t, `{"CMD":"EndTransaction"}`))

	if res3.Tx == nil || res4.Tx == nil {
		t.Fatal("both ports should emit")
	}
	if res3.Tx.Items[0].Name != "A" || res4.Tx.Items[0].Name != "B" {
		t.Errorf("cross-port contamination: %q / %q", res3.Tx.Items[0].Name, res4.Tx.Items[0].Name)
	}
}

func TestSummaryReplacesPrior(t *testing.T) {
	a := testAssembler(t)
	port := "COM3"

	a.Apply(port, mustDecode(t, `{"CMD":"StartTransaction"}`))
	a.Apply(port, mustDecode(t, `{"transactionSummary":[{"description":"Subtotal","details":"$1.00"}]}`))
	a.Apply(port, mustDecode(t, `{"transactionSummary":[{"description":"Subtotal","details":"$2.00"}]}`))
	res := a.Apply(port, mustDecode(t, `{"CMD":"EndTransaction"}`))

	if len(res.Tx.Summary) != 1 {
		t.Fatalf("summary entries = %d, want 1", len(res.Tx.Summary))
	}
	if !res.Tx.SummaryMap["SUBTOTAL"].Equal(decimal.RequireFromString("2.00")) {
		t.Errorf("SUBTOTAL = %s, want the replacement value", res.Tx.SummaryMap["SUBTOTAL"])
	}
}

func TestVoidRouting(t *testing.T) {
	a := testAssembler(t)
	port := "COM3"

	a.Apply(port, mustDecode(t, `{"CMD":"StartTransaction"}`))
	a.Apply(port, mustDecode(t, `{"cartChangeTrail":[{"eventType":"addLineItem","itemName":"Keep","price":1.00},{"eventType":"voidLineItem","itemName":"Gone","price":2.00}]}`))
	res := a.Apply(port, mustDecode(t, `{"CMD":"EndTransaction"}`))

	if len(res.Tx.Items) != 1 || len(res.Tx.Voids) != 1 {
		t.Fatalf("items/voids = %d/%d", len(res.Tx.Items), len(res.Tx.Voids))
	}
	if res.Tx.Voids[0].Name != "Gone" {
		t.Errorf("void = %q", res.Tx.Voids[0].Name)
	}
}

func TestUnrecognizedRecordIgnored(t *testing.T) {
	a := testAssembler(t)
	a.Apply("COM3", mustDecode(t, `{"CMD":"StartTransaction"}`))
	res := a.Apply("COM3", mustDecode(t, `{"somethingElse":true}`))
	if res.Diag != DiagIgnored {
		t.Errorf("diag = %v, want DiagIgnored", res.Diag)
	}
}
