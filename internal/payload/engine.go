package payload

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsrpetrol/pos-bridge/internal/domain"
)

// Engine builds wire payloads from assembled transactions. Deterministic
// given a transaction and a clock; the clock only feeds the sale shape, whose
// event timestamps report processing time rather than register time.
type Engine struct {
	now func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNow pins the engine clock, for tests.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build selects and constructs exactly one payload shape:
// empty items and payments -> CashOperation; declared type "refund" ->
// Refund; anything else -> Transaction.
func (e *Engine) Build(tx *domain.Transaction) (Envelope, Endpoint) {
	switch {
	case len(tx.Items) == 0 && len(tx.Payments) == 0:
		return e.buildCashOperation(tx), EndpointCash
	case strings.EqualFold(tx.Type, "refund"):
		return e.buildRefund(tx), EndpointRefund
	default:
		return e.buildTransaction(tx), EndpointTransaction
	}
}

// money rounds a monetary value to two places, half up, at the serialization
// boundary. Accumulations upstream stay unrounded.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func businessDate(ts string) string {
	if len(ts) < 10 {
		return ""
	}
	return strings.ReplaceAll(ts[:10], "-", "")
}

func orderNumber(seq string) int {
	n, err := strconv.Atoi(seq)
	if err != nil {
		return 0
	}
	return n
}

func header(tx *domain.Transaction, ts, txnType string) Header {
	return Header{
		TransactionGUID:          tx.GUID,
		TransactionDateTimeStamp: ts,
		TransactionType:          txnType,
		BusinessDate:             businessDate(ts),
		Location:                 Location{LocationID: tx.Store, Description: tx.LocationDescription},
		TransactionDevice:        Device{DeviceID: tx.Terminal, DeviceDescription: fmt.Sprintf("POS Terminal %s", tx.Terminal)},
		Employee:                 Employee{EmployeeID: tx.EmployeeID, EmployeeFullName: tx.EmployeeName},
	}
}

func (e *Engine) buildCashOperation(tx *domain.Transaction) Envelope {
	return Envelope{
		Model: "CashOperation",
		Event: CashEvent{
			Header: header(tx, tx.UTCTime, "New"),
			EventTypeDrawer: EventTypeDrawer{Drawer: Drawer{
				DrawerEventGUID:     tx.GUID,
				DrawerEventNumber:   orderNumber(tx.Seq),
				DrawerOperationType: "PaidOut",
				DrawerOpenTime:      tx.UTCTime,
				CashManagement:      []CashManagement{{Amount: 0.00}},
			}},
		},
	}
}

func (e *Engine) buildTransaction(tx *domain.Transaction) Envelope {
	subtotal, _ := tx.SummaryAmount("SUBTOTAL")
	tax := firstTax(tx.Summary)
	totalDue, ok := tx.SummaryAmount("TOTAL DUE")
	if !ok {
		totalDue = subtotal.Add(tax)
	}

	paid := decimal.Zero
	for _, p := range tx.Payments {
		if p.Amount.IsPositive() {
			paid = paid.Add(p.Amount)
		}
	}
	change := paid.Round(2).Sub(totalDue.Round(2)).Round(2)

	var items []OrderItem
	var discounts []DiscountEntry
	idx := 1
	for _, ev := range merged(tx) {
		isVoid := ev.Kind == domain.Void
		pid := fmt.Sprintf("PID%s_%d", tx.Seq, idx)
		idx++

		upper := strings.ToUpper(ev.Name)
		if (strings.Contains(upper, "PROMO") || strings.Contains(upper, "DISCOUNT")) && !isVoid {
			discounts = append(discounts, DiscountEntry{
				Value:       money(ev.UnitPrice.Mul(decimal.NewFromInt(int64(ev.Quantity))).Abs()),
				Description: ev.Name,
				Category:    "Promotion",
			})
			continue
		}

		state, itemType := "Added", "Sale"
		if isVoid {
			state, itemType = "Voided", "Voided"
		}
		items = append(items, orderItem(ev, pid, state, itemType, "General", tx.UTCTime))
	}

	var payments []PaymentEntry
	for _, p := range tx.Payments {
		amt := p.Amount.Round(2)
		if amt.IsZero() {
			continue
		}
		ch := 0.0
		if len(payments) == 0 {
			// Change is attributed to the first accepted tender only.
			ch = change.InexactFloat64()
		}
		status := "Accepted"
		if amt.IsNegative() {
			status = "Denied"
		}
		payments = append(payments, PaymentEntry{
			Timestamp:  tx.UTCTime,
			Status:     status,
			Amount:     amt.InexactFloat64(),
			Change:     ch,
			TenderType: ValueField{Value: MapTender(p.TenderDescription)},
		})
	}

	var taxes []TaxEntry
	if tax.Round(2).IsPositive() {
		taxes = []TaxEntry{{Amount: money(tax), Description: "Sales Tax"}}
	}

	hasVoids := len(tx.Voids) > 0
	orderState := "Closed"
	if hasVoids && allVoided(tx) {
		orderState = "Voided"
	}
	txnType := "New"
	if hasVoids {
		txnType = "Update"
	}

	// The sale shape reports processing time, not register time; the
	// register clock already fed the item and payment timestamps.
	now := e.now().UTC().Format(domain.TimeLayout)

	return Envelope{
		Model: "Transaction",
		Event: OrderEvent{
			Header: header(tx, now, txnType),
			EventTypeOrder: EventTypeOrder{Order: Order{
				OrderID:     tx.GUID,
				OrderNumber: orderNumber(tx.Seq),
				OrderTime:   now,
				OrderState:  orderState,
				OrderItem:   items,
				Total: OrderTotal{
					ItemPrice: money(subtotal),
					Tax:       taxes,
					Discount:  discounts,
				},
				OrderItemCount: len(items),
				Payment:        payments,
			}},
		},
	}
}

func (e *Engine) buildRefund(tx *domain.Transaction) Envelope {
	ts := tx.UTCTime

	var items []OrderItem
	rawSubtotal := decimal.Zero
	for i, ev := range tx.Items {
		pid := fmt.Sprintf("%s_%d", tx.Seq, i+1)
		items = append(items, orderItem(ev, pid, "Added", "Sale", "Refund", ts))
		rawSubtotal = rawSubtotal.Add(ev.UnitPrice.Round(2).Mul(decimal.NewFromInt(int64(ev.Quantity))))
	}

	refundTotal := decimal.Zero
	for _, p := range tx.Payments {
		refundTotal = refundTotal.Add(p.Amount)
	}

	var payments []PaymentEntry
	for _, p := range tx.Payments {
		if p.Amount.IsZero() {
			continue
		}
		payments = append(payments, PaymentEntry{
			Timestamp:  ts,
			Status:     "Accepted",
			Amount:     money(p.Amount),
			Change:     0.0,
			TenderType: ValueField{Value: MapTender(p.TenderDescription)},
		})
	}

	return Envelope{
		Model: "Refund",
		Event: RefundEvent{
			Header: header(tx, ts, "New"),
			EventTypeRefund: EventTypeRefund{Refund: Refund{
				RefundTotal: money(refundTotal),
				RefundTransactionType: RefundTransactionType{Order: RefundOrder{
					OrderID:        tx.GUID,
					OrderNumber:    orderNumber(tx.Seq),
					OrderTime:      ts,
					OrderState:     "Closed",
					OrderItem:      items,
					Total:          RefundTotal{ItemPrice: money(rawSubtotal), Tax: []TaxEntry{}},
					OrderItemCount: len(items),
					Payment:        payments,
				}},
			}},
		},
	}
}

func orderItem(ev domain.LineEvent, pid, state, itemType, category, ts string) OrderItem {
	sku := SKU{ProductName: ev.Name, ProductCode: pid}
	return OrderItem{
		OrderItemState: []OrderItemState{{ItemState: ValueField{Value: state}, Timestamp: ts}},
		MenuProduct: MenuProduct{
			MenuProductID: pid,
			Name:          ev.Name,
			MenuItem: []MenuItem{{
				ItemType:    itemType,
				Category:    category,
				ID:          pid + "_MI",
				Description: ev.Name,
				Pricing: []Pricing{{
					Tax:       []TaxEntry{},
					ItemPrice: money(ev.UnitPrice),
					Quantity:  ev.Quantity,
				}},
				SKU: sku,
			}},
			SKU: sku,
		},
	}
}

// firstTax returns the first summary amount whose key starts with TAX,
// following summary list order.
func firstTax(summary []domain.SummaryEntry) decimal.Decimal {
	for _, e := range summary {
		if strings.HasPrefix(e.Key, "TAX") {
			return e.Amount
		}
	}
	return decimal.Zero
}

func merged(tx *domain.Transaction) []domain.LineEvent {
	out := make([]domain.LineEvent, 0, len(tx.Items)+len(tx.Voids))
	out = append(out, tx.Items...)
	out = append(out, tx.Voids...)
	return out
}

func allVoided(tx *domain.Transaction) bool {
	for _, ev := range merged(tx) {
		if ev.Kind != domain.Void {
			return false
		}
	}
	return true
}
