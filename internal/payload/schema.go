// Package payload transforms an assembled transaction into one of the three
// ingestion API message shapes: CashOperation, Transaction, or Refund. The
// structs here mirror the remote schema field for field, including its mixed
// casing; do not "fix" the tags.
package payload

// Endpoint selects which ingestion API route a payload is posted to.
type Endpoint int

const (
	EndpointCash Endpoint = iota
	EndpointTransaction
	EndpointRefund
)

func (e Endpoint) String() string {
	switch e {
	case EndpointCash:
		return "cash"
	case EndpointRefund:
		return "refund"
	default:
		return "transaction"
	}
}

// Envelope is the outer message: a model tag plus the event body.
type Envelope struct {
	Model string `json:"model"`
	Event any    `json:"Event"`
}

// Header carries the identity fields common to all three event shapes.
type Header struct {
	TransactionGUID          string   `json:"TransactionGUID"`
	TransactionDateTimeStamp string   `json:"TransactionDateTimeStamp"`
	TransactionType          string   `json:"TransactionType"`
	BusinessDate             string   `json:"BusinessDate"`
	Location                 Location `json:"Location"`
	TransactionDevice        Device   `json:"TransactionDevice"`
	Employee                 Employee `json:"Employee"`
}

type Location struct {
	LocationID  string `json:"LocationID"`
	Description string `json:"Description"`
}

type Device struct {
	DeviceID          string `json:"DeviceID"`
	DeviceDescription string `json:"DeviceDescription"`
}

type Employee struct {
	EmployeeID       string `json:"EmployeeID"`
	EmployeeFullName string `json:"EmployeeFullName"`
}

// ValueField wraps enum-like strings the schema nests under "value".
type ValueField struct {
	Value string `json:"value"`
}

// CashEvent is the drawer paid-out event body.
type CashEvent struct {
	Header
	EventTypeDrawer EventTypeDrawer `json:"EventTypeDrawer"`
}

type EventTypeDrawer struct {
	Drawer Drawer `json:"Drawer"`
}

type Drawer struct {
	DrawerEventGUID     string           `json:"DrawerEventGUID"`
	DrawerEventNumber   int              `json:"DrawerEventNumber"`
	DrawerOperationType string           `json:"DrawerOperationType"`
	DrawerOpenTime      string           `json:"DrawerOpenTime"`
	CashManagement      []CashManagement `json:"CashManagement"`
}

type CashManagement struct {
	Amount float64 `json:"Amount"`
}

// OrderEvent is the sale/void event body.
type OrderEvent struct {
	Header
	EventTypeOrder EventTypeOrder `json:"EventTypeOrder"`
}

type EventTypeOrder struct {
	Order Order `json:"Order"`
}

type Order struct {
	OrderID        string         `json:"OrderID"`
	OrderNumber    int            `json:"OrderNumber"`
	OrderTime      string         `json:"OrderTime"`
	OrderState     string         `json:"OrderState"`
	OrderItem      []OrderItem    `json:"OrderItem"`
	Total          OrderTotal     `json:"Total"`
	OrderItemCount int            `json:"OrderItemCount"`
	Payment        []PaymentEntry `json:"Payment"`
}

type OrderTotal struct {
	ItemPrice float64         `json:"ItemPrice"`
	Tax       []TaxEntry      `json:"Tax"`
	Discount  []DiscountEntry `json:"Discount"`
}

type OrderItem struct {
	OrderItemState []OrderItemState `json:"OrderItemState"`
	MenuProduct    MenuProduct      `json:"MenuProduct"`
}

type OrderItemState struct {
	ItemState ValueField `json:"ItemState"`
	Timestamp string     `json:"Timestamp"`
}

type MenuProduct struct {
	MenuProductID string     `json:"menuProductID"`
	Name          string     `json:"name"`
	MenuItem      []MenuItem `json:"MenuItem"`
	SKU           SKU        `json:"SKU"`
}

type MenuItem struct {
	ItemType    string    `json:"ItemType"`
	Category    string    `json:"Category"`
	ID          string    `json:"iD"`
	Description string    `json:"Description"`
	Pricing     []Pricing `json:"Pricing"`
	SKU         SKU       `json:"SKU"`
}

type Pricing struct {
	Tax       []TaxEntry `json:"Tax"`
	ItemPrice float64    `json:"ItemPrice"`
	Quantity  int        `json:"Quantity"`
}

type SKU struct {
	ProductName string `json:"productName"`
	ProductCode string `json:"productCode"`
}

type PaymentEntry struct {
	Timestamp  string     `json:"Timestamp"`
	Status     string     `json:"Status"`
	Amount     float64    `json:"Amount"`
	Change     float64    `json:"Change"`
	TenderType ValueField `json:"TenderType"`
}

type TaxEntry struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"Description"`
}

type DiscountEntry struct {
	Value       float64 `json:"Value"`
	Description string  `json:"Description"`
	Category    string  `json:"Category"`
}

// RefundEvent is the refund event body. Its order total carries no discount
// list; the remote schema differs from the sale shape there.
type RefundEvent struct {
	Header
	EventTypeRefund EventTypeRefund `json:"EventTypeRefund"`
}

type EventTypeRefund struct {
	Refund Refund `json:"Refund"`
}

type Refund struct {
	RefundTotal           float64               `json:"RefundTotal"`
	RefundTransactionType RefundTransactionType `json:"RefundTransactionType"`
}

type RefundTransactionType struct {
	Order RefundOrder `json:"Order"`
}

type RefundOrder struct {
	OrderID        string         `json:"OrderID"`
	OrderNumber    int            `json:"OrderNumber"`
	OrderTime      string         `json:"OrderTime"`
	OrderState     string         `json:"OrderState"`
	OrderItem      []OrderItem    `json:"OrderItem"`
	Total          RefundTotal    `json:"Total"`
	OrderItemCount int            `json:"OrderItemCount"`
	Payment        []PaymentEntry `json:"Payment"`
}

type RefundTotal struct {
	ItemPrice float64    `json:"ItemPrice"`
	Tax       []TaxEntry `json:"Tax"`
}
