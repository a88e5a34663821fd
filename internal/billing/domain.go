package billing

import "time"

// Status is the derived lifecycle state of an invoice.
type Status string

const (
	StatusUnpaid  Status = "Unpaid"
	StatusPartial Status = "Partial"
	StatusPaid    Status = "Paid"
	// StatusOverdue is observed, never derived from payments. The scheduled
	// scan promotes Unpaid and Partial invoices past their due date.
	StatusOverdue Status = "Overdue"
)

// DeriveStatus maps the paid sum against the invoice total.
func DeriveStatus(paid, total float64) Status {
	switch {
	case paid <= 0:
		return StatusUnpaid
	case paid < total:
		return StatusPartial
	default:
		return StatusPaid
	}
}

// Invoice is the billing aggregate header.
type Invoice struct {
	ID             int64     `json:"id"`
	Number         string    `json:"number"`
	CustomerID     int64     `json:"customer_id"`
	InvoiceDate    time.Time `json:"invoice_date"`
	DueDate        time.Time `json:"due_date"`
	Subtotal       float64   `json:"subtotal"`
	TaxRate        float64   `json:"tax_rate"`
	TaxAmount      float64   `json:"tax_amount"`
	DiscountRate   float64   `json:"discount_rate"`
	DiscountAmount float64   `json:"discount_amount"`
	Total          float64   `json:"total"`
	Status         Status    `json:"status"`
	Notes          string    `json:"notes"`
	CreatedBy      int64     `json:"created_by"`
}

// InvoiceLine is one immutable line of an invoice. UnitPrice is captured at
// creation and never tracks later item price changes.
type InvoiceLine struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	ItemID      int64   `json:"item_id"`
	ItemName    string  `json:"item_name,omitempty"`
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Payment is one append-only payment record against an invoice.
type Payment struct {
	ID         int64     `json:"id"`
	InvoiceID  int64     `json:"invoice_id"`
	At         time.Time `json:"at"`
	Amount     float64   `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference"`
	Note       string    `json:"note"`
	RecordedBy int64     `json:"recorded_by"`
}

// LineInput is one requested invoice line.
type LineInput struct {
	ItemID      int64
	Description string
	Quantity    int64
	UnitPrice   float64
}

// CreateInvoiceInput carries the invoice creation command.
type CreateInvoiceInput struct {
	CustomerID   int64
	Lines        []LineInput
	InvoiceDate  time.Time
	DueDate      time.Time
	TaxRate      float64
	DiscountRate float64
	Notes        string
}

// PaymentInput carries the payment recording command. A zero At defaults to
// now; a blank Reference gets a generated one.
type PaymentInput struct {
	Amount    float64
	Method    string
	Reference string
	At        time.Time
	Note      string
}

// SearchFilter narrows invoice searches. Status "All" or empty matches every
// status; Term matches number or customer name; date bounds are inclusive.
type SearchFilter struct {
	Term       string
	Status     string
	From       time.Time
	To         time.Time
	CustomerID int64
}

// InvoiceSummary is one search result row, joined to the customer.
type InvoiceSummary struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	InvoiceDate  time.Time `json:"invoice_date"`
	DueDate      time.Time `json:"due_date"`
	Total        float64   `json:"total"`
	Status       Status    `json:"status"`
}

// CustomerBlock carries the customer fields joined onto an invoice header.
type CustomerBlock struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	TaxID   string `json:"tax_id"`
}

// InvoiceHeader is an invoice with its customer block.
type InvoiceHeader struct {
	Invoice
	Customer CustomerBlock `json:"customer"`
}

// InvoiceDetails is the full aggregate view.
type InvoiceDetails struct {
	Header   InvoiceHeader `json:"header"`
	Lines    []InvoiceLine `json:"lines"`
	Payments []Payment     `json:"payments"`
	Paid     float64       `json:"paid"`
	Balance  float64       `json:"balance"`
}
