package report

import "time"

// InvoiceDocument is the complete snapshot handed to the document sink.
// It carries everything needed to render the invoice without further lookups.
type InvoiceDocument struct {
	Number      string
	InvoiceDate time.Time
	DueDate     time.Time
	Status      string
	Notes       string

	Company  CompanyBlock
	Customer CustomerBlock

	Lines []DocumentLine

	Subtotal       float64
	TaxRate        float64
	TaxAmount      float64
	DiscountRate   float64
	DiscountAmount float64
	Total          float64
	Paid           float64
	Balance        float64

	Payments []DocumentPayment

	CurrencySymbol string
}

// CompanyBlock is the issuing party shown in the from section.
type CompanyBlock struct {
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
	TaxID   string
}

// CustomerBlock is the billed party shown in the to section.
type CustomerBlock struct {
	Name    string
	Email   string
	Phone   string
	Address string
	TaxID   string
}

// DocumentLine is one itemized row on the rendered invoice.
type DocumentLine struct {
	ItemName    string
	Description string
	Quantity    int64
	UnitPrice   float64
	Total       float64
}

// DocumentPayment is one row of the optional payment history table.
type DocumentPayment struct {
	At        time.Time
	Amount    float64
	Method    string
	Reference string
}
