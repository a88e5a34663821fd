package parties

import "time"

// Customer is a billable party.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	TaxID     string    `json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy int64     `json:"created_by"`
}

// CustomerInput carries the writable customer fields.
type CustomerInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
	TaxID   string
}

// Filter narrows customer listings. Search matches name, email and phone.
type Filter struct {
	Search string
}
