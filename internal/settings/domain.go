// Package settings exposes process-wide configuration stored as named
// key/value strings with documented defaults.
package settings

// Recognized setting names.
const (
	KeyInvoicePrefix         = "invoice_prefix"
	KeyInvoiceStartingNumber = "invoice_starting_number"
	KeyDefaultTaxRate        = "default_tax_rate"
	KeyDefaultDueDays        = "default_due_days"
	KeyCurrencySymbol        = "currency_symbol"
	KeyCompanyName           = "company_name"
	KeyCompanyAddress        = "company_address"
	KeyCompanyPhone          = "company_phone"
	KeyCompanyEmail          = "company_email"
	KeyCompanyWebsite        = "company_website"
	KeyCompanyTaxID          = "company_tax_id"
	KeyReminderDaysBefore    = "reminder_days_before"
)

// Defaults is the fallback table applied when a name has no stored value.
var Defaults = map[string]string{
	KeyInvoicePrefix:         "INV-",
	KeyInvoiceStartingNumber: "1001",
	KeyDefaultTaxRate:        "7.5",
	KeyDefaultDueDays:        "30",
	KeyCurrencySymbol:        "N",
	KeyCompanyName:           "Tillbook Trading Co.",
	KeyCompanyAddress:        "",
	KeyCompanyPhone:          "",
	KeyCompanyEmail:          "",
	KeyCompanyWebsite:        "",
	KeyCompanyTaxID:          "",
	KeyReminderDaysBefore:    "7,3,1",
}

// Company groups the company_* values used on rendered documents.
type Company struct {
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
	TaxID   string
}
