package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount with the configured currency symbol and two
// fractional digits.
func FormatMoney(symbol string, amount float64) string {
	return symbol + moneyPrinter.Sprintf("%.2f", amount)
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; margin: 40px; }
h1 { font-size: 24px; margin-bottom: 4px; }
.header { display: flex; justify-content: space-between; margin-bottom: 24px; }
.block { line-height: 1.5; }
.block h3 { margin: 0 0 4px 0; font-size: 13px; text-transform: uppercase; color: #666; }
table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
th { text-align: left; background: #f4f4f4; padding: 6px 8px; border-bottom: 2px solid #ddd; }
td { padding: 6px 8px; border-bottom: 1px solid #eee; }
.num { text-align: right; }
.summary td { border: none; padding: 3px 8px; }
.summary .label { text-align: right; color: #555; }
.summary .grand { font-weight: bold; border-top: 2px solid #222; }
.notes { margin-top: 16px; }
.terms { margin-top: 24px; font-size: 11px; color: #777; }
.status { display: inline-block; padding: 2px 10px; border: 1px solid #999; border-radius: 3px; }
</style>
</head>
<body>
<div class="header">
	<div class="block">
		<h1>INVOICE</h1>
		<span class="status">{{.Status}}</span>
	</div>
	<div class="block" style="text-align:right">
		<strong>{{.Company.Name}}</strong><br>
		{{with .Company.Address}}{{.}}<br>{{end}}
		{{with .Company.Phone}}{{.}}<br>{{end}}
		{{with .Company.Email}}{{.}}<br>{{end}}
		{{with .Company.Website}}{{.}}<br>{{end}}
		{{with .Company.TaxID}}Tax ID: {{.}}{{end}}
	</div>
</div>

<div class="header">
	<div class="block">
		<h3>Bill To</h3>
		<strong>{{.Customer.Name}}</strong><br>
		{{with .Customer.Address}}{{.}}<br>{{end}}
		{{with .Customer.Email}}{{.}}<br>{{end}}
		{{with .Customer.Phone}}{{.}}<br>{{end}}
		{{with .Customer.TaxID}}Tax ID: {{.}}{{end}}
	</div>
	<div class="block" style="text-align:right">
		<h3>Details</h3>
		Invoice No: <strong>{{.Number}}</strong><br>
		Invoice Date: {{date .InvoiceDate}}<br>
		Due Date: {{date .DueDate}}
	</div>
</div>

<table>
	<thead>
		<tr>
			<th>#</th><th>Item</th><th>Description</th>
			<th class="num">Qty</th><th class="num">Unit Price</th><th class="num">Total</th>
		</tr>
	</thead>
	<tbody>
		{{range $i, $line := .Lines}}
		<tr>
			<td>{{inc $i}}</td>
			<td>{{$line.ItemName}}</td>
			<td>{{$line.Description}}</td>
			<td class="num">{{$line.Quantity}}</td>
			<td class="num">{{money $line.UnitPrice}}</td>
			<td class="num">{{money $line.Total}}</td>
		</tr>
		{{end}}
	</tbody>
</table>

<table class="summary">
	<tr><td class="label">Subtotal</td><td class="num">{{money .Subtotal}}</td></tr>
	<tr><td class="label">Tax ({{percent .TaxRate}})</td><td class="num">{{money .TaxAmount}}</td></tr>
	<tr><td class="label">Discount ({{percent .DiscountRate}})</td><td class="num">{{money .DiscountAmount}}</td></tr>
	<tr class="grand"><td class="label grand">Total</td><td class="num grand">{{money .Total}}</td></tr>
	<tr><td class="label">Paid</td><td class="num">{{money .Paid}}</td></tr>
	<tr><td class="label">Balance</td><td class="num">{{money .Balance}}</td></tr>
</table>

{{if .Payments}}
<h3>Payments</h3>
<table>
	<thead>
		<tr><th>Date</th><th>Method</th><th>Reference</th><th class="num">Amount</th></tr>
	</thead>
	<tbody>
		{{range .Payments}}
		<tr>
			<td>{{date .At}}</td>
			<td>{{.Method}}</td>
			<td>{{.Reference}}</td>
			<td class="num">{{money .Amount}}</td>
		</tr>
		{{end}}
	</tbody>
</table>
{{end}}

{{with .Notes}}
<div class="notes"><h3>Notes</h3><p>{{.}}</p></div>
{{end}}

<div class="terms">
	Payment is due by the date shown above. Goods remain the property of the
	seller until paid for in full. Please quote the invoice number on all
	correspondence.
</div>
</body>
</html>`

// BuildInvoiceHTML renders the invoice snapshot into a printable HTML page.
func BuildInvoiceHTML(doc InvoiceDocument) (string, error) {
	tmpl, err := template.New("invoice").Funcs(template.FuncMap{
		"money": func(v float64) string {
			return FormatMoney(doc.CurrencySymbol, v)
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"percent": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v)
		},
		"inc": func(i int) int { return i + 1 },
	}).Parse(invoiceTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
