package notifications

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const buyerHTML = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>Thank you for your order, {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}}!</h2>
<p>Your payment was received and order <strong>#{{.OrderID}}</strong> placed on {{.OrderDate}} is confirmed.</p>
<table cellpadding="6" style="border-collapse:collapse;width:100%">
<tr style="background:#f4f4f4"><th align="left">Meal</th><th align="left">Plan</th><th align="left">Vendor</th><th>Qty</th><th align="left">Dates</th><th align="right">Amount</th></tr>
{{range .Items}}<tr>
<td>{{.Meal}}</td><td>{{.Plan}}</td><td>{{.Vendor}}</td><td align="center">{{.Quantity}}</td>
<td>{{.From}} to {{.To}}{{if .Skipped}}<br><small>Skipping {{range $i, $d := .Skipped}}{{if $i}}, {{end}}{{$d}}{{end}}</small>{{end}}</td>
<td align="right">{{.Total}}</td>
</tr>{{end}}
<tr><td colspan="5" align="right"><strong>Total</strong></td><td align="right"><strong>{{.Total}}</strong></td></tr>
</table>
<p>Payment method: {{.PaymentMethod}}{{if .PaymentRef}} (ref {{.PaymentRef}}){{end}}</p>
{{if .Addresses}}<h3>Delivery addresses</h3><ul>{{range .Addresses}}<li><strong>{{.Category}}:</strong> {{.Line}}</li>{{end}}</ul>{{end}}
{{if .InvoiceURL}}<p><a href="{{.InvoiceURL}}">Download your invoice</a></p>{{end}}
<p>{{.Brand}}</p>
</body></html>`

const buyerText = `Thank you for your order{{if .CustomerName}}, {{.CustomerName}}{{end}}!

Order #{{.OrderID}} placed on {{.OrderDate}} is confirmed.
{{range .Items}}
- {{.Meal}} / {{.Plan}} from {{.Vendor}} x{{.Quantity}}, {{.From}} to {{.To}}: {{.Total}}{{end}}

Total: {{.Total}}
Payment method: {{.PaymentMethod}}{{if .PaymentRef}} (ref {{.PaymentRef}}){{end}}
{{range .Addresses}}
{{.Category}}: {{.Line}}{{end}}
{{if .InvoiceURL}}
Invoice: {{.InvoiceURL}}{{end}}

{{.Brand}}
`

const vendorHTML = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>New order for {{.VendorName}}</h2>
<p>Order <strong>#{{.OrderID}}</strong> was confirmed on {{.OrderDate}}.</p>
<p>Customer: {{.CustomerName}}{{if .CustomerEmail}} ({{.CustomerEmail}}){{end}}</p>
<table cellpadding="6" style="border-collapse:collapse;width:100%">
<tr style="background:#f4f4f4"><th align="left">Meal</th><th align="left">Plan</th><th>Qty</th><th align="left">Dates</th><th align="left">Recipients</th></tr>
{{range .Items}}<tr>
<td>{{.Meal}}</td><td>{{.Plan}}</td><td align="center">{{.Quantity}}</td>
<td>{{.From}} to {{.To}}{{if .Skipped}}<br><small>Skipping {{range $i, $d := .Skipped}}{{if $i}}, {{end}}{{$d}}{{end}}</small>{{end}}</td>
<td>{{range $i, $r := .Recipients}}{{if $i}}<br>{{end}}{{$r}}{{end}}</td>
</tr>{{end}}
</table>
{{if .Addresses}}<h3>Deliver to</h3><ul>{{range .Addresses}}<li><strong>{{.Category}}:</strong> {{.Line}}</li>{{end}}</ul>{{end}}
<p>{{.Brand}}</p>
</body></html>`

const vendorText = `New order for {{.VendorName}}

Order #{{.OrderID}} was confirmed on {{.OrderDate}}.
Customer: {{.CustomerName}}{{if .CustomerEmail}} ({{.CustomerEmail}}){{end}}
{{range .Items}}
- {{.Meal}} / {{.Plan}} x{{.Quantity}}, {{.From}} to {{.To}}{{range .Recipients}}
  * {{.}}{{end}}{{end}}
{{range .Addresses}}
{{.Category}}: {{.Line}}{{end}}

{{.Brand}}
`

type emailTemplate struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

var (
	buyerTemplate = emailTemplate{
		html: htmltemplate.Must(htmltemplate.New("buyer.html").Parse(buyerHTML)),
		text: texttemplate.Must(texttemplate.New("buyer.txt").Parse(buyerText)),
	}
	vendorTemplate = emailTemplate{
		html: htmltemplate.Must(htmltemplate.New("vendor.html").Parse(vendorHTML)),
		text: texttemplate.Must(texttemplate.New("vendor.txt").Parse(vendorText)),
	}
)

func (t emailTemplate) render(view orderView) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := t.html.Execute(&htmlBuf, view); err != nil {
		return "", "", err
	}
	if err := t.text.Execute(&textBuf, view); err != nil {
		return "", "", err
	}
	return htmlBuf.String(), textBuf.String(), nil
}
