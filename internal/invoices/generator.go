// Package invoices renders order invoices and stores them in object storage.
package invoices

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"path"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/money"
)

const (
	contentType   = "text/html; charset=utf-8"
	defaultPrefix = "invoices"
	dateLayout    = "02 Jan 2006"
)

// Uploader stores rendered documents and returns their URL.
type Uploader interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

// Generator renders and uploads invoices for confirmed orders.
type Generator struct {
	uploader Uploader
	prefix   string
	brand    string
	logg     *logger.Logger
	now      func() time.Time
	number   func() string
}

// NewGenerator builds a Generator writing under prefix.
func NewGenerator(uploader Uploader, prefix, brand string, logg *logger.Logger) (*Generator, error) {
	if uploader == nil {
		return nil, fmt.Errorf("invoice uploader required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Generator{
		uploader: uploader,
		prefix:   prefix,
		brand:    strings.TrimSpace(brand),
		logg:     logg,
		now:      time.Now,
		number:   func() string { return "INV-" + ulid.Make().String() },
	}, nil
}

// Generate renders the invoice for order and returns the uploaded URL.
func (g *Generator) Generate(ctx context.Context, order *models.Order, buyer *models.User) (string, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	number := g.number()
	doc, err := Render(g.viewFor(number, order, buyer))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}

	object := path.Join(g.prefix, order.ID.String(), number+".html")
	url, err := g.uploader.Upload(ctx, object, contentType, doc)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload invoice")
	}

	logCtx := g.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"invoice_number": number,
	})
	g.logg.Info(logCtx, "invoice uploaded")
	return url, nil
}

var strict = bluemonday.StrictPolicy()

func clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(value)))
}

// View is the data an invoice is rendered from.
type View struct {
	Brand         string
	Number        string
	IssuedAt      string
	OrderID       string
	OrderDate     string
	BilledTo      string
	BilledEmail   string
	PaymentMethod string
	PaymentRef    string
	PaidAt        string
	Lines         []LineView
	Total         string
}

// LineView is a single invoice row.
type LineView struct {
	Description string
	Vendor      string
	Period      string
	Quantity    int
	UnitPrice   string
	Amount      string
}

func (g *Generator) viewFor(number string, order *models.Order, buyer *models.User) View {
	view := View{
		Brand:         g.brand,
		Number:        number,
		IssuedAt:      g.now().UTC().Format(dateLayout),
		OrderID:       order.ID.String(),
		OrderDate:     order.OrderDate.UTC().Format(dateLayout),
		PaymentMethod: order.PaymentMethod.String(),
		Total:         money.Format(order.TotalAmount, order.Currency),
	}
	if buyer != nil {
		view.BilledTo = clean(buyer.Name)
		view.BilledEmail = strings.TrimSpace(buyer.Email)
	}
	if order.Payment.GatewayPaymentID != nil {
		view.PaymentRef = *order.Payment.GatewayPaymentID
	}
	if order.Payment.PaidAt != nil {
		view.PaidAt = order.Payment.PaidAt.UTC().Format(dateLayout)
	} else if order.PaymentConfirmedAt != nil {
		view.PaidAt = order.PaymentConfirmedAt.UTC().Format(dateLayout)
	}
	for _, item := range order.Items {
		view.Lines = append(view.Lines, LineView{
			Description: clean(item.MealName) + " (" + clean(item.PlanName) + ")",
			Vendor:      clean(item.VendorName),
			Period:      item.StartDate.UTC().Format(dateLayout) + " - " + item.EndDate.UTC().Format(dateLayout),
			Quantity:    item.Quantity,
			UnitPrice:   money.Format(item.UnitPrice(), order.Currency),
			Amount:      money.Format(item.ItemTotalPrice, order.Currency),
		})
	}
	return view
}

const invoiceHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Invoice {{.Number}}</title>
<style>
body{font-family:Arial,sans-serif;color:#222;margin:32px}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #ddd;padding:8px;text-align:left}
td.num,th.num{text-align:right}
</style></head>
<body>
<h1>{{if .Brand}}{{.Brand}} {{end}}Invoice</h1>
<p>Invoice number: <strong>{{.Number}}</strong><br>Issued: {{.IssuedAt}}<br>Order: #{{.OrderID}} ({{.OrderDate}})</p>
<p>Billed to: {{if .BilledTo}}{{.BilledTo}}{{else}}Customer{{end}}{{if .BilledEmail}}<br>{{.BilledEmail}}{{end}}</p>
<table>
<tr><th>Item</th><th>Vendor</th><th>Period</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
{{range .Lines}}<tr><td>{{.Description}}</td><td>{{.Vendor}}</td><td>{{.Period}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Amount}}</td></tr>
{{end}}<tr><td colspan="5" class="num"><strong>Total</strong></td><td class="num"><strong>{{.Total}}</strong></td></tr>
</table>
<p>Paid via {{.PaymentMethod}}{{if .PaymentRef}}, reference {{.PaymentRef}}{{end}}{{if .PaidAt}} on {{.PaidAt}}{{end}}.</p>
</body></html>`

var invoiceTemplate = template.Must(template.New("invoice.html").Parse(invoiceHTML))

// Render executes the invoice template.
func Render(view View) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
