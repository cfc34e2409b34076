// Package notifications renders and sends the order confirmation emails.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/mailer"
)

const defaultBrand = "Aharraa"

// Notifier emails buyers and vendors about confirmed orders.
type Notifier struct {
	sender mailer.Sender
	brand  string
	logg   *logger.Logger
}

// NewNotifier wires the mail sender used for every notification.
func NewNotifier(sender mailer.Sender, brand string, logg *logger.Logger) (*Notifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	brand = strings.TrimSpace(brand)
	if brand == "" {
		brand = defaultBrand
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Notifier{sender: sender, brand: brand, logg: logg}, nil
}

// BuyerConfirmation sends the order summary, including the invoice link when
// the order has one.
func (n *Notifier) BuyerConfirmation(ctx context.Context, order *models.Order, buyer *models.User) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if buyer == nil || strings.TrimSpace(buyer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer email missing")
	}

	view := buildView(n.brand, order, order.Items)
	view.CustomerName = clean(buyer.Name)
	view.CustomerEmail = strings.TrimSpace(buyer.Email)

	htmlBody, textBody, err := buyerTemplate.render(view)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render buyer email")
	}
	return n.send(ctx, mailer.Message{
		To:      view.CustomerEmail,
		Subject: fmt.Sprintf("Order #%s Confirmation - %s", order.ID, n.brand),
		Text:    textBody,
		HTML:    htmlBody,
	})
}

// VendorNotification sends vendor only the lines it fulfils.
func (n *Notifier) VendorNotification(ctx context.Context, order *models.Order, vendor models.Vendor, buyer *models.User) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if strings.TrimSpace(vendor.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor email missing").
			WithDetails(map[string]any{"vendorId": vendor.ID.String()})
	}
	items := order.ItemsForVendor(vendor.ID)
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor has no lines on order").
			WithDetails(map[string]any{"vendorId": vendor.ID.String()})
	}

	view := buildView(n.brand, order, items)
	view.VendorName = clean(vendor.Name)
	if buyer != nil {
		view.CustomerName = clean(buyer.Name)
		view.CustomerEmail = strings.TrimSpace(buyer.Email)
	}
	if view.CustomerName == "" {
		view.CustomerName = firstRecipient(items)
	}

	htmlBody, textBody, err := vendorTemplate.render(view)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render vendor email")
	}
	return n.send(ctx, mailer.Message{
		To:      strings.TrimSpace(vendor.Email),
		Subject: fmt.Sprintf("New Order #%s - %s", order.ID, n.brand),
		Text:    textBody,
		HTML:    htmlBody,
	})
}

func (n *Notifier) send(ctx context.Context, msg mailer.Message) error {
	if err := n.sender.Send(ctx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send email")
	}
	return nil
}

func firstRecipient(items []models.OrderItem) string {
	for _, item := range items {
		for _, person := range item.PersonDetails {
			if name := clean(person.Name); name != "" {
				return name
			}
		}
	}
	return ""
}
