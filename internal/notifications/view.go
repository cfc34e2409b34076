package notifications

import (
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/money"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

const dateLayout = "02 Jan 2006"

var textPolicy = bluemonday.StrictPolicy()

// clean strips markup from user-supplied text. Templates escape the result
// again, so entities produced by the policy are decoded first.
func clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

type lineView struct {
	Meal       string
	Plan       string
	Vendor     string
	Quantity   int
	From       string
	To         string
	Skipped    []string
	Recipients []string
	Total      string
}

type addressView struct {
	Category string
	Line     string
}

type orderView struct {
	Brand         string
	OrderID       string
	OrderDate     string
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
	PaymentRef    string
	Total         string
	InvoiceURL    string
	VendorName    string
	Items         []lineView
	Addresses     []addressView
}

func buildView(brand string, order *models.Order, items []models.OrderItem) orderView {
	view := orderView{
		Brand:         brand,
		OrderID:       order.ID.String(),
		OrderDate:     order.OrderDate.UTC().Format(dateLayout),
		PaymentMethod: order.PaymentMethod.String(),
		Total:         money.Format(order.TotalAmount, order.Currency),
	}
	if order.Payment.GatewayPaymentID != nil {
		view.PaymentRef = *order.Payment.GatewayPaymentID
	}
	if order.InvoiceURL != nil {
		view.InvoiceURL = *order.InvoiceURL
	}
	for _, item := range items {
		line := lineView{
			Meal:     clean(item.MealName),
			Plan:     clean(item.PlanName),
			Vendor:   clean(item.VendorName),
			Quantity: item.Quantity,
			From:     item.StartDate.UTC().Format(dateLayout),
			To:       item.EndDate.UTC().Format(dateLayout),
			Total:    money.Format(item.ItemTotalPrice, order.Currency),
		}
		for _, day := range item.SkippedDates {
			line.Skipped = append(line.Skipped, day.UTC().Format(dateLayout))
		}
		for _, person := range item.PersonDetails {
			name := clean(person.Name)
			if person.PhoneNumber != "" {
				name += " (" + clean(person.PhoneNumber) + ")"
			}
			line.Recipients = append(line.Recipients, name)
		}
		view.Items = append(view.Items, line)
	}
	view.Addresses = addressesFor(order.DeliveryAddresses)
	return view
}

// addressesFor lists addresses in meal order: Breakfast, Lunch, Dinner.
func addressesFor(addresses types.DeliveryAddresses) []addressView {
	out := make([]addressView, 0, len(addresses))
	for category, address := range addresses {
		out = append(out, addressView{
			Category: string(category),
			Line:     clean(address.Street) + ", " + clean(address.City) + " " + clean(address.Zip),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return categoryRank(out[i].Category) < categoryRank(out[j].Category)
	})
	return out
}

func categoryRank(category string) int {
	switch enums.MealCategory(category) {
	case enums.MealCategoryBreakfast:
		return 0
	case enums.MealCategoryLunch:
		return 1
	case enums.MealCategoryDinner:
		return 2
	default:
		return 3
	}
}
