package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/Hynox-org/aharraa-server/internal/cart"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Translate turns a checkout payload into a pending order with snapshot
// lines. It touches no storage; every structural problem is reported in one
// validation error keyed by field.
func Translate(actorID uuid.UUID, req Request, now time.Time) (*models.Order, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := authorize(actorID, req); err != nil {
		return nil, err
	}

	problems := pkgerrors.Fields{}
	addValidationErrors(problems, validate.Struct(req))

	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil && req.PaymentMethod != "" {
		problems.Add("paymentMethod", "must be one of COD, CC, UPI")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Currency))
	if code != "" {
		if _, err := currency.ParseISO(code); err != nil || len(code) != 3 {
			problems.Add("currency", "must be an ISO 4217 code")
		}
	}

	if req.CheckoutData.CheckoutDate != "" {
		if _, ok := parseDate(req.CheckoutData.CheckoutDate); !ok {
			problems.Add("checkoutData.checkoutDate", "must be an ISO 8601 date")
		}
	}

	addresses := types.DeliveryAddresses{}
	for raw, address := range req.CheckoutData.DeliveryAddresses {
		category, err := enums.ParseMealCategory(raw)
		field := "checkoutData.deliveryAddresses." + raw
		if err != nil {
			problems.Add(field, "must be Breakfast, Lunch or Dinner")
			continue
		}
		if !address.IsComplete() {
			problems.Add(field, "address is incomplete")
			continue
		}
		addresses[category] = types.DeliveryAddress{
			Street: strings.TrimSpace(address.Street),
			City:   strings.TrimSpace(address.City),
			Zip:    strings.TrimSpace(address.Zip),
		}
	}

	items := make([]models.OrderItem, 0, len(req.CheckoutData.Items))
	lineSum := decimal.Zero
	seenLines := map[string]int{}
	for i, line := range req.CheckoutData.Items {
		prefix := fmt.Sprintf("checkoutData.items[%d]", i)
		if first, dup := seenLines[line.ID]; dup && line.ID != "" {
			problems.Add(prefix+".id", fmt.Sprintf("duplicates items[%d]", first))
		}
		seenLines[line.ID] = i

		start, startOK := parseDate(line.StartDate)
		if line.StartDate != "" && !startOK {
			problems.Add(prefix+".startDate", "must be an ISO 8601 date")
		}
		end, endOK := parseDate(line.EndDate)
		if line.EndDate != "" && !endOK {
			problems.Add(prefix+".endDate", "must be an ISO 8601 date")
		}
		if startOK && endOK && end.Before(start) {
			problems.Add(prefix+".endDate", "must not be before startDate")
		}

		total := decimal.Zero
		if line.ItemTotalPrice != nil {
			total = *line.ItemTotalPrice
			if total.IsNegative() {
				problems.Add(prefix+".itemTotalPrice", "must not be negative")
			}
		}
		lineSum = lineSum.Add(total)

		items = append(items, models.OrderItem{
			LineID:         line.ID,
			MealID:         parseUUID(line.Meal.ID),
			MealName:       strings.TrimSpace(line.Meal.Name),
			PlanID:         parseUUID(line.Plan.ID),
			PlanName:       strings.TrimSpace(line.Plan.Name),
			VendorID:       parseUUID(line.Vendor.ID),
			VendorName:     strings.TrimSpace(line.Vendor.Name),
			Quantity:       line.Quantity,
			PersonDetails:  line.PersonDetails.Normalize(),
			StartDate:      start,
			EndDate:        end,
			SkippedDates:   []time.Time{},
			ItemTotalPrice: total,
		})
	}

	var totalPrice decimal.Decimal
	if req.CheckoutData.TotalPrice != nil {
		totalPrice = *req.CheckoutData.TotalPrice
		if totalPrice.IsNegative() {
			problems.Add("checkoutData.totalPrice", "must not be negative")
		} else if !totalPrice.Equal(lineSum) {
			problems.Add("checkoutData.totalPrice", fmt.Sprintf("must equal the sum of item totals (%s)", lineSum.StringFixed(2)))
		}
		if req.TotalAmount != nil && !req.TotalAmount.Equal(totalPrice) {
			problems.Add("totalAmount", "must equal checkoutData.totalPrice")
		}
	}
	if req.TotalAmount != nil && req.TotalAmount.IsNegative() {
		problems.Add("totalAmount", "must not be negative")
	}

	if err := problems.Err("invalid checkout"); err != nil {
		return nil, err
	}

	return &models.Order{
		UserID:            actorID,
		Items:             items,
		PaymentMethod:     method,
		TotalAmount:       totalPrice,
		Currency:          code,
		OrderDate:         now.UTC(),
		Status:            enums.OrderStatusPending,
		DeliveryAddresses: addresses,
	}, nil
}

// authorize rejects payloads naming a different user than the caller.
func authorize(actorID uuid.UUID, req Request) error {
	for _, raw := range []string{req.CheckoutData.UserID, req.UserID} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil || id != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "checkout belongs to another user")
		}
	}
	return nil
}

func addValidationErrors(problems pkgerrors.Fields, err error) {
	if err == nil {
		return
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		problems.Add("request", err.Error())
		return
	}
	for _, fe := range errs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		problems.Add(field, validationMessage(fe))
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "uuid":
		return "must be a UUID"
	}
	return "is invalid"
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return cart.NormalizeDate(t), true
		}
	}
	return time.Time{}, false
}

func parseUUID(raw string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}
