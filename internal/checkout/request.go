package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// Request is the client checkout payload.
type Request struct {
	UserID        string           `json:"userId,omitempty"`
	CheckoutData  CheckoutData     `json:"checkoutData"`
	PaymentMethod string           `json:"paymentMethod" validate:"required"`
	TotalAmount   *decimal.Decimal `json:"totalAmount,omitempty"`
	Currency      string           `json:"currency" validate:"required"`
}

// CheckoutData is the cart snapshot the client checked out.
type CheckoutData struct {
	ID                string                           `json:"id" validate:"required"`
	UserID            string                           `json:"userId" validate:"required"`
	Items             []Item                           `json:"items" validate:"required,min=1,dive"`
	DeliveryAddresses map[string]types.DeliveryAddress `json:"deliveryAddresses" validate:"required"`
	TotalPrice        *decimal.Decimal                 `json:"totalPrice" validate:"required"`
	CheckoutDate      string                           `json:"checkoutDate" validate:"required"`
}

// Ref names a catalog entity by id and display name.
type Ref struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"required"`
}

// Item is one checked-out cart line.
type Item struct {
	ID             string              `json:"id" validate:"required"`
	Meal           Ref                 `json:"meal"`
	Plan           Ref                 `json:"plan"`
	Vendor         Ref                 `json:"vendor"`
	Quantity       int                 `json:"quantity" validate:"min=1"`
	PersonDetails  types.PersonDetails `json:"personDetails,omitempty" validate:"omitempty,dive"`
	StartDate      string              `json:"startDate" validate:"required"`
	EndDate        string              `json:"endDate" validate:"required"`
	ItemTotalPrice *decimal.Decimal    `json:"itemTotalPrice" validate:"required"`
}

// Result is returned once the order exists and a payment session is open.
type Result struct {
	PaymentSessionID string        `json:"paymentSessionId"`
	Order            *models.Order `json:"order"`
}
