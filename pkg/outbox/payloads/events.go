package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout persists a pending order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Currency      string              `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
	VendorIDs     []uuid.UUID         `json:"vendor_ids"`
	OrderDate     time.Time           `json:"order_date"`
}

// OrderStatusChangedEvent is emitted for every committed status transition.
type OrderStatusChangedEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	UserID           uuid.UUID           `json:"user_id"`
	From             enums.OrderStatus   `json:"from"`
	To               enums.OrderStatus   `json:"to"`
	Source           string              `json:"source"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	Currency         string              `json:"currency"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	GatewayPaymentID *string             `json:"gateway_payment_id,omitempty"`
	ChangedAt        time.Time           `json:"changed_at"`
}
