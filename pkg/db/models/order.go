package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// Order is the snapshot taken at checkout. Only status, session, payment
// details, confirmation time, invoice URL and user edits change afterwards.
type Order struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID               `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	Items              []OrderItem             `gorm:"foreignKey:OrderID;references:ID" json:"items"`
	PaymentMethod      enums.PaymentMethod     `gorm:"column:payment_method;not null" json:"paymentMethod"`
	TotalAmount        decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null" json:"totalAmount"`
	Currency           string                  `gorm:"column:currency;not null" json:"currency"`
	OrderDate          time.Time               `gorm:"column:order_date;not null" json:"orderDate"`
	Status             enums.OrderStatus       `gorm:"column:status;not null;default:'pending'" json:"status"`
	PaymentSessionID   *string                 `gorm:"column:payment_session_id" json:"paymentSessionId,omitempty"`
	Payment            PaymentDetails          `gorm:"embedded;embeddedPrefix:payment_" json:"paymentDetails"`
	PaymentConfirmedAt *time.Time              `gorm:"column:payment_confirmed_at" json:"paymentConfirmedAt,omitempty"`
	InvoiceURL         *string                 `gorm:"column:invoice_url" json:"invoiceUrl,omitempty"`
	DeliveryAddresses  types.DeliveryAddresses `gorm:"column:delivery_addresses;type:jsonb;serializer:json;not null" json:"deliveryAddresses"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// PaymentDetails mirrors what the gateway reported for the settling payment.
type PaymentDetails struct {
	GatewayPaymentID *string                 `gorm:"column:gateway_id" json:"cfPaymentId,omitempty"`
	Status           *enums.SettlementStatus `gorm:"column:status" json:"status,omitempty"`
	PaidAt           *time.Time              `gorm:"column:time" json:"paymentTime,omitempty"`
	BankReference    *string                 `gorm:"column:bank_reference" json:"bankReference,omitempty"`
	Channel          *string                 `gorm:"column:channel" json:"method,omitempty"`
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o != nil && o.UserID == userID
}

// HasSession reports whether a gateway payment session was opened.
func (o *Order) HasSession() bool {
	return o != nil && o.PaymentSessionID != nil && *o.PaymentSessionID != ""
}

// FindItem returns the line with the given client line id.
func (o *Order) FindItem(lineID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].LineID == lineID {
			return &o.Items[i]
		}
	}
	return nil
}

// VendorIDs returns the distinct vendors represented in the order, in line order.
func (o *Order) VendorIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(o.Items))
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		ids = append(ids, item.VendorID)
	}
	return ids
}

// ItemsForVendor returns only the lines fulfilled by vendorID.
func (o *Order) ItemsForVendor(vendorID uuid.UUID) []OrderItem {
	var items []OrderItem
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			items = append(items, item)
		}
	}
	return items
}
