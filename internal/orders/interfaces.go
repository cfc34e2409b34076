package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error)
	SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error
	SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error
	SetDeliveryAddresses(ctx context.Context, id uuid.UUID, addresses types.DeliveryAddresses) error
	SaveItemEdits(ctx context.Context, item *models.OrderItem) error
	FindStalePending(ctx context.Context, withSession bool, before time.Time, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SettlementFetcher reads the gateway view of an order.
type SettlementFetcher interface {
	FetchSettlement(ctx context.Context, order *models.Order) (*payments.Settlement, error)
}

// Fulfiller runs the confirmation side effects for a freshly confirmed order.
type Fulfiller interface {
	Fulfill(ctx context.Context, order *models.Order) error
}
