package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	SaveTotals(ctx context.Context, cart *models.Cart) error
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByKey(ctx context.Context, userID, mealID, planID uuid.UUID, startDate time.Time) (*models.CartItem, error)
	InsertItem(ctx context.Context, item *models.CartItem) error
	UpdateItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItemsByUser(ctx context.Context, userID uuid.UUID) error
}

// CatalogReader resolves the meal and plan a line refers to.
type CatalogReader interface {
	FindMeal(ctx context.Context, id uuid.UUID) (*models.Meal, error)
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
