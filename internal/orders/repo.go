package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order header and its snapshot lines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].Position = i
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	if len(order.Items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&order.Items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		Order("order_date DESC").
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CompareAndSetStatus moves the order from -> to only if it still holds from.
// extra columns are written in the same statement. It reports whether a row
// changed.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	for column, value := range extra {
		updates[column] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.updateColumns(ctx, id, map[string]any{"payment_session_id": sessionID})
}

func (r *repository) SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.updateColumns(ctx, id, map[string]any{"invoice_url": url})
}

func (r *repository) SetDeliveryAddresses(ctx context.Context, id uuid.UUID, addresses types.DeliveryAddresses) error {
	order := models.Order{ID: id, DeliveryAddresses: addresses, UpdatedAt: time.Now().UTC()}
	res := r.db.WithContext(ctx).
		Model(&order).
		Omit(clause.Associations).
		Select("delivery_addresses", "updated_at").
		Updates(&order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveItemEdits persists the user-editable columns of a line.
func (r *repository) SaveItemEdits(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).
		Model(item).
		Select("start_date", "end_date", "person_details", "skipped_dates").
		Updates(item).Error
}

// FindStalePending returns pending orders created before the cutoff, split by
// whether a gateway session was ever opened. Cash-on-delivery orders are never
// settled by the gateway and are left out of the session branch.
func (r *repository) FindStalePending(ctx context.Context, withSession bool, before time.Time, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", string(enums.OrderStatusPending)).
		Where("created_at < ?", before.UTC())
	if withSession {
		query = query.
			Where("(payment_session_id IS NOT NULL AND payment_session_id <> '')").
			Where("payment_method <> ?", string(enums.PaymentMethodCOD))
	} else {
		query = query.Where("(payment_session_id IS NULL OR payment_session_id = '')")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var orders []models.Order
	if err := query.Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) updateColumns(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
