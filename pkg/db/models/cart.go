package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the single pre-checkout basket of a user. TotalItems and
// CartTotalPrice are caches recomputed from Items on every mutation.
type Cart struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"userId"`
	Items          []CartItem      `gorm:"foreignKey:CartID;references:ID" json:"items"`
	TotalItems     int             `gorm:"column:total_items;not null;default:0" json:"totalItems"`
	CartTotalPrice decimal.Decimal `gorm:"column:cart_total_price;type:numeric(12,2);not null;default:0" json:"cartTotalPrice"`
	LastUpdated    time.Time       `gorm:"column:last_updated" json:"lastUpdated"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
