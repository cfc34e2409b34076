package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
)

// Meal is a catalog entry priced per day of a plan.
type Meal struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string             `gorm:"column:name;not null" json:"name"`
	Category  enums.MealCategory `gorm:"column:category;not null" json:"category"`
	Price     decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	VendorID  uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null" json:"vendorId"`
	Image     string             `gorm:"column:image" json:"image,omitempty"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
