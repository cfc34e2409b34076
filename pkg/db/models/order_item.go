package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// OrderItem is a value copy of a checkout line. Names are captured so later
// catalog edits never change historical orders.
type OrderItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null" json:"-"`
	LineID         string              `gorm:"column:line_id;not null" json:"id"`
	Position       int                 `gorm:"column:position;not null" json:"-"`
	MealID         uuid.UUID           `gorm:"column:meal_id;type:uuid;not null" json:"mealId"`
	MealName       string              `gorm:"column:meal_name;not null" json:"mealName"`
	PlanID         uuid.UUID           `gorm:"column:plan_id;type:uuid;not null" json:"planId"`
	PlanName       string              `gorm:"column:plan_name;not null" json:"planName"`
	VendorID       uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null" json:"vendorId"`
	VendorName     string              `gorm:"column:vendor_name;not null" json:"vendorName"`
	Quantity       int                 `gorm:"column:quantity;not null" json:"quantity"`
	PersonDetails  types.PersonDetails `gorm:"column:person_details;type:jsonb;serializer:json" json:"personDetails"`
	StartDate      time.Time           `gorm:"column:start_date;type:date;not null" json:"startDate"`
	EndDate        time.Time           `gorm:"column:end_date;type:date;not null" json:"endDate"`
	SkippedDates   []time.Time         `gorm:"column:skipped_dates;type:jsonb;serializer:json" json:"skippedDates"`
	ItemTotalPrice decimal.Decimal     `gorm:"column:item_total_price;type:numeric(12,2);not null" json:"itemTotalPrice"`
}

// UnitPrice is the per-quantity price derived from the line total.
func (i OrderItem) UnitPrice() decimal.Decimal {
	if i.Quantity <= 0 {
		return i.ItemTotalPrice
	}
	return i.ItemTotalPrice.Div(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}
