package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// CartItem is one (meal, plan, start date) line in a user's cart.
type CartItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID         uuid.UUID           `gorm:"column:cart_id;type:uuid;not null" json:"cartId"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	MealID         uuid.UUID           `gorm:"column:meal_id;type:uuid;not null" json:"mealId"`
	Meal           *Meal               `gorm:"foreignKey:MealID;references:ID" json:"meal,omitempty"`
	PlanID         uuid.UUID           `gorm:"column:plan_id;type:uuid;not null" json:"planId"`
	Plan           *Plan               `gorm:"foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Quantity       int                 `gorm:"column:quantity;not null;default:1" json:"quantity"`
	PersonDetails  types.PersonDetails `gorm:"column:person_details;type:jsonb;serializer:json" json:"personDetails"`
	StartDate      time.Time           `gorm:"column:start_date;type:date;not null" json:"startDate"`
	EndDate        time.Time           `gorm:"column:end_date;type:date;not null" json:"endDate"`
	ItemTotalPrice decimal.Decimal     `gorm:"column:item_total_price;type:numeric(12,2);not null" json:"itemTotalPrice"`
	AddedAt        time.Time           `gorm:"column:added_at;autoCreateTime" json:"addedDate"`
}
