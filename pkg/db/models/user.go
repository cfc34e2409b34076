package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the buyer identity the gateway customer and emails are built from.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string    `gorm:"column:email;not null" json:"email"`
	Name      string    `gorm:"column:name" json:"name"`
	Phone     string    `gorm:"column:phone" json:"phone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
