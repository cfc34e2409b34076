package types

import (
	"strings"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
)

// DeliveryAddress is the postal address a meal category is delivered to.
type DeliveryAddress struct {
	Street string `json:"street" validate:"required"`
	City   string `json:"city" validate:"required"`
	Zip    string `json:"zip" validate:"required"`
}

// IsComplete reports whether every address component is present.
func (a DeliveryAddress) IsComplete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.Zip) != ""
}

// DeliveryAddresses maps a meal category (Breakfast, Lunch, Dinner) to its address.
type DeliveryAddresses map[enums.MealCategory]DeliveryAddress
