package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/Hynox-org/aharraa-server/api/validators"
	cartsvc "github.com/Hynox-org/aharraa-server/internal/cart"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

const maxPersonFieldLen = 120

type personDetail struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
}

type addItemRequest struct {
	MealID        uuid.UUID      `json:"mealId" validate:"required"`
	PlanID        uuid.UUID      `json:"planId" validate:"required"`
	Quantity      int            `json:"quantity" validate:"required,min=1"`
	StartDate     string         `json:"startDate" validate:"required"`
	PersonDetails []personDetail `json:"personDetails,omitempty" validate:"omitempty,dive"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type updatePersonDetailsRequest struct {
	PersonDetails []personDetail `json:"personDetails" validate:"required,dive"`
}

func (r addItemRequest) toInput() (cartsvc.AddItemInput, error) {
	start, err := parseStartDate(r.StartDate)
	if err != nil {
		return cartsvc.AddItemInput{}, err
	}
	return cartsvc.AddItemInput{
		MealID:        r.MealID,
		PlanID:        r.PlanID,
		Quantity:      r.Quantity,
		StartDate:     start,
		PersonDetails: toPersonDetails(r.PersonDetails),
	}, nil
}

// parseStartDate accepts a calendar date or a full RFC3339 timestamp.
func parseStartDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
		WithDetails(map[string]string{"startDate": "must be an ISO date"})
}

func toPersonDetails(in []personDetail) types.PersonDetails {
	if in == nil {
		return nil
	}
	out := make(types.PersonDetails, 0, len(in))
	for _, p := range in {
		out = append(out, types.PersonDetail{
			Name:        validators.SanitizeString(p.Name, maxPersonFieldLen),
			PhoneNumber: validators.SanitizeString(p.PhoneNumber, maxPersonFieldLen),
		})
	}
	return out
}
