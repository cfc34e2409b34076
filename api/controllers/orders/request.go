package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/Hynox-org/aharraa-server/api/validators"
	internalorders "github.com/Hynox-org/aharraa-server/internal/orders"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

const maxPersonFieldLen = 120

type itemEditRequest struct {
	ID            string               `json:"id" validate:"required"`
	StartDate     *string              `json:"startDate,omitempty"`
	EndDate       *string              `json:"endDate,omitempty"`
	PersonDetails []types.PersonDetail `json:"personDetails,omitempty" validate:"omitempty,dive"`
}

type updateRequest struct {
	Status            *string                                      `json:"status,omitempty"`
	DeliveryAddresses map[enums.MealCategory]types.DeliveryAddress `json:"deliveryAddresses,omitempty"`
	Items             []itemEditRequest                            `json:"items,omitempty" validate:"omitempty,dive"`
	ItemID            string                                       `json:"itemId,omitempty"`
	SkippedDate       *string                                      `json:"skippedDate,omitempty"`
	NewEndDate        *string                                      `json:"newEndDate,omitempty"`
}

func (r updateRequest) toInput() (internalorders.UpdateInput, error) {
	problems := pkgerrors.Fields{}
	input := internalorders.UpdateInput{
		ItemID:            strings.TrimSpace(r.ItemID),
		DeliveryAddresses: r.DeliveryAddresses,
	}

	if r.Status != nil {
		status, err := enums.ParseOrderStatus(*r.Status)
		if err != nil {
			problems.Add("status", "unknown order status")
		} else {
			input.Status = &status
		}
	}

	input.SkippedDate = parseOptionalDate(r.SkippedDate, "skippedDate", problems)
	input.NewEndDate = parseOptionalDate(r.NewEndDate, "newEndDate", problems)

	for i, item := range r.Items {
		edit := internalorders.ItemEdit{
			ID:        strings.TrimSpace(item.ID),
			StartDate: parseOptionalDate(item.StartDate, fmt.Sprintf("items[%d].startDate", i), problems),
			EndDate:   parseOptionalDate(item.EndDate, fmt.Sprintf("items[%d].endDate", i), problems),
		}
		if item.PersonDetails != nil {
			edit.PersonDetails = make(types.PersonDetails, 0, len(item.PersonDetails))
			for _, p := range item.PersonDetails {
				edit.PersonDetails = append(edit.PersonDetails, types.PersonDetail{
					Name:        validators.SanitizeString(p.Name, maxPersonFieldLen),
					PhoneNumber: validators.SanitizeString(p.PhoneNumber, maxPersonFieldLen),
				})
			}
		}
		input.Items = append(input.Items, edit)
	}

	if err := problems.Err("invalid order update"); err != nil {
		return internalorders.UpdateInput{}, err
	}
	return input, nil
}

func parseOptionalDate(raw *string, field string, problems pkgerrors.Fields) *time.Time {
	if raw == nil {
		return nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	problems.Add(field, "must be an ISO date")
	return nil
}
