package orders

import (
	"time"

	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// VerifyResult is returned by the client-initiated verification poll.
type VerifyResult struct {
	Order             *models.Order        `json:"order"`
	GatewaySettlement *payments.Settlement `json:"gatewaySettlement,omitempty"`
}

// ItemEdit changes the dates or attendees of one order line.
type ItemEdit struct {
	ID            string
	StartDate     *time.Time
	EndDate       *time.Time
	PersonDetails types.PersonDetails
}

// UpdateInput is the combined user edit applied by Update. Nil fields are
// left untouched.
type UpdateInput struct {
	Status            *enums.OrderStatus
	DeliveryAddresses types.DeliveryAddresses
	Items             []ItemEdit
	ItemID            string
	SkippedDate       *time.Time
	NewEndDate        *time.Time
}

// IsEmpty reports whether the input carries no change at all.
func (in UpdateInput) IsEmpty() bool {
	return in.Status == nil &&
		in.DeliveryAddresses == nil &&
		len(in.Items) == 0 &&
		in.ItemID == ""
}
