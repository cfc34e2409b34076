package enums

import (
	"slices"
	"strings"
)

// SettlementStatus is the gateway's report of whether money was captured.
type SettlementStatus string

const (
	SettlementSuccess SettlementStatus = "SUCCESS"
	SettlementFailed  SettlementStatus = "FAILED"
	SettlementPending SettlementStatus = "PENDING"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementSuccess,
	SettlementFailed,
	SettlementPending,
}

// String implements fmt.Stringer.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementStatus.
func (s SettlementStatus) IsValid() bool {
	return slices.Contains(validSettlementStatuses, s)
}

// TargetOrderStatus maps a settlement outcome to the order status it drives.
// PENDING drives nothing.
func (s SettlementStatus) TargetOrderStatus() (OrderStatus, bool) {
	switch s {
	case SettlementSuccess:
		return OrderStatusConfirmed, true
	case SettlementFailed:
		return OrderStatusFailed, true
	default:
		return "", false
	}
}

// ParseSettlementStatus converts gateway input (case-insensitive) into a SettlementStatus.
func ParseSettlementStatus(value string) (SettlementStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	return parse(validSettlementStatuses, "settlement status", normalized)
}
