package cashfree

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
)

// FlexibleID accepts gateway identifiers sent either as JSON numbers or strings.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (f FlexibleID) String() string {
	return string(f)
}

// SettlementFromOrderStatus maps the gateway order_status onto a settlement outcome.
func SettlementFromOrderStatus(status string) enums.SettlementStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID":
		return enums.SettlementSuccess
	case "EXPIRED", "TERMINATED", "TERMINATION_REQUESTED":
		return enums.SettlementFailed
	default:
		return enums.SettlementPending
	}
}

// ParsedTime returns the payment time, or the zero time when absent or malformed.
func (p Payment) ParsedTime() time.Time {
	raw := strings.TrimSpace(p.PaymentTime)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// LatestPayment picks the most recent attempt, preferring a SUCCESS one.
func LatestPayment(payments []Payment) *Payment {
	if len(payments) == 0 {
		return nil
	}
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ParsedTime().After(sorted[j].ParsedTime())
	})
	for i := range sorted {
		if strings.EqualFold(sorted[i].PaymentStatus, string(enums.SettlementSuccess)) {
			return &sorted[i]
		}
	}
	return &sorted[0]
}
