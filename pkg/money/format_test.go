package money

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatGroupsDigits(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   string
	}{
		{"1000", "INR", "1,000.00"},
		{"99.5", "usd", "99.50"},
		{"1234567.891", "", "1,234,567.89"},
		{"10", "ZZZ1", "ZZZ1 10.00"},
	}
	for _, tt := range tests {
		got := Format(decimal.RequireFromString(tt.amount), tt.code)
		if !strings.Contains(got, tt.want) {
			t.Fatalf("Format(%s, %s) = %q, want it to contain %q", tt.amount, tt.code, got, tt.want)
		}
	}
}
