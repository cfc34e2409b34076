package enums

import (
	"slices"
	"strings"
)

// PaymentMethod is the buyer's chosen way to pay at checkout. Only COD skips
// the gateway.
type PaymentMethod string

const (
	PaymentMethodCOD PaymentMethod = "COD"
	PaymentMethodCC  PaymentMethod = "CC"
	PaymentMethodUPI PaymentMethod = "UPI"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodCC,
	PaymentMethodUPI,
}

func (p PaymentMethod) String() string { return string(p) }

// Online reports whether the method is settled through the payment gateway.
func (p PaymentMethod) Online() bool {
	return p.IsValid() && p != PaymentMethodCOD
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, p)
}

// ParsePaymentMethod accepts the method code in any case.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethods, "payment method", strings.ToUpper(strings.TrimSpace(value)))
}
