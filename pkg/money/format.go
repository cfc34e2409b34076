// Package money formats order amounts for emails and invoices.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// Format renders amount with the currency symbol and grouped digits, e.g.
// "₹ 1,000.00". Unknown codes fall back to the raw code as prefix.
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	digits := printer.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
	unit, err := currency.ParseISO(code)
	if err != nil {
		if code == "" {
			return digits
		}
		return code + " " + digits
	}
	return printer.Sprintf("%v %s", currency.NarrowSymbol(unit), digits)
}
