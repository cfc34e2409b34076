package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
)

// NormalizeDate truncates t to its calendar day in UTC so merge keys compare
// equal regardless of the client's time of day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndDate is the last delivery day of a plan starting on start.
func EndDate(start time.Time, durationDays int) time.Time {
	if durationDays < 1 {
		return start
	}
	return start.AddDate(0, 0, durationDays-1)
}

// LineTotal is quantity x meal price x plan days.
func LineTotal(mealPrice decimal.Decimal, durationDays, quantity int) decimal.Decimal {
	return mealPrice.
		Mul(decimal.NewFromInt(int64(durationDays))).
		Mul(decimal.NewFromInt(int64(quantity))).
		Round(2)
}

// Totals recomputes the cached cart header values from the full item set.
func Totals(items []models.CartItem) (int, decimal.Decimal) {
	count := 0
	sum := decimal.Zero
	for _, item := range items {
		count += item.Quantity
		sum = sum.Add(item.ItemTotalPrice)
	}
	return count, sum.Round(2)
}

// setQuantity changes the line quantity and reprices it from the catalog, or
// from the stored unit price when the meal or plan is no longer loadable.
func setQuantity(item *models.CartItem, quantity int) {
	if item.Meal != nil && item.Plan != nil {
		item.Quantity = quantity
		item.ItemTotalPrice = LineTotal(item.Meal.Price, item.Plan.DurationDays, quantity)
		return
	}
	unit := item.ItemTotalPrice
	if item.Quantity > 0 {
		unit = unit.Div(decimal.NewFromInt(int64(item.Quantity)))
	}
	item.Quantity = quantity
	item.ItemTotalPrice = unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
