package enums

import "slices"

// MealCategory groups meals by delivery slot; delivery addresses are keyed by it.
type MealCategory string

const (
	MealCategoryBreakfast MealCategory = "Breakfast"
	MealCategoryLunch     MealCategory = "Lunch"
	MealCategoryDinner    MealCategory = "Dinner"
)

var validMealCategories = []MealCategory{
	MealCategoryBreakfast,
	MealCategoryLunch,
	MealCategoryDinner,
}

// IsValid reports whether the value is a known MealCategory.
func (c MealCategory) IsValid() bool {
	return slices.Contains(validMealCategories, c)
}

// ParseMealCategory converts raw input into a MealCategory.
func ParseMealCategory(value string) (MealCategory, error) {
	return parse(validMealCategories, "meal category", value)
}
