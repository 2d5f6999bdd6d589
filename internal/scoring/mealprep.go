package scoring

import "github.com/kalambet/mealrank/internal/recipe"

// Meal-prep checklist points.
const (
	pointsBatchFriendly      = 30
	pointsFreezable          = 25
	pointsWeeklyPrepFriendly = 20
	pointsMealPrepSuitable   = 15
	pointsStorageInfo        = 10
	pointsLargeYield         = 10 // servings >= 6
	pointsMediumYield        = 5  // servings 4-5
)

// MealPrep scores the recipe's batch-cooking and storage friendliness.
// It depends on the flags alone and is safe to recompute at any time.
func MealPrep(f recipe.MealPrepFlags) int {
	score := 0
	if f.BatchFriendly {
		score += pointsBatchFriendly
	}
	if f.Freezable {
		score += pointsFreezable
	}
	if f.WeeklyPrepFriendly {
		score += pointsWeeklyPrepFriendly
	}
	if f.MealPrepSuitable {
		score += pointsMealPrepSuitable
	}
	if f.HasStorageInfo() {
		score += pointsStorageInfo
	}
	switch {
	case f.Servings >= 6:
		score += pointsLargeYield
	case f.Servings >= 4:
		score += pointsMediumYield
	}
	if score > 100 {
		return 100
	}
	return score
}
