package scoring

import (
	"math"

	"github.com/kalambet/mealrank/internal/recipe"
)

const (
	// NeutralMacroFit is returned when the user has no macro goals.
	NeutralMacroFit = 60.0

	// DefaultMealsPerDay converts a daily goal into a per-meal target.
	DefaultMealsPerDay = 3

	// MacroDeviationSensitivity controls how fast the score falls with the
	// average relative deviation d: score = 100 * exp(-k*d).
	MacroDeviationSensitivity = 1.0
)

// MacroFit scores how closely m matches the per-meal share of goals.
// Macros whose goal is zero or negative are ignored; if none remain, or goals
// is nil, the neutral default is returned.
func MacroFit(m recipe.Macros, goals *recipe.MacroGoals, mealsPerDay int) float64 {
	if goals == nil {
		return NeutralMacroFit
	}
	if mealsPerDay <= 0 {
		mealsPerDay = DefaultMealsPerDay
	}

	pairs := [4][2]float64{
		{m.Calories, goals.Calories},
		{m.Protein, goals.Protein},
		{m.Carbs, goals.Carbs},
		{m.Fat, goals.Fat},
	}

	var sum float64
	n := 0
	for _, p := range pairs {
		if p[1] <= 0 {
			continue
		}
		target := p[1] / float64(mealsPerDay)
		sum += math.Abs(p[0]-target) / target
		n++
	}
	if n == 0 {
		return NeutralMacroFit
	}

	avg := sum / float64(n)
	return clamp(100*math.Exp(-MacroDeviationSensitivity*avg), 0, 100)
}
