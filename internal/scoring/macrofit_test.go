package scoring

import (
	"testing"

	"github.com/kalambet/mealrank/internal/recipe"
)

var testGoals = &recipe.MacroGoals{Calories: 2000, Protein: 150, Carbs: 200, Fat: 60}

func TestMacroFit_NoGoals(t *testing.T) {
	if got := MacroFit(recipe.Macros{Calories: 500}, nil, 3); got != NeutralMacroFit {
		t.Errorf("MacroFit(nil goals) = %f, want %f", got, NeutralMacroFit)
	}
	if got := MacroFit(recipe.Macros{Calories: 500}, &recipe.MacroGoals{}, 3); got != NeutralMacroFit {
		t.Errorf("MacroFit(zero goals) = %f, want %f", got, NeutralMacroFit)
	}
}

func TestMacroFit_ExactTarget(t *testing.T) {
	got := MacroFit(recipe.Macros{Calories: 667, Protein: 50, Carbs: 67, Fat: 20}, testGoals, 3)
	if got < 99.5 {
		t.Errorf("MacroFit at per-meal target = %f, want ~100", got)
	}
}

func TestMacroFit_Monotonic(t *testing.T) {
	at := MacroFit(recipe.Macros{Calories: 667, Protein: 50, Carbs: 67, Fat: 20}, testGoals, 3)
	half := MacroFit(recipe.Macros{Calories: 1000, Protein: 75, Carbs: 100, Fat: 30}, testGoals, 3)
	double := MacroFit(recipe.Macros{Calories: 1334, Protein: 100, Carbs: 134, Fat: 40}, testGoals, 3)
	triple := MacroFit(recipe.Macros{Calories: 2001, Protein: 150, Carbs: 201, Fat: 60}, testGoals, 3)

	if !(at > half && half > double && double > triple) {
		t.Errorf("not monotonic: at=%f 1.5x=%f 2x=%f 3x=%f", at, half, double, triple)
	}
	if double <= 0 || double > 60 {
		t.Errorf("double-target score = %f, want substantially lower but positive", double)
	}
}

func TestMacroFit_DefaultMealsPerDay(t *testing.T) {
	m := recipe.Macros{Calories: 667, Protein: 50, Carbs: 67, Fat: 20}
	if MacroFit(m, testGoals, 0) != MacroFit(m, testGoals, DefaultMealsPerDay) {
		t.Error("mealsPerDay <= 0 should fall back to the default")
	}
}

func TestMacroFit_Bounds(t *testing.T) {
	got := MacroFit(recipe.Macros{Calories: 1e6, Protein: 1e5, Carbs: 1e5, Fat: 1e5}, testGoals, 3)
	if got < 0 || got > 100 {
		t.Errorf("MacroFit out of range: %f", got)
	}
}
