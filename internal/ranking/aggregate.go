package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidWeights is returned when a weight vector is negative or does not
// sum to 1. It indicates a caller programming error.
var ErrInvalidWeights = errors.New("invalid weight vector")

const weightSumTolerance = 1e-6

// Weights is the blend applied to component scores. Availability is zero by
// default: it acts as a pre-filter unless a caller opts into blending it.
type Weights struct {
	Behavioral   float64 `json:"behavioral"`
	MacroFit     float64 `json:"macro_fit"`
	MealPrep     float64 `json:"meal_prep"`
	Availability float64 `json:"availability"`
}

// DefaultWeights favors behavioral affinity, then macro fit, then meal prep.
func DefaultWeights() Weights {
	return Weights{Behavioral: 0.5, MacroFit: 0.3, MealPrep: 0.2}
}

// Validate rejects negative entries and vectors that do not sum to 1.
func (w Weights) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"behavioral", w.Behavioral},
		{"macro_fit", w.MacroFit},
		{"meal_prep", w.MealPrep},
		{"availability", w.Availability},
	} {
		if c.v < 0 || math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidWeights, c.name, c.v)
		}
	}
	sum := w.Behavioral + w.MacroFit + w.MealPrep + w.Availability
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// ComponentScores are the per-dimension scores of one candidate, each in [0,100].
type ComponentScores struct {
	Behavioral   float64 `json:"behavioral"`
	MacroFit     float64 `json:"macro_fit"`
	MealPrep     float64 `json:"meal_prep"`
	Availability float64 `json:"availability"`
}

// Composite blends the components with w and clamps to [0,100].
func (c ComponentScores) Composite(w Weights) float64 {
	v := w.Behavioral*c.Behavioral +
		w.MacroFit*c.MacroFit +
		w.MealPrep*c.MealPrep +
		w.Availability*c.Availability
	return math.Max(0, math.Min(100, v))
}

// RankedResult is one entry of a ranking.
type RankedResult struct {
	RecipeID       string          `json:"recipe_id"`
	CompositeScore float64         `json:"composite_score"`
	Components     ComponentScores `json:"components"`

	createdAt time.Time
}

// Scored is a candidate with its component scores, ready for aggregation.
type Scored struct {
	RecipeID   string
	CreatedAt  time.Time
	Components ComponentScores
}

// Aggregate computes composite scores and returns them ordered by score
// descending, then newest first, then recipe ID ascending. The ordering is
// total, so identical inputs always produce the identical list.
func Aggregate(scored []Scored, w Weights) []RankedResult {
	results := make([]RankedResult, len(scored))
	for i, s := range scored {
		results[i] = RankedResult{
			RecipeID:       s.RecipeID,
			CompositeScore: s.Components.Composite(w),
			Components:     s.Components,
			createdAt:      s.CreatedAt,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.After(b.createdAt)
		}
		return a.RecipeID < b.RecipeID
	})
	return results
}
