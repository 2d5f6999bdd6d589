package behavior

import (
	"time"

	"github.com/kalambet/mealrank/internal/recipe"
)

// Feedback tags carried by meal history rows.
const (
	FeedbackLiked    = "Liked"
	FeedbackDisliked = "Disliked"
)

// FeedbackRecord is one like/dislike row joined with its recipe.
type FeedbackRecord struct {
	Recipe    recipe.Recipe
	Liked     bool
	Disliked  bool
	CreatedAt time.Time
}

// SavedRecord is one saved-recipe row joined with its recipe.
type SavedRecord struct {
	Recipe    recipe.Recipe
	SavedDate time.Time
}

// HistoryRecord is one consumed-meal row joined with its recipe.
// Feedback is FeedbackLiked, FeedbackDisliked or empty.
type HistoryRecord struct {
	Recipe   recipe.Recipe
	Date     time.Time
	Feedback string
}

// Entry is a single behavioral signal about a recipe the user has seen.
type Entry struct {
	RecipeID    string
	Cuisine     string
	CookTime    int
	Macros      recipe.Macros
	Ingredients []string
	Timestamp   time.Time
	Feedback    string // consumed entries only
}

// Profile groups a user's behavioral signals. A recipe may appear in
// several collections at once.
type Profile struct {
	Liked    []Entry
	Disliked []Entry
	Saved    []Entry
	Consumed []Entry
}

// IsEmpty reports whether the profile carries no signal at all.
func (p Profile) IsEmpty() bool {
	return len(p.Liked) == 0 && len(p.Disliked) == 0 && len(p.Saved) == 0 && len(p.Consumed) == 0
}

// Size is the total number of entries across all collections.
func (p Profile) Size() int {
	return len(p.Liked) + len(p.Disliked) + len(p.Saved) + len(p.Consumed)
}
