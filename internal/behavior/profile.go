package behavior

import (
	"sort"
	"strings"
	"time"

	"github.com/kalambet/mealrank/internal/recipe"
)

// Build assembles a Profile from raw store records. It is a pure function:
// callers derive the profile fresh on every request and never hold on to it
// across requests.
//
// Each collection is ordered newest first, ties broken by recipe ID.
// A feedback row flagged both liked and disliked lands in both collections;
// the scorer treats every membership as an independent vote.
func Build(feedback []FeedbackRecord, saved []SavedRecord, history []HistoryRecord) Profile {
	var p Profile

	for _, f := range feedback {
		if f.Liked {
			p.Liked = append(p.Liked, entryFor(f.Recipe, f.CreatedAt, ""))
		}
		if f.Disliked {
			p.Disliked = append(p.Disliked, entryFor(f.Recipe, f.CreatedAt, ""))
		}
	}

	for _, s := range saved {
		p.Saved = append(p.Saved, entryFor(s.Recipe, s.SavedDate, ""))
	}

	for _, h := range history {
		p.Consumed = append(p.Consumed, entryFor(h.Recipe, h.Date, normalizeFeedback(h.Feedback)))
	}

	sortEntries(p.Liked)
	sortEntries(p.Disliked)
	sortEntries(p.Saved)
	sortEntries(p.Consumed)
	return p
}

func entryFor(r recipe.Recipe, ts time.Time, feedback string) Entry {
	var ingredients []string
	if r.Ingredients != nil {
		ingredients = make([]string, len(r.Ingredients))
		copy(ingredients, r.Ingredients)
	}
	return Entry{
		RecipeID:    r.ID,
		Cuisine:     r.Cuisine,
		CookTime:    r.CookTime,
		Macros:      r.Macros,
		Ingredients: ingredients,
		Timestamp:   ts,
		Feedback:    feedback,
	}
}

// normalizeFeedback maps loosely-cased tags onto the canonical constants.
// Anything else is treated as unset.
func normalizeFeedback(tag string) string {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "liked", "like":
		return FeedbackLiked
	case "disliked", "dislike":
		return FeedbackDisliked
	default:
		return ""
	}
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].RecipeID < entries[j].RecipeID
	})
}
