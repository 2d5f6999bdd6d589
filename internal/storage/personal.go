package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/mealrank/internal/behavior"
	"github.com/kalambet/mealrank/internal/recipe"
)

// --- Behavior: reads ---

// Feedback returns every liked/disliked record of userID with its recipe.
func (s *Store) Feedback(ctx context.Context, userID string) ([]behavior.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipeColumns+`, f.liked, f.disliked, f.created_at
		FROM recipe_feedback f JOIN recipes r ON r.id = f.recipe_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, r.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []behavior.FeedbackRecord
	for rows.Next() {
		var rec behavior.FeedbackRecord
		var createdAt string
		rec.Recipe, err = scanRecipe(rows, &rec.Liked, &rec.Disliked, &createdAt)
		if err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime("feedback created_at", createdAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Saved returns the recipes userID saved.
func (s *Store) Saved(ctx context.Context, userID string) ([]behavior.SavedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipeColumns+`, sr.saved_at
		FROM saved_recipes sr JOIN recipes r ON r.id = sr.recipe_id
		WHERE sr.user_id = ?
		ORDER BY sr.saved_at DESC, r.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []behavior.SavedRecord
	for rows.Next() {
		var rec behavior.SavedRecord
		var savedAt string
		rec.Recipe, err = scanRecipe(rows, &savedAt)
		if err != nil {
			return nil, err
		}
		if rec.SavedDate, err = parseTime("saved_at", savedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MealHistory returns what userID ate, with any post-meal feedback.
func (s *Store) MealHistory(ctx context.Context, userID string) ([]behavior.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipeColumns+`, h.consumed_at, h.feedback
		FROM meal_history h JOIN recipes r ON r.id = h.recipe_id
		WHERE h.user_id = ?
		ORDER BY h.consumed_at DESC, h.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []behavior.HistoryRecord
	for rows.Next() {
		var rec behavior.HistoryRecord
		var consumedAt string
		rec.Recipe, err = scanRecipe(rows, &consumedAt, &rec.Feedback)
		if err != nil {
			return nil, err
		}
		if rec.Date, err = parseTime("consumed_at", consumedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Behavior: writes ---

// SaveFeedback records userID's opinion of a recipe, replacing any earlier one.
func (s *Store) SaveFeedback(ctx context.Context, userID, recipeID string, liked, disliked bool, at time.Time) error {
	if err := s.recipeExists(ctx, recipeID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipe_feedback (user_id, recipe_id, liked, disliked, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, recipe_id) DO UPDATE SET
			liked = excluded.liked, disliked = excluded.disliked, created_at = excluded.created_at`,
		userID, recipeID, liked, disliked, formatTime(orNow(at)),
	)
	return err
}

// SaveRecipeForUser bookmarks a recipe for userID.
func (s *Store) SaveRecipeForUser(ctx context.Context, userID, recipeID string, at time.Time) error {
	if err := s.recipeExists(ctx, recipeID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_recipes (user_id, recipe_id, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, recipe_id) DO UPDATE SET saved_at = excluded.saved_at`,
		userID, recipeID, formatTime(orNow(at)),
	)
	return err
}

// AddMealHistory appends a consumed meal and returns its entry ID.
func (s *Store) AddMealHistory(ctx context.Context, userID, recipeID string, at time.Time, feedback string) (string, error) {
	if err := s.recipeExists(ctx, recipeID); err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meal_history (id, user_id, recipe_id, consumed_at, feedback) VALUES (?, ?, ?, ?, ?)`,
		id, userID, recipeID, formatTime(orNow(at)), feedback,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// --- Macro goals ---

// MacroGoals returns the daily targets of userID, or nil if none are set.
func (s *Store) MacroGoals(ctx context.Context, userID string) (*recipe.MacroGoals, error) {
	var g recipe.MacroGoals
	err := s.db.QueryRowContext(ctx,
		`SELECT calories, protein, carbs, fat FROM macro_goals WHERE user_id = ?`, userID,
	).Scan(&g.Calories, &g.Protein, &g.Carbs, &g.Fat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) SetMacroGoals(ctx context.Context, userID string, g recipe.MacroGoals) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO macro_goals (user_id, calories, protein, carbs, fat, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			calories = excluded.calories, protein = excluded.protein,
			carbs = excluded.carbs, fat = excluded.fat, updated_at = excluded.updated_at`,
		userID, g.Calories, g.Protein, g.Carbs, g.Fat, formatTime(time.Now()),
	)
	return err
}

// --- Ingredient purchases ---

// AddIngredientCost records a purchase observation for userID.
func (s *Store) AddIngredientCost(ctx context.Context, userID string, c IngredientCost) (IngredientCost, error) {
	c.Ingredient = strings.TrimSpace(c.Ingredient)
	if c.Ingredient == "" {
		return IngredientCost{}, errors.New("ingredient is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.LastUpdated = orNow(c.LastUpdated).UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredient_costs (id, user_id, ingredient, store, location, cost, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, userID, c.Ingredient, c.Store, c.Location, c.Cost, formatTime(c.LastUpdated),
	)
	if err != nil {
		return IngredientCost{}, fmt.Errorf("inserting ingredient cost: %w", err)
	}
	return c, nil
}

// IngredientCosts lists the purchase observations of userID for one
// ingredient (case-insensitive), newest first. An empty name lists all.
func (s *Store) IngredientCosts(ctx context.Context, userID, name string) ([]IngredientCost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ingredient, store, location, cost, last_updated
		FROM ingredient_costs
		WHERE user_id = ? AND (? = '' OR lower(ingredient) = lower(?))
		ORDER BY last_updated DESC, id ASC`, userID, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IngredientCost
	for rows.Next() {
		var c IngredientCost
		var updated string
		if err := rows.Scan(&c.ID, &c.Ingredient, &c.Store, &c.Location, &c.Cost, &updated); err != nil {
			return nil, err
		}
		if c.LastUpdated, err = parseTime("last_updated", updated); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PurchasedIngredients returns the distinct ingredient names userID has a
// cost record for.
func (s *Store) PurchasedIngredients(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ingredient FROM ingredient_costs WHERE user_id = ? ORDER BY ingredient`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
