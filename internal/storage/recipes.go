package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/mealrank/internal/recipe"
)

const recipeColumns = `r.id, r.title, r.cuisine, r.cook_time,
	r.calories, r.protein, r.carbs, r.fat, r.ingredients_json,
	r.batch_friendly, r.freezable, r.weekly_prep_friendly, r.meal_prep_suitable,
	r.storage_instructions, r.fridge_storage_days, r.freezer_storage_months, r.servings,
	r.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecipe reads recipeColumns followed by any extra destinations.
func scanRecipe(row rowScanner, extra ...any) (recipe.Recipe, error) {
	var (
		r           recipe.Recipe
		ingredients string
		createdAt   string
	)
	dest := []any{
		&r.ID, &r.Title, &r.Cuisine, &r.CookTime,
		&r.Macros.Calories, &r.Macros.Protein, &r.Macros.Carbs, &r.Macros.Fat, &ingredients,
		&r.MealPrep.BatchFriendly, &r.MealPrep.Freezable, &r.MealPrep.WeeklyPrepFriendly, &r.MealPrep.MealPrepSuitable,
		&r.MealPrep.StorageInstructions, &r.MealPrep.FridgeStorageDays, &r.MealPrep.FreezerStorageMonths, &r.MealPrep.Servings,
		&createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return recipe.Recipe{}, err
	}
	if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
		return recipe.Recipe{}, fmt.Errorf("decoding ingredients of %s: %w", r.ID, err)
	}
	t, err := parseTime("created_at", createdAt)
	if err != nil {
		return recipe.Recipe{}, err
	}
	r.CreatedAt = t
	return r, nil
}

// SaveRecipe inserts or replaces a recipe. Replacing clears any stored
// meal-prep score since the flags may have changed.
func (s *Store) SaveRecipe(ctx context.Context, r recipe.Recipe) error {
	if r.ID == "" {
		return errors.New("recipe id is required")
	}
	ingredients := r.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	ingJSON, err := json.Marshal(ingredients)
	if err != nil {
		return fmt.Errorf("encoding ingredients: %w", err)
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	mp := r.MealPrep
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recipes (id, title, cuisine, cook_time, calories, protein, carbs, fat, ingredients_json,
			batch_friendly, freezable, weekly_prep_friendly, meal_prep_suitable,
			storage_instructions, fridge_storage_days, freezer_storage_months, servings, meal_prep_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, cuisine = excluded.cuisine, cook_time = excluded.cook_time,
			calories = excluded.calories, protein = excluded.protein, carbs = excluded.carbs, fat = excluded.fat,
			ingredients_json = excluded.ingredients_json,
			batch_friendly = excluded.batch_friendly, freezable = excluded.freezable,
			weekly_prep_friendly = excluded.weekly_prep_friendly, meal_prep_suitable = excluded.meal_prep_suitable,
			storage_instructions = excluded.storage_instructions, fridge_storage_days = excluded.fridge_storage_days,
			freezer_storage_months = excluded.freezer_storage_months, servings = excluded.servings,
			meal_prep_score = NULL, created_at = excluded.created_at`,
		r.ID, r.Title, r.Cuisine, r.CookTime,
		r.Macros.Calories, r.Macros.Protein, r.Macros.Carbs, r.Macros.Fat, string(ingJSON),
		mp.BatchFriendly, mp.Freezable, mp.WeeklyPrepFriendly, mp.MealPrepSuitable,
		mp.StorageInstructions, mp.FridgeStorageDays, mp.FreezerStorageMonths, mp.Servings,
		formatTime(createdAt),
	)
	return err
}

// GetRecipe returns one recipe or ErrNotFound.
func (s *Store) GetRecipe(ctx context.Context, id string) (recipe.Recipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ?`, id)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recipe.Recipe{}, ErrNotFound
	}
	return r, err
}

// Recipes loads the recipes with the given IDs in input order. Unknown IDs
// are skipped and duplicates collapse to their first occurrence.
func (s *Store) Recipes(ctx context.Context, ids []string) ([]recipe.Recipe, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	args := make([]any, len(unique))
	for i, id := range unique {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r WHERE r.id IN (`+placeholders(len(unique))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]recipe.Recipe, len(unique))
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]recipe.Recipe, 0, len(byID))
	for _, id := range unique {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// AllRecipeIDs lists every stored recipe ID, oldest first.
func (s *Store) AllRecipeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM recipes ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateMealPrepScore persists the computed meal-prep score of a recipe.
func (s *Store) UpdateMealPrepScore(ctx context.Context, id string, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recipes SET meal_prep_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MealPrepScore returns the stored score. ok is false when the recipe has
// not been scored since it was last saved.
func (s *Store) MealPrepScore(ctx context.Context, id string) (score int, ok bool, err error) {
	var v sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT meal_prep_score FROM recipes WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, err
	}
	return int(v.Int64), v.Valid, nil
}

func (s *Store) recipeExists(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("recipe %q: %w", id, ErrNotFound)
	}
	return nil
}
