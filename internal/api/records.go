package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/mealrank/internal/behavior"
	"github.com/kalambet/mealrank/internal/mealprep"
	"github.com/kalambet/mealrank/internal/recipe"
	"github.com/kalambet/mealrank/internal/storage"
)

func handleSaveRecipe(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec recipe.Recipe
		if !decodeBody(w, r, &rec) {
			return
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}

		if err := deps.Store.SaveRecipe(r.Context(), rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save recipe: %v", err)
			return
		}

		// Without a job the score waits for the next full rescore.
		if _, err := mealprep.Enqueue(r.Context(), deps.Store, rec.ID); err != nil {
			slog.Warn("api: failed to enqueue meal-prep scoring", "recipe_id", rec.ID, "error", err)
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"id":     rec.ID,
			"status": "saved",
		})
	}
}

func handleGetRecipe(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := deps.Store.GetRecipe(r.Context(), id)
		if err != nil {
			storeError(w, err, "recipe %s", id)
			return
		}

		resp := map[string]any{"recipe": rec}
		score, ok, err := deps.Store.MealPrepScore(r.Context(), id)
		if err != nil {
			storeError(w, err, "meal-prep score of %s", id)
			return
		}
		if ok {
			resp["meal_prep_score"] = score
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type FeedbackRequest struct {
	UserID   string    `json:"user_id"`
	RecipeID string    `json:"recipe_id"`
	Liked    bool      `json:"liked"`
	Disliked bool      `json:"disliked"`
	At       time.Time `json:"at,omitempty"`
}

func handleFeedback(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FeedbackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUserAndRecipe(w, req.UserID, req.RecipeID) {
			return
		}
		if req.Liked && req.Disliked {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "liked and disliked are mutually exclusive")
			return
		}

		if err := deps.Store.SaveFeedback(r.Context(), req.UserID, req.RecipeID, req.Liked, req.Disliked, req.At); err != nil {
			storeError(w, err, "recipe %s", req.RecipeID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

type SavedRequest struct {
	UserID   string    `json:"user_id"`
	RecipeID string    `json:"recipe_id"`
	At       time.Time `json:"at,omitempty"`
}

func handleSaved(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SavedRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUserAndRecipe(w, req.UserID, req.RecipeID) {
			return
		}

		if err := deps.Store.SaveRecipeForUser(r.Context(), req.UserID, req.RecipeID, req.At); err != nil {
			storeError(w, err, "recipe %s", req.RecipeID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

type MealHistoryRequest struct {
	UserID     string    `json:"user_id"`
	RecipeID   string    `json:"recipe_id"`
	ConsumedAt time.Time `json:"consumed_at,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
}

func handleMealHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MealHistoryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requireUserAndRecipe(w, req.UserID, req.RecipeID) {
			return
		}
		switch req.Feedback {
		case "", behavior.FeedbackLiked, behavior.FeedbackDisliked:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"feedback must be %q, %q or empty", behavior.FeedbackLiked, behavior.FeedbackDisliked)
			return
		}

		id, err := deps.Store.AddMealHistory(r.Context(), req.UserID, req.RecipeID, req.ConsumedAt, req.Feedback)
		if err != nil {
			storeError(w, err, "recipe %s", req.RecipeID)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "recorded"})
	}
}

func handleGetMacroGoals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		g, err := deps.Store.MacroGoals(r.Context(), userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load macro goals: %v", err)
			return
		}
		if g == nil {
			httpError(w, http.StatusNotFound, "not_found", "no macro goals for user %s", userID)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func handlePutMacroGoals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var g recipe.MacroGoals
		if !decodeBody(w, r, &g) {
			return
		}
		if g.Calories < 0 || g.Protein < 0 || g.Carbs < 0 || g.Fat < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "macro goals must be non-negative")
			return
		}

		if err := deps.Store.SetMacroGoals(r.Context(), userID, g); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save macro goals: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

type IngredientCostRequest struct {
	UserID string `json:"user_id"`
	storage.IngredientCost
}

func handleAddIngredientCost(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngredientCostRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if strings.TrimSpace(req.Ingredient) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ingredient is required")
			return
		}
		if req.Cost < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "cost must be non-negative")
			return
		}

		c, err := deps.Store.AddIngredientCost(r.Context(), req.UserID, req.IngredientCost)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record ingredient cost: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func handleListIngredientCosts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := q.Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		costs, err := deps.Store.IngredientCosts(r.Context(), userID, q.Get("ingredient"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list ingredient costs: %v", err)
			return
		}
		if costs == nil {
			costs = []storage.IngredientCost{}
		}
		writeJSON(w, http.StatusOK, costs)
	}
}

func requireUserAndRecipe(w http.ResponseWriter, userID, recipeID string) bool {
	if userID == "" || recipeID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and recipe_id are required")
		return false
	}
	return true
}
