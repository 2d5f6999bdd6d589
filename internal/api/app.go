package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/mealrank/internal/mealprep"
	"github.com/kalambet/mealrank/internal/privacy"
	"github.com/kalambet/mealrank/internal/ranking"
	"github.com/kalambet/mealrank/internal/recipe"
	"github.com/kalambet/mealrank/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Store   *storage.Store
	Ranking *ranking.Service
	Token   string
	// MinAvailability is the filter threshold when a request omits one.
	MinAvailability int
}

// NewAppHandler returns the ranking API. /health and /metrics are served
// without authentication; everything else requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/rank", handleRank(deps))
		r.Post("/mealprep/score", handleMealPrepScore(deps))
		r.Post("/mealprep/rescore", handleMealPrepRescore(deps))
		r.Post("/availability/filter", handleAvailabilityFilter(deps))

		r.Post("/recipes", handleSaveRecipe(deps))
		r.Get("/recipes/{id}", handleGetRecipe(deps))
		r.Post("/feedback", handleFeedback(deps))
		r.Post("/saved", handleSaved(deps))
		r.Post("/meal-history", handleMealHistory(deps))
		r.Get("/macro-goals/{userID}", handleGetMacroGoals(deps))
		r.Put("/macro-goals/{userID}", handlePutMacroGoals(deps))
		r.Post("/ingredient-costs", handleAddIngredientCost(deps))
		r.Get("/ingredient-costs", handleListIngredientCosts(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			httpError(w, http.StatusServiceUnavailable, "server_error", "storage unavailable: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

type RankRequest struct {
	UserID       string           `json:"user_id"`
	Candidates   []recipe.Recipe  `json:"candidates,omitempty"`
	CandidateIDs []string         `json:"candidate_ids,omitempty"`
	Weights      *ranking.Weights `json:"weights,omitempty"`
}

func handleRank(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RankRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if len(req.Candidates) > 0 && len(req.CandidateIDs) > 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "provide either candidates or candidate_ids, not both")
			return
		}

		settings := privacy.FromRequest(r)
		var (
			results []ranking.RankedResult
			err     error
		)
		if len(req.CandidateIDs) > 0 {
			results, err = deps.Ranking.RankByIDs(r.Context(), req.UserID, req.CandidateIDs, settings, req.Weights)
		} else {
			results, err = deps.Ranking.Rank(r.Context(), req.UserID, req.Candidates, settings, req.Weights)
		}
		if err != nil {
			rankingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

type MealPrepScoreRequest struct {
	Recipe   *recipe.Recipe `json:"recipe,omitempty"`
	RecipeID string         `json:"recipe_id,omitempty"`
}

func handleMealPrepScore(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MealPrepScoreRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var rec recipe.Recipe
		switch {
		case req.Recipe != nil:
			rec = *req.Recipe
		case req.RecipeID != "":
			got, err := deps.Store.GetRecipe(r.Context(), req.RecipeID)
			if err != nil {
				storeError(w, err, "recipe %s", req.RecipeID)
				return
			}
			rec = got
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "recipe or recipe_id is required")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"recipe_id": rec.ID,
			"score":     deps.Ranking.ScoreMealPrep(rec),
		})
	}
}

func handleMealPrepRescore(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RecipeID string `json:"recipe_id"`
		}
		// An empty body rescores everything.
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		if req.RecipeID != "" {
			if _, err := deps.Store.GetRecipe(r.Context(), req.RecipeID); err != nil {
				storeError(w, err, "recipe %s", req.RecipeID)
				return
			}
		}

		jobID, err := mealprep.Enqueue(r.Context(), deps.Store, req.RecipeID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue rescore: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": "queued",
		})
	}
}

type AvailabilityFilterRequest struct {
	UserID       string   `json:"user_id"`
	CandidateIDs []string `json:"candidate_ids"`
	MinScore     *int     `json:"min_score,omitempty"`
}

func handleAvailabilityFilter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityFilterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		minScore := deps.MinAvailability
		if req.MinScore != nil {
			if *req.MinScore < 0 || *req.MinScore > 100 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "min_score must be within [0,100]")
				return
			}
			minScore = *req.MinScore
		}

		ids, err := deps.Ranking.FilterByAvailability(r.Context(), req.UserID, req.CandidateIDs, minScore)
		if err != nil {
			rankingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recipe_ids": ids})
	}
}

func rankingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ranking.ErrInvalidWeights), errors.Is(err, ranking.ErrInvalidMinScore):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusServiceUnavailable, "api_error", "request cancelled: %v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "ranking failed: %v", err)
	}
}

func storeError(w http.ResponseWriter, err error, format string, args ...any) {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "failed to load %s: %v", what, err)
}

// decodeBody reads a size-limited JSON body into v, writing a 400 and
// returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
