// Package mealprep keeps stored meal-prep scores current. The score depends
// only on a recipe's flags, so it is recomputed in the background whenever a
// recipe is saved, and on demand for the whole catalogue.
package mealprep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/mealrank/internal/metrics"
	"github.com/kalambet/mealrank/internal/recipe"
	"github.com/kalambet/mealrank/internal/storage"
)

// JobType is the queue type handled by Worker.
const JobType = "mealprep_score"

// JobStore abstracts the job queue and recipe operations the worker needs.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	GetRecipe(ctx context.Context, id string) (recipe.Recipe, error)
	AllRecipeIDs(ctx context.Context) ([]string, error)
	UpdateMealPrepScore(ctx context.Context, id string, score int) error
}

// Scorer computes the meal-prep score of a recipe.
type Scorer interface {
	ScoreMealPrep(r recipe.Recipe) int
}

// Worker processes mealprep_score jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	scorer Scorer
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, scorer Scorer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		scorer: scorer,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

type payload struct {
	// RecipeID is empty for a full rescore.
	RecipeID string `json:"recipe_id,omitempty"`
}

// Enqueue schedules a rescore of one recipe, or of every recipe when
// recipeID is empty. It returns the job ID.
func Enqueue(ctx context.Context, store JobStore, recipeID string) (string, error) {
	body, err := json.Marshal(payload{RecipeID: recipeID})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(body),
	}
	if err := store.EnqueueJob(ctx, job); err != nil {
		return "", fmt.Errorf("enqueuing %s job: %w", JobType, err)
	}
	return job.ID, nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("mealprep: worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single mealprep_score job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	n, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("mealprep: job failed", "job_id", job.ID, "error", err)
		metrics.MealPrepJobs.WithLabelValues("failed").Inc()
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("mealprep: failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	metrics.MealPrepJobs.WithLabelValues("completed").Inc()
	w.logger.Debug("mealprep: job completed", "job_id", job.ID, "recipes", n)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (int, error) {
	var p payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return 0, fmt.Errorf("parsing payload: %w", err)
	}

	ids := []string{p.RecipeID}
	if p.RecipeID == "" {
		all, err := w.store.AllRecipeIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing recipes: %w", err)
		}
		ids = all
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		r, err := w.store.GetRecipe(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("loading recipe %s: %w", id, err)
		}
		if err := w.store.UpdateMealPrepScore(ctx, id, w.scorer.ScoreMealPrep(r)); err != nil {
			return 0, fmt.Errorf("storing score for %s: %w", id, err)
		}
	}
	return len(ids), nil
}
