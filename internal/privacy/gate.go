package privacy

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/mealrank/internal/behavior"
	"github.com/kalambet/mealrank/internal/metrics"
	"github.com/kalambet/mealrank/internal/recipe"
	"github.com/kalambet/mealrank/internal/scoring"
)

// Source is the personal data the gate may fetch. Implemented by
// storage.Store and storage.Guarded.
type Source interface {
	Feedback(ctx context.Context, userID string) ([]behavior.FeedbackRecord, error)
	Saved(ctx context.Context, userID string) ([]behavior.SavedRecord, error)
	MealHistory(ctx context.Context, userID string) ([]behavior.HistoryRecord, error)
	MacroGoals(ctx context.Context, userID string) (*recipe.MacroGoals, error)
	PurchasedIngredients(ctx context.Context, userID string) ([]string, error)
}

// Decision is the outcome of the gate for one request. When
// UsePersonalization is false every other field is zero.
type Decision struct {
	UsePersonalization bool
	Profile            behavior.Profile
	MacroGoals         *recipe.MacroGoals
	// Pantry is nil unless location services are also enabled.
	Pantry scoring.Pantry
	// Degraded is set when personalization was allowed but a fetch failed.
	Degraded bool
}

// Gate decides whether personal data enters the scoring path at all.
type Gate struct {
	source Source
	logger *slog.Logger
}

// NewGate creates a Gate reading from source.
func NewGate(source Source) *Gate {
	return &Gate{source: source, logger: slog.Default()}
}

// Resolve runs the fetch phase for one request. With data sharing disabled
// the source is never touched. Any fetch error degrades to a
// non-personalized decision instead of failing; the caller checks ctx for
// cancellation.
func (g *Gate) Resolve(ctx context.Context, userID string, s Settings) Decision {
	if !s.DataSharingEnabled {
		metrics.GateDecisions.WithLabelValues("disabled").Inc()
		return Decision{}
	}

	d, err := g.fetch(ctx, userID, s.LocationServicesEnabled)
	if err != nil {
		g.logger.Warn("gate: personal data fetch failed, degrading", "error", err)
		metrics.GateDecisions.WithLabelValues("degraded").Inc()
		return Decision{Degraded: true}
	}
	metrics.GateDecisions.WithLabelValues("personalized").Inc()
	return d
}

// fetch gathers every personal input exactly once, concurrently.
func (g *Gate) fetch(ctx context.Context, userID string, withLocation bool) (Decision, error) {
	var (
		feedback  []behavior.FeedbackRecord
		saved     []behavior.SavedRecord
		history   []behavior.HistoryRecord
		goals     *recipe.MacroGoals
		purchased []string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		if feedback, err = g.source.Feedback(egCtx, userID); err != nil {
			return fmt.Errorf("loading feedback: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		if saved, err = g.source.Saved(egCtx, userID); err != nil {
			return fmt.Errorf("loading saved recipes: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		if history, err = g.source.MealHistory(egCtx, userID); err != nil {
			return fmt.Errorf("loading meal history: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		if goals, err = g.source.MacroGoals(egCtx, userID); err != nil {
			return fmt.Errorf("loading macro goals: %w", err)
		}
		return nil
	})
	if withLocation {
		eg.Go(func() (err error) {
			if purchased, err = g.source.PurchasedIngredients(egCtx, userID); err != nil {
				return fmt.Errorf("loading ingredient purchases: %w", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Decision{}, err
	}

	d := Decision{
		UsePersonalization: true,
		Profile:            behavior.Build(feedback, saved, history),
		MacroGoals:         goals,
	}
	if withLocation {
		d.Pantry = scoring.NewPantry(purchased)
	}
	return d, nil
}
