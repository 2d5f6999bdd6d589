package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kalambet/mealrank/internal/behavior"
	"github.com/kalambet/mealrank/internal/metrics"
	"github.com/kalambet/mealrank/internal/recipe"
)

// BreakerConfig configures the circuit breaker in front of the store reads.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "personal-store",
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Guarded wraps the read path of a Store with a circuit breaker. Once the
// store fails repeatedly, reads fail fast with gobreaker.ErrOpenState and the
// ranking degrades to non-personalized scores. Cancelled contexts do not count
// as failures.
type Guarded struct {
	store *Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewGuarded wraps store.
func NewGuarded(store *Store, cfg BreakerConfig) *Guarded {
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig().Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("storage: circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return &Guarded{store: store, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

// guard runs fn through the breaker.
func guard[T any](g *Guarded, fn func() (T, error)) (T, error) {
	v, err := g.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (g *Guarded) Feedback(ctx context.Context, userID string) ([]behavior.FeedbackRecord, error) {
	return guard(g, func() ([]behavior.FeedbackRecord, error) { return g.store.Feedback(ctx, userID) })
}

func (g *Guarded) Saved(ctx context.Context, userID string) ([]behavior.SavedRecord, error) {
	return guard(g, func() ([]behavior.SavedRecord, error) { return g.store.Saved(ctx, userID) })
}

func (g *Guarded) MealHistory(ctx context.Context, userID string) ([]behavior.HistoryRecord, error) {
	return guard(g, func() ([]behavior.HistoryRecord, error) { return g.store.MealHistory(ctx, userID) })
}

func (g *Guarded) MacroGoals(ctx context.Context, userID string) (*recipe.MacroGoals, error) {
	return guard(g, func() (*recipe.MacroGoals, error) { return g.store.MacroGoals(ctx, userID) })
}

func (g *Guarded) PurchasedIngredients(ctx context.Context, userID string) ([]string, error) {
	return guard(g, func() ([]string, error) { return g.store.PurchasedIngredients(ctx, userID) })
}

func (g *Guarded) Recipes(ctx context.Context, ids []string) ([]recipe.Recipe, error) {
	return guard(g, func() ([]recipe.Recipe, error) { return g.store.Recipes(ctx, ids) })
}
