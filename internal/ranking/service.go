package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/mealrank/internal/metrics"
	"github.com/kalambet/mealrank/internal/privacy"
	"github.com/kalambet/mealrank/internal/recipe"
	"github.com/kalambet/mealrank/internal/scoring"
)

// DefaultMinAvailability is the availability threshold callers apply when a
// request does not supply one.
const DefaultMinAvailability = 70

// ErrInvalidMinScore is returned for availability thresholds outside [0,100].
var ErrInvalidMinScore = errors.New("invalid availability threshold")

const defaultConcurrency = 4

// RecipeStore is the recipe and purchase data the Service reads outside the
// privacy gate. Implemented by storage.Store and storage.Guarded.
type RecipeStore interface {
	Recipes(ctx context.Context, ids []string) ([]recipe.Recipe, error)
	PurchasedIngredients(ctx context.Context, userID string) ([]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config tunes the Service.
type Config struct {
	Weights     Weights
	MealsPerDay int
	// Concurrency bounds the scoring fan-out.
	Concurrency int
	Behavioral  scoring.BehavioralConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Weights:     DefaultWeights(),
		MealsPerDay: scoring.DefaultMealsPerDay,
		Concurrency: defaultConcurrency,
		Behavioral:  scoring.DefaultBehavioralConfig(),
	}
}

// Service is the ranking entry point: fetch through the privacy gate once,
// score every candidate, aggregate and sort.
type Service struct {
	gate   *privacy.Gate
	store  RecipeStore
	cfg    Config
	clock  Clock
	logger *slog.Logger
}

// NewService validates cfg and returns a Service.
func NewService(gate *privacy.Gate, store RecipeStore, cfg Config) (*Service, error) {
	return NewServiceWithClock(gate, store, cfg, realClock{})
}

// NewServiceWithClock creates a Service with a custom clock (for testing).
func NewServiceWithClock(gate *privacy.Gate, store RecipeStore, cfg Config, clock Clock) (*Service, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("default weights: %w", err)
	}
	if cfg.MealsPerDay <= 0 {
		cfg.MealsPerDay = scoring.DefaultMealsPerDay
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		gate:   gate,
		store:  store,
		cfg:    cfg,
		clock:  clock,
		logger: slog.Default(),
	}, nil
}

// Rank orders candidates for userID. A nil weights uses the configured
// default. Invalid weights are rejected before any data is fetched. Store
// failures never fail the request: the ranking falls back to
// non-personalized scores.
func (s *Service) Rank(ctx context.Context, userID string, candidates []recipe.Recipe, settings privacy.Settings, weights *Weights) ([]RankedResult, error) {
	start := s.clock.Now()

	w := s.cfg.Weights
	if weights != nil {
		w = *weights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	// Phase 1: one blocking fetch.
	decision := s.gate.Resolve(ctx, userID, settings)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 2: pure scoring over immutable inputs. Runs to completion.
	affinity := scoring.NewAffinity(s.cfg.Behavioral, decision.Profile, start)
	scored := make([]Scored, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range candidates {
		g.Go(func() error {
			scored[i] = s.score(candidates[i], affinity, decision)
			return nil
		})
	}
	_ = g.Wait() // scorers do not fail

	results := Aggregate(scored, w)

	metrics.ObserveRank(decision.UsePersonalization, len(candidates), time.Since(start))
	attrs := []any{
		"candidates", len(candidates),
		"personalized", decision.UsePersonalization,
		"degraded", decision.Degraded,
	}
	if settings.AnalyticsEnabled {
		attrs = append(attrs, "user_id", userID)
	}
	s.logger.Debug("ranking: request complete", attrs...)

	return results, nil
}

// RankByIDs loads the candidate recipes and ranks them. Unknown IDs are
// skipped.
func (s *Service) RankByIDs(ctx context.Context, userID string, ids []string, settings privacy.Settings, weights *Weights) ([]RankedResult, error) {
	if weights != nil {
		if err := weights.Validate(); err != nil {
			return nil, err
		}
	}
	candidates, err := s.store.Recipes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidate recipes: %w", err)
	}
	return s.Rank(ctx, userID, candidates, settings, weights)
}

func (s *Service) score(r recipe.Recipe, affinity *scoring.Affinity, d privacy.Decision) Scored {
	return Scored{
		RecipeID:  r.ID,
		CreatedAt: r.CreatedAt,
		Components: ComponentScores{
			Behavioral:   affinity.Score(r),
			MacroFit:     scoring.MacroFit(r.Macros, d.MacroGoals, s.cfg.MealsPerDay),
			MealPrep:     float64(scoring.MealPrep(r.MealPrep)),
			Availability: float64(scoring.Availability(r.Ingredients, d.Pantry)),
		},
	}
}

// DefaultWeights returns the weights applied when a request supplies none.
func (s *Service) DefaultWeights() Weights {
	return s.cfg.Weights
}

// ScoreMealPrep is the standalone meal-prep score of r.
func (s *Service) ScoreMealPrep(r recipe.Recipe) int {
	return scoring.MealPrep(r.MealPrep)
}

// FilterByAvailability returns the IDs, in input order, whose availability
// score for userID is at least minScore. A minScore of 0 keeps every known
// recipe. Unknown IDs are dropped.
func (s *Service) FilterByAvailability(ctx context.Context, userID string, candidateIDs []string, minScore int) ([]string, error) {
	if minScore < 0 || minScore > 100 {
		return nil, fmt.Errorf("%w: min score %d must be within [0,100]", ErrInvalidMinScore, minScore)
	}
	if len(candidateIDs) == 0 {
		return []string{}, nil
	}

	var (
		recipes   []recipe.Recipe
		purchased []string
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		if recipes, err = s.store.Recipes(egCtx, candidateIDs); err != nil {
			return fmt.Errorf("loading recipes: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		if purchased, err = s.store.PurchasedIngredients(egCtx, userID); err != nil {
			return fmt.Errorf("loading ingredient purchases: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	pantry := scoring.NewPantry(purchased)
	byID := make(map[string]recipe.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}

	kept := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		r, ok := byID[id]
		if !ok {
			continue
		}
		if scoring.Availability(r.Ingredients, pantry) >= minScore {
			kept = append(kept, id)
		}
	}
	return kept, nil
}
