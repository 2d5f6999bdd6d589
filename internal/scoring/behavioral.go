package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/kalambet/mealrank/internal/behavior"
	"github.com/kalambet/mealrank/internal/recipe"
)

// NeutralBehavioral is returned when a user has no usable history. Absence of
// data must not read as active dislike.
const NeutralBehavioral = 50.0

// BehavioralConfig holds the tunable constants of the affinity scorer.
type BehavioralConfig struct {
	// Similarity sub-weights. They are expected to sum to 1.
	CuisineWeight    float64
	IngredientWeight float64
	MacroWeight      float64
	CookTimeWeight   float64

	// CookTimeScale is the minute difference at which cook-time closeness halves.
	CookTimeScale float64

	// HalfLife is the age at which a signal counts half as much.
	HalfLife time.Duration
	// MinRecency floors the decay so old history still registers. Entries
	// without a timestamp get this weight.
	MinRecency float64

	// Vote weights per signal source. Positive sources add, negative sources
	// subtract.
	LikedVote            float64
	SavedVote            float64
	ConsumedLikedVote    float64
	DislikedVote         float64
	ConsumedDislikedVote float64

	// Saturation is the net vote at which the score reaches ~88 (or ~12).
	Saturation float64
}

// DefaultBehavioralConfig returns the production tuning.
func DefaultBehavioralConfig() BehavioralConfig {
	return BehavioralConfig{
		CuisineWeight:    0.40,
		IngredientWeight: 0.30,
		MacroWeight:      0.20,
		CookTimeWeight:   0.10,

		CookTimeScale: 10,

		HalfLife:   30 * 24 * time.Hour,
		MinRecency: 0.05,

		LikedVote:            1.0,
		SavedVote:            0.8,
		ConsumedLikedVote:    0.6,
		DislikedVote:         1.0,
		ConsumedDislikedVote: 0.6,

		Saturation: 2.0,
	}
}

type preparedEntry struct {
	cuisine  string
	cookTime int
	macros   recipe.Macros
	tokens   map[string]struct{}
	vote     float64 // signed vote weight times recency decay
}

// Affinity scores candidates against one user's behavior profile. Build it
// once per request with NewAffinity; it is immutable afterwards and safe for
// concurrent use.
type Affinity struct {
	cfg     BehavioralConfig
	entries []preparedEntry
}

// NewAffinity precomputes per-entry token sets and recency-decayed votes
// relative to now.
func NewAffinity(cfg BehavioralConfig, p behavior.Profile, now time.Time) *Affinity {
	a := &Affinity{cfg: cfg, entries: make([]preparedEntry, 0, p.Size())}

	add := func(entries []behavior.Entry, vote float64) {
		for _, e := range entries {
			a.entries = append(a.entries, preparedEntry{
				cuisine:  normalizeCuisine(e.Cuisine),
				cookTime: e.CookTime,
				macros:   e.Macros,
				tokens:   tokenSet(e.Ingredients),
				vote:     vote * cfg.recency(e.Timestamp, now),
			})
		}
	}

	add(p.Liked, cfg.LikedVote)
	add(p.Saved, cfg.SavedVote)
	add(p.Disliked, -cfg.DislikedVote)
	for _, e := range p.Consumed {
		switch e.Feedback {
		case behavior.FeedbackLiked:
			add([]behavior.Entry{e}, cfg.ConsumedLikedVote)
		case behavior.FeedbackDisliked:
			add([]behavior.Entry{e}, -cfg.ConsumedDislikedVote)
		}
	}
	return a
}

// Score returns the 0-100 behavioral affinity of r.
func (a *Affinity) Score(r recipe.Recipe) float64 {
	if len(a.entries) == 0 {
		return NeutralBehavioral
	}

	cand := preparedEntry{
		cuisine:  normalizeCuisine(r.Cuisine),
		cookTime: r.CookTime,
		macros:   r.Macros,
		tokens:   tokenSet(r.Ingredients),
	}

	var net float64
	for _, e := range a.entries {
		net += e.vote * a.cfg.similarity(e, cand)
	}

	return clamp(NeutralBehavioral+50*math.Tanh(net/a.cfg.Saturation), 0, 100)
}

// Behavioral is a convenience wrapper for one-off scoring.
func Behavioral(cfg BehavioralConfig, r recipe.Recipe, p behavior.Profile, now time.Time) float64 {
	return NewAffinity(cfg, p, now).Score(r)
}

// recency returns 0.5^(age/HalfLife), floored at MinRecency. Future
// timestamps count fully.
func (c BehavioralConfig) recency(ts, now time.Time) float64 {
	if ts.IsZero() {
		return c.MinRecency
	}
	age := now.Sub(ts)
	if age <= 0 || c.HalfLife <= 0 {
		return 1
	}
	w := math.Pow(0.5, float64(age)/float64(c.HalfLife))
	if w < c.MinRecency {
		return c.MinRecency
	}
	return w
}

// similarity combines the four closeness terms into [0,1].
func (c BehavioralConfig) similarity(a, b preparedEntry) float64 {
	var s float64
	if a.cuisine != "" && a.cuisine == b.cuisine {
		s += c.CuisineWeight
	}
	s += c.IngredientWeight * jaccard(a.tokens, b.tokens)
	s += c.MacroWeight * macroCloseness(a.macros, b.macros)
	s += c.CookTimeWeight * cookTimeCloseness(a.cookTime, b.cookTime, c.CookTimeScale)
	return s
}

// macroCloseness is 1 minus the RMS of per-macro relative differences.
// Unknown macros on either side contribute nothing.
func macroCloseness(a, b recipe.Macros) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	pairs := [4][2]float64{
		{a.Calories, b.Calories},
		{a.Protein, b.Protein},
		{a.Carbs, b.Carbs},
		{a.Fat, b.Fat},
	}
	var sum float64
	for _, p := range pairs {
		sum += relDiff(p[0], p[1]) * relDiff(p[0], p[1])
	}
	return 1 - math.Sqrt(sum/float64(len(pairs)))
}

func relDiff(x, y float64) float64 {
	x, y = math.Abs(x), math.Abs(y)
	m := math.Max(x, y)
	if m == 0 {
		return 0
	}
	return math.Abs(x-y) / m
}

func cookTimeCloseness(a, b int, scale float64) float64 {
	if a <= 0 || b <= 0 || scale <= 0 {
		return 0
	}
	diff := math.Abs(float64(a - b))
	return 1 / (1 + diff/scale)
}

func normalizeCuisine(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
