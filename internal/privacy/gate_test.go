package privacy

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/mealrank/internal/behavior"
	"github.com/kalambet/mealrank/internal/recipe"
)

// --- Mock source ---

type mockSource struct {
	mu    sync.Mutex
	calls map[string]int

	feedback  []behavior.FeedbackRecord
	goals     *recipe.MacroGoals
	purchased []string
	failOn    string
}

func newMockSource() *mockSource {
	return &mockSource{
		calls: make(map[string]int),
		feedback: []behavior.FeedbackRecord{
			{Recipe: recipe.Recipe{ID: "r1", Cuisine: "Thai"}, Liked: true, CreatedAt: time.Now()},
		},
		goals:     &recipe.MacroGoals{Calories: 2000},
		purchased: []string{"Rice"},
	}
}

func (m *mockSource) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	if m.failOn == name {
		return errors.New("store unavailable")
	}
	return nil
}

func (m *mockSource) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockSource) Feedback(context.Context, string) ([]behavior.FeedbackRecord, error) {
	return m.feedback, m.record("feedback")
}

func (m *mockSource) Saved(context.Context, string) ([]behavior.SavedRecord, error) {
	return nil, m.record("saved")
}

func (m *mockSource) MealHistory(context.Context, string) ([]behavior.HistoryRecord, error) {
	return nil, m.record("history")
}

func (m *mockSource) MacroGoals(context.Context, string) (*recipe.MacroGoals, error) {
	return m.goals, m.record("goals")
}

func (m *mockSource) PurchasedIngredients(context.Context, string) ([]string, error) {
	return m.purchased, m.record("purchased")
}

// --- Tests ---

func TestGate_DisabledNeverTouchesSource(t *testing.T) {
	src := newMockSource()
	g := NewGate(src)

	d := g.Resolve(context.Background(), "u1", Settings{AnalyticsEnabled: true, LocationServicesEnabled: true})

	if d.UsePersonalization {
		t.Error("expected UsePersonalization=false")
	}
	if !d.Profile.IsEmpty() || d.MacroGoals != nil || d.Pantry != nil {
		t.Errorf("disabled decision carries personal data: %+v", d)
	}
	if n := src.total(); n != 0 {
		t.Errorf("source called %d times with data sharing disabled, want 0", n)
	}
}

func TestGate_EnabledFetchesEachInputOnce(t *testing.T) {
	src := newMockSource()
	g := NewGate(src)

	d := g.Resolve(context.Background(), "u1", Settings{DataSharingEnabled: true, LocationServicesEnabled: true})

	if !d.UsePersonalization {
		t.Fatal("expected UsePersonalization=true")
	}
	for _, name := range []string{"feedback", "saved", "history", "goals", "purchased"} {
		if src.calls[name] != 1 {
			t.Errorf("%s fetched %d times, want 1", name, src.calls[name])
		}
	}
	if len(d.Profile.Liked) != 1 {
		t.Errorf("expected 1 liked entry, got %d", len(d.Profile.Liked))
	}
	if d.MacroGoals == nil || d.MacroGoals.Calories != 2000 {
		t.Errorf("macro goals not carried: %+v", d.MacroGoals)
	}
	if !d.Pantry.Has("rice") {
		t.Error("expected pantry to contain normalized 'rice'")
	}
}

func TestGate_LocationDisabledSkipsPurchases(t *testing.T) {
	src := newMockSource()
	g := NewGate(src)

	d := g.Resolve(context.Background(), "u1", Settings{DataSharingEnabled: true})

	if !d.UsePersonalization {
		t.Fatal("expected UsePersonalization=true")
	}
	if src.calls["purchased"] != 0 {
		t.Errorf("purchases fetched %d times with location disabled", src.calls["purchased"])
	}
	if d.Pantry != nil {
		t.Errorf("expected nil pantry, got %v", d.Pantry)
	}
}

func TestGate_StoreFailureDegrades(t *testing.T) {
	for _, failOn := range []string{"feedback", "saved", "history", "goals", "purchased"} {
		t.Run(failOn, func(t *testing.T) {
			src := newMockSource()
			src.failOn = failOn
			g := NewGate(src)

			d := g.Resolve(context.Background(), "u1", Settings{DataSharingEnabled: true, LocationServicesEnabled: true})
			if d.UsePersonalization {
				t.Error("expected degraded decision")
			}
			if !d.Degraded {
				t.Error("expected Degraded=true")
			}
			if !d.Profile.IsEmpty() || d.MacroGoals != nil {
				t.Errorf("degraded decision carries personal data: %+v", d)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/rank?analytics=1&location=true", nil)
	r.Header.Set(HeaderDataSharing, "true")
	r.Header.Set(HeaderLocation, "false")

	s := FromRequest(r)
	if !s.DataSharingEnabled {
		t.Error("data sharing header not read")
	}
	if !s.AnalyticsEnabled {
		t.Error("analytics query fallback not read")
	}
	if s.LocationServicesEnabled {
		t.Error("header should take precedence over query")
	}
}

func TestFromRequest_DefaultsToDisabled(t *testing.T) {
	r := httptest.NewRequest("POST", "/rank", nil)
	r.Header.Set(HeaderDataSharing, "maybe")

	s := FromRequest(r)
	if s != (Settings{}) {
		t.Errorf("expected all-false settings, got %+v", s)
	}
}

func TestSettingsApply_RoundTrip(t *testing.T) {
	want := Settings{DataSharingEnabled: true, LocationServicesEnabled: true}
	r := httptest.NewRequest("POST", "/rank", nil)
	want.Apply(r.Header)
	if got := FromRequest(r); got != want {
		t.Errorf("FromRequest after Apply = %+v, want %+v", got, want)
	}
}
