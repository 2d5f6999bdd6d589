package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secretStore interface.
type mockSecrets struct {
	value string
	err   error
}

func (m mockSecrets) Get(service, account string) (string, error) {
	return m.value, m.err
}

var noSecrets = mockSecrets{err: errors.New("not found")}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return openFileBackend(path)
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("MEALRANK_API_TOKEN", "test-token")

	cfg, err := loadWith(b, noSecrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Ranking.WeightBehavioral != 0.5 || cfg.Ranking.WeightMacroFit != 0.3 || cfg.Ranking.WeightMealPrep != 0.2 || cfg.Ranking.WeightAvailability != 0 {
		t.Errorf("Ranking weights = %+v", cfg.Ranking)
	}
	if cfg.Ranking.MealsPerDay != 3 {
		t.Errorf("Ranking.MealsPerDay = %d, want 3", cfg.Ranking.MealsPerDay)
	}
	if cfg.Availability.MinScore != 70 {
		t.Errorf("Availability.MinScore = %d, want 70", cfg.Availability.MinScore)
	}
	if cfg.Breaker.OpenTimeout != 30*time.Second {
		t.Errorf("Breaker.OpenTimeout = %v, want 30s", cfg.Breaker.OpenTimeout)
	}
	if cfg.Worker.PollInterval != 500*time.Millisecond {
		t.Errorf("Worker.PollInterval = %v, want 500ms", cfg.Worker.PollInterval)
	}
	if cfg.API.Token != "test-token" {
		t.Errorf("API.Token = %q, want test-token", cfg.API.Token)
	}
}

// TestFileParsing verifies that values are read from the JSON file.
func TestFileParsing(t *testing.T) {
	b := writeTempConfig(t, `{
  "server.port": 5000,
  "storage.data_dir": "/tmp/mealrank-test",
  "log.level": "debug",
  "ranking.weight_behavioral": 0.4,
  "ranking.weight_availability": "0.1",
  "ranking.meals_per_day": 4,
  "breaker.open_timeout": "1m",
  "api.token": "ignored-from-file"
}`)
	t.Setenv("MEALRANK_API_TOKEN", "")

	cfg, err := loadWith(b, mockSecrets{value: "secret-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/mealrank-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Ranking.WeightBehavioral != 0.4 {
		t.Errorf("WeightBehavioral = %v, want 0.4", cfg.Ranking.WeightBehavioral)
	}
	if cfg.Ranking.WeightAvailability != 0.1 {
		t.Errorf("WeightAvailability = %v, want 0.1", cfg.Ranking.WeightAvailability)
	}
	if cfg.Ranking.MealsPerDay != 4 {
		t.Errorf("MealsPerDay = %d, want 4", cfg.Ranking.MealsPerDay)
	}
	if cfg.Breaker.OpenTimeout != time.Minute {
		t.Errorf("OpenTimeout = %v, want 1m", cfg.Breaker.OpenTimeout)
	}
	if cfg.API.Token != "secret-token" {
		t.Errorf("API.Token = %q, secrets must not come from the config file", cfg.API.Token)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	b := writeTempConfig(t, `{"server.port": 5000, "ranking.concurrency": 2}`)
	t.Setenv("MEALRANK_API_TOKEN", "env-token")
	t.Setenv("MEALRANK_SERVER_PORT", "6000")
	t.Setenv("MEALRANK_WORKER_POLL_INTERVAL", "2s")
	t.Setenv("MEALRANK_RANKING_CONCURRENCY", "not-a-number")

	cfg, err := loadWith(b, mockSecrets{value: "secret-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Worker.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.Worker.PollInterval)
	}
	if cfg.Ranking.Concurrency != 2 {
		t.Errorf("unparseable env should keep file value: Concurrency = %d, want 2", cfg.Ranking.Concurrency)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("API.Token = %q, want env-token", cfg.API.Token)
	}
}

// TestMissingRequiredField verifies a clear error when the token is missing everywhere.
func TestMissingRequiredField(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("MEALRANK_API_TOKEN", "")

	_, err := loadWith(b, noSecrets)
	if err == nil {
		t.Fatal("expected error for missing API token, got nil")
	}
	if want := "missing required config"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err.Error(), want)
	}
}

func TestInvalidValuesRejected(t *testing.T) {
	t.Setenv("MEALRANK_API_TOKEN", "tok")

	for name, content := range map[string]string{
		"meals_per_day": `{"ranking.meals_per_day": 0}`,
		"min_score":     `{"availability.min_score": 150}`,
		"port":          `{"server.port": 70000}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := loadWith(writeTempConfig(t, content), noSecrets); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSetKeyAndUnset(t *testing.T) {
	b := writeTempConfig(t, `{}`)
	t.Setenv("MEALRANK_API_TOKEN", "tok")

	if err := setKey(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKey port: %v", err)
	}
	if err := setKey(b, "ranking.weight_meal_prep", "0.25"); err != nil {
		t.Fatalf("setKey weight: %v", err)
	}
	if err := setKey(b, "worker.poll_interval", "1s"); err != nil {
		t.Fatalf("setKey poll: %v", err)
	}

	reloaded := openFileBackend(b.path)
	cfg, err := loadWith(reloaded, noSecrets)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4200 || cfg.Ranking.WeightMealPrep != 0.25 || cfg.Worker.PollInterval != time.Second {
		t.Errorf("persisted values not applied: %+v", cfg)
	}

	if err := unsetKey(reloaded, "server.port"); err != nil {
		t.Fatalf("unsetKey: %v", err)
	}
	cfg, err = loadWith(openFileBackend(b.path), noSecrets)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d after unset, want default 4100", cfg.Server.Port)
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := writeTempConfig(t, `{}`)

	tests := []struct{ key, value, want string }{
		{"api.token", "x", "cannot set secret"},
		{"nope.key", "x", "unknown config key"},
		{"server.port", "abc", "invalid integer"},
		{"ranking.weight_behavioral", "lots", "invalid float"},
		{"breaker.open_timeout", "soon", "invalid duration"},
	}
	for _, tt := range tests {
		err := setKey(b, tt.key, tt.value)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("setKey(%q, %q) = %v, want error containing %q", tt.key, tt.value, err, tt.want)
		}
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.API.Token = "super-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "api.token" || k.Value == "super-secret" {
			t.Errorf("ShowAll leaked secret: %+v", k)
		}
	}
	for _, k := range ValidKeys() {
		if k == "api.token" {
			t.Error("ValidKeys lists the secret key")
		}
	}
}

func TestSetTokenRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := SetToken("  "); err == nil {
		t.Error("expected error for blank token")
	}
	if err := SetToken("stored-token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	got, err := secretsFile{}.Get(secretService, secretAPIToken)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "stored-token" {
		t.Errorf("token = %q, want stored-token", got)
	}
}

func TestFileBackend_ChecksKeysOnLoad(t *testing.T) {
	b := writeTempConfig(t, `{
  "server.port": 4200,
  "ranking.weight_behavioral": 1.5,
  "ranking.weight_macro_fit": "lots",
  "ranking.weight_meal_prep": "0.25",
  "api.token": "leaked",
  "ranking.weight_cheese": 1
}`)

	if len(b.warnings) != 4 {
		t.Fatalf("warnings = %d (%v), want 4", len(b.warnings), b.warnings)
	}
	// Sorted key order makes the report stable.
	if !strings.Contains(b.warnings[0], "api.token") || !strings.Contains(b.warnings[3], "weight_macro_fit") {
		t.Errorf("warnings out of order: %v", b.warnings)
	}
	for _, key := range []string{"api.token", "ranking.weight_behavioral", "ranking.weight_macro_fit"} {
		if _, ok, _ := b.GetString(key); ok {
			t.Errorf("%s should have been dropped", key)
		}
	}
	if _, ok, _ := b.GetString("ranking.weight_cheese"); !ok {
		t.Error("unknown keys are reported, not dropped")
	}

	cfg, err := loadWith(b, mockSecrets{value: "t"})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4200 || cfg.Ranking.WeightMealPrep != 0.25 {
		t.Errorf("valid keys not applied: %+v", cfg)
	}
	if cfg.Ranking.WeightBehavioral != 0.5 || cfg.Ranking.WeightMacroFit != 0.3 {
		t.Errorf("rejected weights should keep defaults, got %+v", cfg.Ranking)
	}
}
