package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Log          LogConfig
	API          APIConfig
	Ranking      RankingConfig
	Availability AvailabilityConfig
	Breaker      BreakerConfig
	Worker       WorkerConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	// Token is the bearer token required on every API call. Secret: read from
	// the environment or the secrets file, never from the config file.
	Token string
}

type RankingConfig struct {
	WeightBehavioral   float64
	WeightMacroFit     float64
	WeightMealPrep     float64
	WeightAvailability float64
	MealsPerDay        int
	Concurrency        int
}

type AvailabilityConfig struct {
	MinScore int
}

type BreakerConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
}

type WorkerConfig struct {
	PollInterval time.Duration
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Ranking: RankingConfig{
			WeightBehavioral: 0.5,
			WeightMacroFit:   0.3,
			WeightMealPrep:   0.2,
			MealsPerDay:      3,
			Concurrency:      4,
		},
		Availability: AvailabilityConfig{
			MinScore: 70,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		Worker: WorkerConfig{
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/mealrank/config.json, then applies MEALRANK_* environment
// overrides. The API token comes from MEALRANK_API_TOKEN, falling back to the
// secrets file at $XDG_DATA_HOME/mealrank/secrets.json.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), secretsFile{})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(service, account string) (string, error)
}

const (
	secretService  = "mealrank"
	secretAPIToken = "api_token"
)

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		if tok, err := secrets.Get(secretService, secretAPIToken); err == nil && tok != "" {
			cfg.API.Token = tok
		}
	}

	if cfg.API.Token == "" {
		return Config{}, fmt.Errorf("missing required config: API token. " +
			"Set it via environment variable MEALRANK_API_TOKEN or `mealrank config set-token`")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Ranking.MealsPerDay <= 0 {
		return fmt.Errorf("invalid ranking.meals_per_day %d: must be positive", c.Ranking.MealsPerDay)
	}
	if c.Ranking.Concurrency <= 0 {
		return fmt.Errorf("invalid ranking.concurrency %d: must be positive", c.Ranking.Concurrency)
	}
	if c.Availability.MinScore < 0 || c.Availability.MinScore > 100 {
		return fmt.Errorf("invalid availability.min_score %d: must be within [0,100]", c.Availability.MinScore)
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("invalid breaker.failure_threshold %d: must be positive", c.Breaker.FailureThreshold)
	}
	return nil
}
