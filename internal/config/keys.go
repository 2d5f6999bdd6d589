package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MEALRANK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MEALRANK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "MEALRANK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "MEALRANK_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "ranking.weight_behavioral", typ: kFloat, env: "MEALRANK_RANKING_WEIGHT_BEHAVIORAL",
		apply:   func(cfg *Config, v any) { cfg.Ranking.WeightBehavioral = v.(float64) },
		extract: func(cfg Config) any { return cfg.Ranking.WeightBehavioral },
	},
	{
		key: "ranking.weight_macro_fit", typ: kFloat, env: "MEALRANK_RANKING_WEIGHT_MACRO_FIT",
		apply:   func(cfg *Config, v any) { cfg.Ranking.WeightMacroFit = v.(float64) },
		extract: func(cfg Config) any { return cfg.Ranking.WeightMacroFit },
	},
	{
		key: "ranking.weight_meal_prep", typ: kFloat, env: "MEALRANK_RANKING_WEIGHT_MEAL_PREP",
		apply:   func(cfg *Config, v any) { cfg.Ranking.WeightMealPrep = v.(float64) },
		extract: func(cfg Config) any { return cfg.Ranking.WeightMealPrep },
	},
	{
		key: "ranking.weight_availability", typ: kFloat, env: "MEALRANK_RANKING_WEIGHT_AVAILABILITY",
		apply:   func(cfg *Config, v any) { cfg.Ranking.WeightAvailability = v.(float64) },
		extract: func(cfg Config) any { return cfg.Ranking.WeightAvailability },
	},
	{
		key: "ranking.meals_per_day", typ: kInt, env: "MEALRANK_RANKING_MEALS_PER_DAY",
		apply:   func(cfg *Config, v any) { cfg.Ranking.MealsPerDay = v.(int) },
		extract: func(cfg Config) any { return cfg.Ranking.MealsPerDay },
	},
	{
		key: "ranking.concurrency", typ: kInt, env: "MEALRANK_RANKING_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Ranking.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Ranking.Concurrency },
	},
	{
		key: "availability.min_score", typ: kInt, env: "MEALRANK_AVAILABILITY_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Availability.MinScore = v.(int) },
		extract: func(cfg Config) any { return cfg.Availability.MinScore },
	},
	{
		key: "breaker.failure_threshold", typ: kInt, env: "MEALRANK_BREAKER_FAILURE_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Breaker.FailureThreshold = v.(int) },
		extract: func(cfg Config) any { return cfg.Breaker.FailureThreshold },
	},
	{
		key: "breaker.open_timeout", typ: kDuration, env: "MEALRANK_BREAKER_OPEN_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Breaker.OpenTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Breaker.OpenTimeout },
	},
	{
		key: "worker.poll_interval", typ: kDuration, env: "MEALRANK_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
