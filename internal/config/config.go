// Package config resolves runtime settings from the environment. Settings
// come from AGENTEVAL_* variables, optionally seeded from a .env file, and
// provide the defaults the CLI flags override.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment does not say otherwise.
const (
	DefaultAdapter        = "anthropic"
	DefaultMaxConcurrency = 5
	DefaultTimeoutSec     = 300
	DefaultTraceDir       = ".agenteval_traces"
	DefaultHistoryDB      = ".agenteval_history.db"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Adapter        string
	Model          string
	APIKey         string
	Parallel       bool
	MaxConcurrency int
	TimeoutSec     int
	TraceDir       string
	HistoryDB      string
	Debug          bool
}

// Load reads settings from the environment. A .env file in the working
// directory is applied first when present; real environment variables win
// over it.
func Load() (Settings, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	s := Settings{
		Adapter:        envOr("AGENTEVAL_ADAPTER", DefaultAdapter),
		Model:          os.Getenv("AGENTEVAL_MODEL"),
		APIKey:         os.Getenv("AGENTEVAL_API_KEY"),
		TraceDir:       envOr("AGENTEVAL_TRACE_DIR", DefaultTraceDir),
		HistoryDB:      envOr("AGENTEVAL_HISTORY_DB", DefaultHistoryDB),
		MaxConcurrency: DefaultMaxConcurrency,
		TimeoutSec:     DefaultTimeoutSec,
	}

	var err error
	if s.Parallel, err = envBool("AGENTEVAL_PARALLEL", false); err != nil {
		return Settings{}, err
	}
	if s.Debug, err = envBool("AGENTEVAL_DEBUG", false); err != nil {
		return Settings{}, err
	}
	if s.MaxConcurrency, err = envInt("AGENTEVAL_MAX_CONCURRENCY", DefaultMaxConcurrency); err != nil {
		return Settings{}, err
	}
	if s.TimeoutSec, err = envInt("AGENTEVAL_TIMEOUT_SECONDS", DefaultTimeoutSec); err != nil {
		return Settings{}, err
	}

	if s.MaxConcurrency < 1 {
		return Settings{}, fmt.Errorf("AGENTEVAL_MAX_CONCURRENCY must be at least 1, got %d", s.MaxConcurrency)
	}
	if s.TimeoutSec < 0 {
		return Settings{}, fmt.Errorf("AGENTEVAL_TIMEOUT_SECONDS must not be negative, got %d", s.TimeoutSec)
	}

	return s, nil
}

// APIKeyFor resolves the API key for an adapter, falling back to the
// provider's conventional variable when AGENTEVAL_API_KEY is unset.
func (s Settings) APIKeyFor(adapter string) string {
	if s.APIKey != "" {
		return s.APIKey
	}
	switch adapter {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
