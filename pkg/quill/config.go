package quill

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the engine knobs. Load reads QUILL_* environment
// variables; zero-configuration use gets the defaults below.
type Config struct {
	// CacheMaxSize is the maximum number of parsed templates to cache.
	// 0 disables caching.
	CacheMaxSize int `env:"QUILL_CACHE_MAX_SIZE" envDefault:"100"`
	// CacheTTL is the time-to-live for cached templates. 0 means no
	// expiration.
	CacheTTL time.Duration `env:"QUILL_CACHE_TTL" envDefault:"0"`
	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `env:"QUILL_LOG_LEVEL" envDefault:"info"`
	// StrictMode makes unresolved variables fatal by default.
	StrictMode bool `env:"QUILL_STRICT_MODE" envDefault:"false"`
	// SandboxCostLimit bounds the evaluation cost of one script fragment.
	SandboxCostLimit uint64 `env:"QUILL_SANDBOX_COST_LIMIT" envDefault:"1000000"`
	// SandboxTimeout bounds the wall-clock time of one script fragment.
	SandboxTimeout time.Duration `env:"QUILL_SANDBOX_TIMEOUT" envDefault:"100ms"`
	// MaxLoopIterations caps a single loop expansion.
	MaxLoopIterations int `env:"QUILL_MAX_LOOP_ITERATIONS" envDefault:"10000"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize:      100,
		CacheTTL:          0,
		LogLevel:          "info",
		StrictMode:        false,
		SandboxCostLimit:  1_000_000,
		SandboxTimeout:    100 * time.Millisecond,
		MaxLoopIterations: 10_000,
	}
}

// LoadConfig reads configuration from the environment and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return fmt.Errorf("QUILL_CACHE_MAX_SIZE cannot be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("QUILL_CACHE_TTL cannot be negative")
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("QUILL_LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if c.SandboxCostLimit == 0 {
		return fmt.Errorf("QUILL_SANDBOX_COST_LIMIT must be positive")
	}
	if c.SandboxTimeout <= 0 {
		return fmt.Errorf("QUILL_SANDBOX_TIMEOUT must be positive")
	}
	if c.MaxLoopIterations <= 0 {
		return fmt.Errorf("QUILL_MAX_LOOP_ITERATIONS must be positive")
	}
	return nil
}

// SandboxBudget derives the script budget from the configuration.
func (c *Config) SandboxBudget() SandboxBudget {
	return SandboxBudget{CostLimit: c.SandboxCostLimit, Timeout: c.SandboxTimeout}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
