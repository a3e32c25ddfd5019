// Package config loads service configuration from a YAML file and the
// environment. Environment variables override file values; a .env file in
// the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hubenschmidt/go-semdex/core"
)

// Config holds everything needed to assemble a memory service.
type Config struct {
	// Provider selects the embedding backend: "openai" or "ollama".
	Provider string `yaml:"provider"`
	// Model is the embedding model name, e.g. "text-embedding-3-small".
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// Dimension is the embedding dimensionality, fixed for the lifetime of
	// the service.
	Dimension int `yaml:"dimension"`
	// DSN selects the index backend: empty for in-memory, postgres:// for
	// pgvector, anything else is a SQLite path.
	DSN            string  `yaml:"dsn"`
	TopK           int     `yaml:"top_k"`
	Threshold      float64 `yaml:"threshold"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	CacheEntries   int     `yaml:"cache_entries"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Provider:       "openai",
		Model:          "text-embedding-3-small",
		Dimension:      1536,
		TopK:           5,
		Threshold:      0.7,
		MaxConcurrency: 4,
		CacheEntries:   1024,
	}
}

// Load reads configuration from an optional YAML file path and the
// environment, then validates the result.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SEMDEX_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("SEMDEX_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("SEMDEX_API_KEY"); v != "" {
		cfg.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.APIKey == "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SEMDEX_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SEMDEX_DSN"); v != "" {
		cfg.DSN = v
	}
	if v, err := strconv.Atoi(os.Getenv("SEMDEX_DIMENSION")); err == nil && v > 0 {
		cfg.Dimension = v
	}
	if v, err := strconv.Atoi(os.Getenv("SEMDEX_TOP_K")); err == nil && v > 0 {
		cfg.TopK = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("SEMDEX_THRESHOLD"), 64); err == nil {
		cfg.Threshold = v
	}
	if v, err := strconv.Atoi(os.Getenv("SEMDEX_MAX_CONCURRENCY")); err == nil && v > 0 {
		cfg.MaxConcurrency = v
	}
	if v, err := strconv.Atoi(os.Getenv("SEMDEX_CACHE_ENTRIES")); err == nil && v > 0 {
		cfg.CacheEntries = v
	}
}

// Validate checks the configuration; failures wrap core.ErrInvalidConfig.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown provider %q", core.ErrInvalidConfig, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", core.ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", core.ErrInvalidConfig, c.Dimension)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidConfig, c.TopK)
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [-1, 1], got %g", core.ErrInvalidConfig, c.Threshold)
	}
	return nil
}
