// Package semdex provides an in-process semantic similarity index: text in,
// fixed-dimension embedding stored, nearest stored texts back out, ranked by
// cosine similarity with a score threshold and conjunctive metadata filters.
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
//
//	svc, err := semdex.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	id, _ := svc.Store(ctx, "m1", "The cat sat on the mat", map[string]any{"user_id": "u1"})
//	matches, _ := svc.Query(ctx, "where did the cat sit?",
//	    memory.WithTopK(3),
//	    memory.WithFilter("user_id", "u1"))
package semdex

import (
	"github.com/hubenschmidt/go-semdex/config"
	"github.com/hubenschmidt/go-semdex/core"
	"github.com/hubenschmidt/go-semdex/embed"
	"github.com/hubenschmidt/go-semdex/index"
	"github.com/hubenschmidt/go-semdex/memory"
	"github.com/hubenschmidt/go-semdex/monitor"
)

// Service aliases
type (
	Service       = memory.Service
	ServiceOption = memory.Option
	QueryOption   = memory.QueryOption
	ServiceStats  = memory.Stats
)

// Index aliases
type (
	Index        = index.Index
	Record       = index.Record
	Match        = index.Match
	IndexStats   = index.Stats
	QueryOptions = index.QueryOptions
)

// Embedder aliases
type (
	Embedder     = embed.Embedder
	ClientConfig = embed.ClientConfig
)

// Config aliases
type Config = config.Config

// Monitor aliases
type (
	Recorder          = monitor.Recorder
	InMemoryCollector = monitor.InMemoryCollector
)

// Sentinel errors re-exported for callers using errors.Is.
var (
	ErrEmbeddingFailed   = core.ErrEmbeddingFailed
	ErrDimensionMismatch = core.ErrDimensionMismatch
	ErrInvalidConfig     = core.ErrInvalidConfig
)

// LoadConfig reads configuration from an optional YAML file path and the
// environment.
func LoadConfig(path string) (config.Config, error) {
	return config.Load(path)
}

// NewService creates a memory service over an explicit embedder and index.
func NewService(embedder embed.Embedder, idx index.Index, opts ...memory.Option) *memory.Service {
	return memory.New(embedder, idx, opts...)
}

// NewMemoryIndex creates an in-memory similarity index.
func NewMemoryIndex(dimension int) *index.MemoryIndex {
	return index.NewMemoryIndex(dimension)
}

// NewPool wraps an embedder with a bounded worker pool.
func NewPool(inner embed.Embedder, maxConcurrency int, opts ...embed.PoolOption) *embed.Pool {
	return embed.NewPool(inner, maxConcurrency, opts...)
}

// Open assembles a service from configuration: the embedding provider, the
// fingerprint cache, the bounded worker pool, and the index backend are all
// selected by cfg.
func Open(cfg config.Config, opts ...memory.Option) (*memory.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := embed.ClientConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
	}

	var provider embed.Embedder
	switch cfg.Provider {
	case "ollama":
		provider = embed.NewOllamaEmbedder(clientCfg)
	default:
		provider = embed.NewOpenAIEmbedder(clientCfg)
	}

	embedder := embed.NewPool(embed.NewCache(provider, cfg.CacheEntries), cfg.MaxConcurrency)

	idx, err := index.Open(cfg.DSN, cfg.Dimension)
	if err != nil {
		return nil, err
	}

	opts = append([]memory.Option{
		memory.WithDefaultTopK(cfg.TopK),
		memory.WithDefaultThreshold(cfg.Threshold),
	}, opts...)

	return memory.New(embedder, idx, opts...), nil
}
