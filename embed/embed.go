// Package embed provides the text embedding contract and its providers.
// The service core consumes only the Embedder interface; providers are
// HTTP clients around hosted or local embedding models.
package embed

import "context"

// Embedder converts text into a fixed-dimension vector. Implementations must
// be deterministic: identical text yields an identical vector. Embed may be
// expensive; wrap providers in a Pool to bound concurrent computations.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
	ModelName() string
}

type ClientConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   int // seconds
}
