// Package index provides similarity index backends over fixed-dimension
// embedding vectors. Three backends share one contract: an in-memory
// brute-force index, a SQLite-backed index, and a pgvector-backed index.
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultTopK is the result limit applied when QueryOptions.TopK is unset.
	DefaultTopK = 5

	// DefaultThreshold is the minimum cosine similarity applied when
	// QueryOptions.Threshold is unset.
	DefaultThreshold = 0.7
)

// Record is a stored embedding together with the text it was computed from.
type Record struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Vector      []float64      `json:"vector"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Fingerprint string         `json:"fingerprint"`
	StoredAt    time.Time      `json:"stored_at"`
}

// Match is a single query hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stats describes the current contents of an index.
type Stats struct {
	TotalVectors int    `json:"total_vectors"`
	Dimension    int    `json:"dimension"`
	StorageType  string `json:"storage_type"`
}

// QueryOptions controls scoring and filtering of a similarity query.
// Filters are conjunctive: a candidate survives only if every filter key
// exactly equals the corresponding stored metadata value.
type QueryOptions struct {
	TopK      int
	Threshold float64
	Filters   map[string]any
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// Index is the storage capability behind the memory service. Backends are
// selected by configuration (see Open); callers never depend on a concrete
// implementation.
type Index interface {
	// Upsert stores a record, replacing any prior record with the same ID.
	Upsert(ctx context.Context, rec Record) error

	// Query scores every stored vector against the query vector, drops
	// candidates below the threshold or failing a filter, and returns the
	// survivors sorted by score descending, truncated to TopK. The order of
	// equal scores is implementation-defined.
	Query(ctx context.Context, vector []float64, opts QueryOptions) ([]Match, error)

	// Delete removes a record by ID. Deleting an absent ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Stats reports the contents of the index. Pure read, never fails on
	// the in-memory backend.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// Fingerprint returns a short content hash of text, used to detect duplicate
// content cheaply.
func Fingerprint(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// rankCandidates applies the score threshold and filters to candidate
// records, then sorts by score descending and truncates to TopK. Shared by
// the backends that score in Go rather than in SQL. The stable sort keeps
// equal scores in candidate order; callers must not rely on tie order.
func rankCandidates(query []float64, candidates []Record, opts QueryOptions) []Match {
	opts = opts.withDefaults()

	matches := make([]Match, 0, len(candidates))
	for _, rec := range candidates {
		if !matchesFilters(rec.Metadata, opts.Filters) {
			continue
		}
		score := CosineSimilarity(query, rec.Vector)
		if score < opts.Threshold {
			continue
		}
		matches = append(matches, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches
}
