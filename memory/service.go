// Package memory provides the process-wide semantic memory service: it
// composes an embedding provider with a similarity index and exposes the
// store/query/delete/stats contract. A Service is constructed explicitly and
// handed to callers; independent instances are cheap, which keeps tests
// isolated.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/go-semdex/core"
	"github.com/hubenschmidt/go-semdex/embed"
	"github.com/hubenschmidt/go-semdex/index"
	"github.com/hubenschmidt/go-semdex/monitor"
)

// Service is the single owner of the similarity index; all access to stored
// vectors and metadata goes through its operations.
type Service struct {
	embedder  embed.Embedder
	index     index.Index
	logger    *slog.Logger
	metrics   monitor.Recorder
	topK      int
	threshold float64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRecorder sets the metrics recorder. Measurements are discarded by default.
func WithRecorder(r monitor.Recorder) Option {
	return func(s *Service) {
		s.metrics = r
	}
}

// WithDefaultTopK sets the result limit used when a query does not override it.
func WithDefaultTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithDefaultThreshold sets the similarity threshold used when a query does
// not override it.
func WithDefaultThreshold(t float64) Option {
	return func(s *Service) {
		s.threshold = t
	}
}

// New creates a memory service over the given embedder and index.
func New(embedder embed.Embedder, idx index.Index, opts ...Option) *Service {
	s := &Service{
		embedder:  embedder,
		index:     idx,
		logger:    slog.New(slog.DiscardHandler),
		metrics:   monitor.NewNoOpRecorder(),
		topK:      index.DefaultTopK,
		threshold: index.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store embeds text and records it under id, replacing any prior record with
// the same id. An empty id gets a generated UUID; the effective id is
// returned. The embedding is computed before any index state is touched, so
// an embedding failure leaves the index unchanged. The returned error wraps
// core.ErrEmbeddingFailed when the provider call failed, was cancelled, or
// timed out.
func (s *Service) Store(ctx context.Context, id, text string, meta map[string]any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	start := time.Now()
	vector, err := s.embed(ctx, text)
	if err != nil {
		s.metrics.RecordStore(time.Since(start), err)
		s.logger.ErrorContext(ctx, "store failed", "id", id, "error", err)
		return "", core.NewOpError("store", id, err)
	}

	now := time.Now().UTC()
	fingerprint := index.Fingerprint(text)

	metadata := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		metadata[k] = v
	}
	metadata["text"] = text
	metadata["fingerprint"] = fingerprint
	metadata["stored_at"] = now.Format(time.RFC3339)

	rec := index.Record{
		ID:          id,
		Text:        text,
		Vector:      vector,
		Metadata:    metadata,
		Fingerprint: fingerprint,
		StoredAt:    now,
	}
	err = s.index.Upsert(ctx, rec)
	s.metrics.RecordStore(time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "store failed", "id", id, "error", err)
		return "", core.NewOpError("store", id, err)
	}

	s.logger.DebugContext(ctx, "stored", "id", id, "dimension", len(vector))
	return id, nil
}

// QueryOption overrides the service defaults for a single query.
type QueryOption func(*index.QueryOptions)

// WithTopK limits the number of returned matches.
func WithTopK(k int) QueryOption {
	return func(o *index.QueryOptions) {
		o.TopK = k
	}
}

// WithThreshold sets the minimum cosine similarity for a match.
func WithThreshold(t float64) QueryOption {
	return func(o *index.QueryOptions) {
		o.Threshold = t
	}
}

// WithFilter adds an exact-equality metadata filter. Filters accumulate and
// are conjunctive.
func WithFilter(key string, value any) QueryOption {
	return func(o *index.QueryOptions) {
		if o.Filters == nil {
			o.Filters = make(map[string]any)
		}
		o.Filters[key] = value
	}
}

// Query embeds text and returns the stored records most similar to it,
// sorted by score descending. A query against an empty index returns an
// empty result without computing an embedding. "No matches" is an empty
// slice with a nil error; a failed embedding returns a non-nil error that
// wraps core.ErrEmbeddingFailed, so the two outcomes stay distinguishable.
func (s *Service) Query(ctx context.Context, text string, opts ...QueryOption) ([]index.Match, error) {
	options := index.QueryOptions{TopK: s.topK, Threshold: s.threshold}
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()

	count, err := s.index.Count(ctx)
	if err != nil {
		s.metrics.RecordQuery(time.Since(start), err)
		return nil, core.NewOpError("query", "", err)
	}
	if count == 0 {
		s.metrics.RecordQuery(time.Since(start), nil)
		return []index.Match{}, nil
	}

	vector, err := s.embed(ctx, text)
	if err != nil {
		s.metrics.RecordQuery(time.Since(start), err)
		s.logger.ErrorContext(ctx, "query failed", "error", err)
		return nil, core.NewOpError("query", "", err)
	}

	matches, err := s.index.Query(ctx, vector, options)
	s.metrics.RecordQuery(time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "query failed", "error", err)
		return nil, core.NewOpError("query", "", err)
	}

	s.logger.DebugContext(ctx, "query completed", "top_k", options.TopK, "results", len(matches))
	return matches, nil
}

// Delete removes a record by id. Deleting an absent id is a no-op success.
// Delete never invokes the embedder.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.index.Delete(ctx, id); err != nil {
		return core.NewOpError("delete", id, err)
	}
	s.logger.DebugContext(ctx, "deleted", "id", id)
	return nil
}

// Stats describes the service contents and the embedding model in use.
type Stats struct {
	index.Stats
	ModelName string `json:"model_name"`
}

// Stats reports the record count, dimensionality, storage backend, and model
// identity. Pure read; never invokes the embedder.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	idxStats, err := s.index.Stats(ctx)
	if err != nil {
		return Stats{}, core.NewOpError("stats", "", err)
	}
	if idxStats.Dimension == 0 {
		idxStats.Dimension = s.embedder.Dimension()
	}
	return Stats{Stats: idxStats, ModelName: s.embedder.ModelName()}, nil
}

// Close releases the underlying index.
func (s *Service) Close() error {
	return s.index.Close()
}

// embed runs the provider call and folds every failure mode, including
// cancellation, into core.ErrEmbeddingFailed.
func (s *Service) embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	vector, err := s.embedder.Embed(ctx, text)
	s.metrics.RecordEmbed(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailed, err)
	}
	return vector, nil
}
