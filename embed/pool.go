package embed

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const defaultMaxConcurrency = 4

// Pool bounds the number of in-flight embedding computations so an expensive
// model call never serializes the rest of the service. Callers block on the
// semaphore until a slot frees; no index lock is held across an Embed call.
// Transient provider failures are retried with exponential backoff; context
// cancellation releases the waiting caller immediately.
type Pool struct {
	inner      Embedder
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	maxRetries uint64
	baseDelay  time.Duration
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithRateLimit throttles provider calls to rps requests per second with the
// given burst. Useful against rate-limited hosted APIs.
func WithRateLimit(rps float64, burst int) PoolOption {
	return func(p *Pool) {
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries sets the number of retries after a failed provider call and the
// base backoff delay.
func WithRetries(n uint64, baseDelay time.Duration) PoolOption {
	return func(p *Pool) {
		p.maxRetries = n
		p.baseDelay = baseDelay
	}
}

// NewPool wraps an embedder with a bounded worker pool. maxConcurrency <= 0
// falls back to the default.
func NewPool(inner Embedder, maxConcurrency int, opts ...PoolOption) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	p := &Pool{
		inner:      inner,
		sem:        semaphore.NewWeighted(int64(maxConcurrency)),
		maxRetries: 2,
		baseDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed acquires a worker slot and delegates to the wrapped embedder.
func (p *Pool) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var vector []float64
	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := p.inner.Embed(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled or timed out; retrying would only stall the caller.
				return err
			}
			return retry.RetryableError(err)
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *Pool) Dimension() int {
	return p.inner.Dimension()
}

func (p *Pool) ModelName() string {
	return p.inner.ModelName()
}
