package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/hubenschmidt/go-semdex/core"
)

// MemoryIndex is an in-memory brute-force similarity index. The embedding
// vectors and their records live in two parallel maps guarded by a single
// lock, so a reader never observes one map updated and the other stale for
// the same ID.
type MemoryIndex struct {
	mu        sync.RWMutex
	closed    bool
	dimension int
	vectors   map[string][]float64
	records   map[string]Record
}

// NewMemoryIndex creates an in-memory index for vectors of the given
// dimension. Dimension is fixed for the lifetime of the index.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		vectors:   make(map[string][]float64),
		records:   make(map[string]Record),
	}
}

// Upsert stores a record, replacing any prior record with the same ID.
func (m *MemoryIndex) Upsert(ctx context.Context, rec Record) error {
	if m.dimension > 0 && len(rec.Vector) != m.dimension {
		return fmt.Errorf("%w: expected %d, got %d", core.ErrDimensionMismatch, m.dimension, len(rec.Vector))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrIndexClosed
	}

	m.vectors[rec.ID] = rec.Vector
	m.records[rec.ID] = rec
	return nil
}

// Query scores every stored vector against the query vector. Candidates are
// snapshotted under the read lock; scoring and sorting run without holding
// it, so queries racing with writes see either the old or the new record but
// never a torn pair.
func (m *MemoryIndex) Query(ctx context.Context, vector []float64, opts QueryOptions) ([]Match, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, core.ErrIndexClosed
	}
	candidates := make([]Record, 0, len(m.records))
	for id, rec := range m.records {
		rec.Vector = m.vectors[id]
		candidates = append(candidates, rec)
	}
	m.mu.RUnlock()

	return rankCandidates(vector, candidates, opts), nil
}

// Delete removes a record by ID. Deleting an absent ID is a no-op.
func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrIndexClosed
	}

	delete(m.vectors, id)
	delete(m.records, id)
	return nil
}

// Count returns the number of stored records.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Stats reports the contents of the index.
func (m *MemoryIndex) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		TotalVectors: len(m.records),
		Dimension:    m.dimension,
		StorageType:  "memory",
	}, nil
}

// Close marks the index closed; subsequent mutations fail with ErrIndexClosed.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
