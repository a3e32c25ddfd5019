package index

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/go-semdex/core"
)

// unitVec returns a 2-dimensional unit vector whose cosine similarity
// against {1, 0} is exactly x.
func unitVec(x float64) []float64 {
	return []float64{x, math.Sqrt(1 - x*x)}
}

func makeRecord(id, text string, vector []float64, meta map[string]any) Record {
	return Record{
		ID:          id,
		Text:        text,
		Vector:      vector,
		Metadata:    meta,
		Fingerprint: Fingerprint(text),
		StoredAt:    time.Now().UTC(),
	}
}

func TestMemoryIndexUpsertOverwrite(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, makeRecord("a", "first", unitVec(1), nil)))
	require.NoError(t, idx.Upsert(ctx, makeRecord("a", "second", unitVec(0.8), nil)))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := idx.Query(ctx, unitVec(0.8), QueryOptions{Threshold: 0.9})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second", matches[0].Text)
}

func TestMemoryIndexTwoMapConsistency(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	checkConsistent := func() {
		t.Helper()
		idx.mu.RLock()
		defer idx.mu.RUnlock()
		require.Equal(t, len(idx.records), len(idx.vectors))
		for id := range idx.records {
			_, ok := idx.vectors[id]
			require.True(t, ok, "record %q has no vector", id)
		}
	}

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("rec-%d", i)
		require.NoError(t, idx.Upsert(ctx, makeRecord(id, id, unitVec(0.5), nil)))
		checkConsistent()
	}
	for i := 0; i < 10; i += 2 {
		require.NoError(t, idx.Delete(ctx, fmt.Sprintf("rec-%d", i)))
		checkConsistent()
	}
	require.NoError(t, idx.Upsert(ctx, makeRecord("rec-1", "replaced", unitVec(0.9), nil)))
	checkConsistent()
}

func TestMemoryIndexThreshold(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, makeRecord("high", "high", unitVec(0.9), nil)))
	require.NoError(t, idx.Upsert(ctx, makeRecord("mid", "mid", unitVec(0.5), nil)))
	require.NoError(t, idx.Upsert(ctx, makeRecord("low", "low", unitVec(0.2), nil)))

	matches, err := idx.Query(ctx, []float64{1, 0}, QueryOptions{Threshold: 0.7})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "high", matches[0].ID)
	assert.InDelta(t, 0.9, matches[0].Score, 1e-9)
}

func TestMemoryIndexTopKTruncation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	for i := 0; i < 10; i++ {
		x := 0.8 + float64(i)*0.01
		id := fmt.Sprintf("rec-%d", i)
		require.NoError(t, idx.Upsert(ctx, makeRecord(id, id, unitVec(x), nil)))
	}

	matches, err := idx.Query(ctx, []float64{1, 0}, QueryOptions{TopK: 3, Threshold: 0.7})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Sorted descending; the three closest vectors win.
	assert.Equal(t, "rec-9", matches[0].ID)
	assert.Equal(t, "rec-8", matches[1].ID)
	assert.Equal(t, "rec-7", matches[2].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestMemoryIndexDefaultTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("rec-%d", i)
		require.NoError(t, idx.Upsert(ctx, makeRecord(id, id, unitVec(0.95), nil)))
	}

	matches, err := idx.Query(ctx, []float64{1, 0}, QueryOptions{Threshold: 0.7})
	require.NoError(t, err)
	assert.Len(t, matches, DefaultTopK)
}

func TestMemoryIndexFilterConjunction(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, makeRecord("a", "alice note", unitVec(0.95),
		map[string]any{"user_id": "alice", "conversation_id": "work"})))
	require.NoError(t, idx.Upsert(ctx, makeRecord("b", "bob note", unitVec(0.95),
		map[string]any{"user_id": "bob", "conversation_id": "work"})))

	matches, err := idx.Query(ctx, []float64{1, 0}, QueryOptions{
		Threshold: 0.7,
		Filters:   map[string]any{"user_id": "alice"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)

	matches, err = idx.Query(ctx, []float64{1, 0}, QueryOptions{
		Threshold: 0.7,
		Filters:   map[string]any{"user_id": "bob", "conversation_id": "work"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)

	matches, err = idx.Query(ctx, []float64{1, 0}, QueryOptions{
		Threshold: 0.7,
		Filters:   map[string]any{"user_id": "bob", "conversation_id": "travel"},
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryIndexDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, makeRecord("a", "to delete", unitVec(1), nil)))
	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "never-existed"))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	matches, err := idx.Query(ctx, unitVec(1), QueryOptions{Threshold: 0})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	err := idx.Upsert(ctx, makeRecord("a", "bad", []float64{1, 2}, nil))
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryIndexStats(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, makeRecord("a", "one", unitVec(1), nil)))
	require.NoError(t, idx.Upsert(ctx, makeRecord("b", "two", unitVec(0.5), nil)))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalVectors: 2, Dimension: 2, StorageType: "memory"}, stats)
}

func TestMemoryIndexClosed(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Close())

	err := idx.Upsert(ctx, makeRecord("a", "late", unitVec(1), nil))
	assert.ErrorIs(t, err, core.ErrIndexClosed)

	_, err = idx.Query(ctx, unitVec(1), QueryOptions{})
	assert.ErrorIs(t, err, core.ErrIndexClosed)
}

func TestMemoryIndexConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("g%d-%d", g, i%10)
				switch i % 3 {
				case 0:
					_ = idx.Upsert(ctx, makeRecord(id, id, unitVec(0.9), nil))
				case 1:
					_, _ = idx.Query(ctx, []float64{1, 0}, QueryOptions{Threshold: 0.5})
				default:
					_ = idx.Delete(ctx, id)
				}
			}
		}(g)
	}
	wg.Wait()

	// Whatever interleaving happened, the two maps must agree.
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	require.Equal(t, len(idx.records), len(idx.vectors))
	for id := range idx.records {
		_, ok := idx.vectors[id]
		require.True(t, ok)
	}
}
