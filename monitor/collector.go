package monitor

import (
	"sync"
	"time"
)

// Recorder receives per-operation measurements from the memory service.
type Recorder interface {
	RecordStore(d time.Duration, err error)
	RecordQuery(d time.Duration, err error)
	RecordEmbed(d time.Duration, err error)
}

// Summary is an aggregated view of recorded operations.
type Summary struct {
	Stores        int           `json:"stores"`
	StoreFailures int           `json:"store_failures"`
	Queries       int           `json:"queries"`
	QueryFailures int           `json:"query_failures"`
	Embeds        int           `json:"embeds"`
	EmbedFailures int           `json:"embed_failures"`
	AvgEmbedTime  time.Duration `json:"avg_embed_time"`
	StartTime     time.Time     `json:"start_time"`
	SnapshotTime  time.Time     `json:"snapshot_time"`
}

// InMemoryCollector aggregates operation counts and embed latency in memory.
type InMemoryCollector struct {
	mu             sync.RWMutex
	stores         int
	storeFailures  int
	queries        int
	queryFailures  int
	embeds         int
	embedFailures  int
	totalEmbedTime time.Duration
	startTime      time.Time
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{startTime: time.Now()}
}

func (c *InMemoryCollector) RecordStore(d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	if err != nil {
		c.storeFailures++
	}
}

func (c *InMemoryCollector) RecordQuery(d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries++
	if err != nil {
		c.queryFailures++
	}
}

func (c *InMemoryCollector) RecordEmbed(d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeds++
	c.totalEmbedTime += d
	if err != nil {
		c.embedFailures++
	}
}

// Snapshot returns the aggregated summary so far.
func (c *InMemoryCollector) Snapshot() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		Stores:        c.stores,
		StoreFailures: c.storeFailures,
		Queries:       c.queries,
		QueryFailures: c.queryFailures,
		Embeds:        c.embeds,
		EmbedFailures: c.embedFailures,
		StartTime:     c.startTime,
		SnapshotTime:  time.Now(),
	}
	if c.embeds > 0 {
		s.AvgEmbedTime = c.totalEmbedTime / time.Duration(c.embeds)
	}
	return s
}

// Reset clears all counters.
func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores = 0
	c.storeFailures = 0
	c.queries = 0
	c.queryFailures = 0
	c.embeds = 0
	c.embedFailures = 0
	c.totalEmbedTime = 0
	c.startTime = time.Now()
}

// NoOpRecorder discards all measurements.
type NoOpRecorder struct{}

func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (NoOpRecorder) RecordStore(d time.Duration, err error) {}
func (NoOpRecorder) RecordQuery(d time.Duration, err error) {}
func (NoOpRecorder) RecordEmbed(d time.Duration, err error) {}
