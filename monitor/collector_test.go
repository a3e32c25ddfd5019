package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCollectorSnapshot(t *testing.T) {
	c := NewInMemoryCollector()

	c.RecordStore(10*time.Millisecond, nil)
	c.RecordStore(10*time.Millisecond, errors.New("boom"))
	c.RecordQuery(5*time.Millisecond, nil)
	c.RecordEmbed(20*time.Millisecond, nil)
	c.RecordEmbed(40*time.Millisecond, errors.New("boom"))

	s := c.Snapshot()
	assert.Equal(t, 2, s.Stores)
	assert.Equal(t, 1, s.StoreFailures)
	assert.Equal(t, 1, s.Queries)
	assert.Equal(t, 0, s.QueryFailures)
	assert.Equal(t, 2, s.Embeds)
	assert.Equal(t, 1, s.EmbedFailures)
	assert.Equal(t, 30*time.Millisecond, s.AvgEmbedTime)
	assert.False(t, s.SnapshotTime.Before(s.StartTime))
}

func TestInMemoryCollectorReset(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordStore(time.Millisecond, nil)
	c.RecordEmbed(time.Millisecond, nil)

	c.Reset()

	s := c.Snapshot()
	assert.Zero(t, s.Stores)
	assert.Zero(t, s.Embeds)
	assert.Zero(t, s.AvgEmbedTime)
}

func TestNoOpRecorder(t *testing.T) {
	var r Recorder = NewNoOpRecorder()
	r.RecordStore(time.Second, nil)
	r.RecordQuery(time.Second, errors.New("ignored"))
	r.RecordEmbed(time.Second, nil)
}
