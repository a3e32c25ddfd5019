package semdex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semdex "github.com/hubenschmidt/go-semdex"
	"github.com/hubenschmidt/go-semdex/config"
)

func TestOpenWithDefaults(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.APIKey = "test-key"

	svc, err := semdex.Open(cfg)
	require.NoError(t, err)
	defer svc.Close()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)
	assert.Equal(t, 1536, stats.Dimension)
	assert.Equal(t, "memory", stats.StorageType)
	assert.Equal(t, "text-embedding-3-small", stats.ModelName)

	// An empty index short-circuits before any provider call, so this works
	// without a reachable embedding API.
	matches, err := svc.Query(ctx, "anything")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "carrier-pigeon"

	_, err := semdex.Open(cfg)
	assert.ErrorIs(t, err, semdex.ErrInvalidConfig)
}
