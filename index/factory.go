package index

import (
	"fmt"
	"strings"
)

// Open creates an index backend based on the DSN.
// - Empty DSN or "memory": in-memory index
// - postgres:// or postgresql://: pgvector-backed index
// - Anything else: SQLite at the specified path
func Open(dsn string, dimension int) (Index, error) {
	if dsn == "" || dsn == "memory" {
		return NewMemoryIndex(dimension), nil
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		idx, err := NewPgVectorIndex(dsn, dimension)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return idx, nil
	}

	return NewSQLiteIndex(dsn, dimension)
}
