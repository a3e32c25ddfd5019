package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hubenschmidt/go-semdex/core"
	_ "modernc.org/sqlite"
)

// SQLiteIndex is a file-backed similarity index using the CGo-free SQLite
// driver. Embeddings are stored as JSON columns and scored in Go with a full
// scan; SQLite has no native vector operations. A record is a single row, so
// the vector/metadata consistency invariant holds trivially.
type SQLiteIndex struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteIndex opens (or creates) a SQLite-backed index at the given path.
func NewSQLiteIndex(path string, dimension int) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	idx := &SQLiteIndex{db: db, dimension: dimension}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return idx, nil
}

func (s *SQLiteIndex) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			stored_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}
	return nil
}

// Upsert stores a record, replacing any prior record with the same ID.
func (s *SQLiteIndex) Upsert(ctx context.Context, rec Record) error {
	if s.dimension > 0 && len(rec.Vector) != s.dimension {
		return fmt.Errorf("%w: expected %d, got %d", core.ErrDimensionMismatch, s.dimension, len(rec.Vector))
	}

	embedding, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories (id, text, fingerprint, embedding, metadata, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Text, rec.Fingerprint, string(embedding), string(metadata),
		rec.StoredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

// Query loads all stored records and scores them in Go.
func (s *SQLiteIndex) Query(ctx context.Context, vector []float64, opts QueryOptions) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, fingerprint, embedding, metadata, stored_at FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var candidates []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	return rankCandidates(vector, candidates, opts), nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var embeddingJSON, metadataJSON, storedAt string

	if err := rows.Scan(&rec.ID, &rec.Text, &rec.Fingerprint, &embeddingJSON, &metadataJSON, &storedAt); err != nil {
		return Record{}, fmt.Errorf("scan memory: %w", err)
	}
	if err := json.Unmarshal([]byte(embeddingJSON), &rec.Vector); err != nil {
		return Record{}, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return Record{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
		rec.StoredAt = t
	}
	return rec, nil
}

// Delete removes a record by ID. Deleting an absent ID is a no-op.
func (s *SQLiteIndex) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

// Stats reports the contents of the index.
func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalVectors: count,
		Dimension:    s.dimension,
		StorageType:  "sqlite",
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
