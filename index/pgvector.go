package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hubenschmidt/go-semdex/core"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PgVectorIndex is a PostgreSQL-backed similarity index using the pgvector
// extension. Scoring, thresholding, and metadata filtering are pushed into
// SQL; the cosine score is 1 - (embedding <=> query). No ANN index is created
// on the embedding column, so results are exact.
type PgVectorIndex struct {
	db        *sql.DB
	dimension int
}

// NewPgVectorIndex connects to PostgreSQL and prepares the memories table.
// The dimension parameter fixes the vector column width (e.g. 1536 for
// OpenAI text-embedding-3-small).
func NewPgVectorIndex(dsn string, dimension int) (*PgVectorIndex, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	idx := &PgVectorIndex{db: db, dimension: dimension}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return idx, nil
}

func (p *PgVectorIndex) migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB DEFAULT '{}',
			stored_at TIMESTAMPTZ DEFAULT NOW()
		)`, p.dimension),
	}

	for _, m := range migrations {
		if _, err := p.db.Exec(m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// Upsert stores a record, replacing any prior record with the same ID.
func (p *PgVectorIndex) Upsert(ctx context.Context, rec Record) error {
	if p.dimension > 0 && len(rec.Vector) != p.dimension {
		return fmt.Errorf("%w: expected %d, got %d", core.ErrDimensionMismatch, p.dimension, len(rec.Vector))
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO memories (id, text, fingerprint, embedding, metadata, stored_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			fingerprint = EXCLUDED.fingerprint,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			stored_at = EXCLUDED.stored_at
	`, rec.ID, rec.Text, rec.Fingerprint, formatEmbedding(rec.Vector), string(metadata), rec.StoredAt)
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

// Query runs the similarity search in SQL: threshold and conjunctive metadata
// filters are applied by the database, results arrive already sorted.
func (p *PgVectorIndex) Query(ctx context.Context, vector []float64, opts QueryOptions) ([]Match, error) {
	opts = opts.withDefaults()

	filters, err := json.Marshal(opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("marshal filters: %w", err)
	}
	if opts.Filters == nil {
		filters = []byte(`{}`)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, text, metadata, 1 - (embedding <=> $1) AS score
		FROM memories
		WHERE 1 - (embedding <=> $1) >= $2
		  AND metadata @> $3::jsonb
		ORDER BY embedding <=> $1
		LIMIT $4
	`, formatEmbedding(vector), opts.Threshold, string(filters), opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, opts.TopK)
	for rows.Next() {
		var m Match
		var metadataBytes []byte

		if err := rows.Scan(&m.ID, &m.Text, &metadataBytes, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// Delete removes a record by ID. Deleting an absent ID is a no-op.
func (p *PgVectorIndex) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (p *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

// Stats reports the contents of the index.
func (p *PgVectorIndex) Stats(ctx context.Context) (Stats, error) {
	count, err := p.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalVectors: count,
		Dimension:    p.dimension,
		StorageType:  "pgvector",
	}, nil
}

// Close closes the database connection.
func (p *PgVectorIndex) Close() error {
	return p.db.Close()
}

// formatEmbedding converts a float64 slice to pgvector format: "[0.1,0.2,0.3]"
func formatEmbedding(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
