package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ragpipe/ragpipe/internal/log"
)

// Postgres implements Store on PostgreSQL with the pgvector extension.
//
// The chunks table uses an untyped vector column so collections with
// different dimensions can share it; dimension enforcement happens here
// against the collections table. Safe for concurrent use.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres wraps an existing connection pool. The pool's lifecycle is
// managed by the caller.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

func (s *Postgres) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions < 1 {
		return fmt.Errorf("%w: invalid dimensions %d for collection %q", ErrCollectionConflict, dimensions, name)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO collections (name, dimensions) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, dimensions)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}

	existing, err := s.collectionDims(ctx, name)
	if err != nil {
		return err
	}
	if existing != dimensions {
		return fmt.Errorf("%w: collection %q has %d dimensions, requested %d",
			ErrCollectionConflict, name, existing, dimensions)
	}
	return nil
}

func (s *Postgres) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	if err := s.checkDims(ctx, collection, records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := queueInserts(ctx, tx, collection, records); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}

	s.logger.Debug("upserted records", "collection", collection, "count", len(records))
	return len(records), nil
}

func (s *Postgres) ReplaceDocument(ctx context.Context, collection, documentID string, records []Record) error {
	if err := s.checkDims(ctx, collection, records); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1 AND document_id = $2`,
		collection, documentID); err != nil {
		return fmt.Errorf("deleting prior records for document %q: %w", documentID, err)
	}

	if err := queueInserts(ctx, tx, collection, records); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing document %q: %w", documentID, err)
	}

	s.logger.Debug("replaced document",
		"collection", collection,
		"document_id", documentID,
		"chunks", len(records),
	)
	return nil
}

func (s *Postgres) DeleteDocument(ctx context.Context, collection, documentID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1 AND document_id = $2`,
		collection, documentID)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", documentID, err)
	}
	s.logger.Debug("deleted document",
		"collection", collection,
		"document_id", documentID,
		"chunks", tag.RowsAffected(),
	)
	return nil
}

func (s *Postgres) Search(ctx context.Context, collection string, query []float32, opts ...SearchOption) ([]Match, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK < 1 {
		return nil, nil
	}

	dims, err := s.collectionDims(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(query) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(query), collection, dims)
	}

	vec := pgvector.NewVector(query)
	sql := `SELECT id, document_id, sequence_index, content, metadata,
	               1 - (embedding <=> $2) AS similarity
	        FROM chunks
	        WHERE collection = $1`
	args := []any{collection, vec}
	if len(cfg.filter) > 0 {
		filterJSON, err := json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
		sql += ` AND metadata @> $3`
		args = append(args, filterJSON)
	}
	// Equal distances break ties on sequence index, then record ID.
	sql += fmt.Sprintf(` ORDER BY embedding <=> $2, sequence_index, id LIMIT %d`, cfg.topK)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var meta []byte
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.SequenceIndex, &m.Text, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				s.logger.Warn("failed to parse metadata", "record_id", m.ID, "error", err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return matches, nil
}

func (s *Postgres) ListDocuments(ctx context.Context, collection string) ([]DocumentInfo, error) {
	if _, err := s.collectionDims(ctx, collection); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT document_id, COUNT(*), MAX(created_at)
		 FROM chunks
		 WHERE collection = $1
		 GROUP BY document_id
		 ORDER BY document_id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("listing documents in %q: %w", collection, err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.DocumentID, &d.Chunks, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document rows: %w", err)
	}
	return docs, nil
}

func (s *Postgres) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.collectionDims(ctx, collection); err != nil {
		return 0, err
	}

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = $1`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records in %q: %w", collection, err)
	}
	return count, nil
}

// checkDims verifies every record against the collection's pinned
// dimensions before anything is written.
func (s *Postgres) checkDims(ctx context.Context, collection string, records []Record) error {
	dims, err := s.collectionDims(ctx, collection)
	if err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Embedding) != dims {
			return fmt.Errorf("%w: record %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, r.ID, len(r.Embedding), collection, dims)
		}
	}
	return nil
}

// queueInserts writes records in one batch, overwriting existing IDs in
// place.
func queueInserts(ctx context.Context, tx pgx.Tx, collection string, records []Record) error {
	batch := &pgx.Batch{}
	for _, r := range records {
		meta, err := marshalMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for record %q: %w", r.ID, err)
		}
		batch.Queue(
			`INSERT INTO chunks (id, collection, document_id, sequence_index, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (collection, id) DO UPDATE SET
			   document_id = EXCLUDED.document_id,
			   sequence_index = EXCLUDED.sequence_index,
			   content = EXCLUDED.content,
			   metadata = EXCLUDED.metadata,
			   embedding = EXCLUDED.embedding`,
			r.ID, collection, r.DocumentID, r.SequenceIndex, r.Text, meta, pgvector.NewVector(r.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

func (s *Postgres) collectionDims(ctx context.Context, name string) (int, error) {
	var dims int
	err := s.pool.QueryRow(ctx,
		`SELECT dimensions FROM collections WHERE name = $1`, name).Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("loading collection %q: %w", name, err)
	}
	return dims, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}
