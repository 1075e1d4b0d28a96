// Package vectorstore persists embedded chunks and serves similarity
// search over them. Collections isolate corpora from one another; each
// collection pins an embedding dimension at creation, and every write and
// query is validated against it.
//
// Two implementations exist: Postgres (pgvector) for production and
// Memory for tests and small corpora. Both order results identically:
// descending similarity, then ascending sequence index, then record ID,
// so equal-scoring ties resolve deterministically.
package vectorstore

import "context"

// Store is the persistence interface the ingestion pipeline and the
// retrieval engine depend on.
type Store interface {
	// EnsureCollection creates the collection if it does not exist. When
	// it already exists with different dimensions, ErrCollectionConflict
	// is returned and nothing changes.
	EnsureCollection(ctx context.Context, name string, dimensions int) error

	// Upsert writes records idempotently by ID: an existing record is
	// overwritten in place with the new vector, text, and metadata. All
	// records are written in one transaction and are durable when the
	// call returns. Returns the number of records written.
	Upsert(ctx context.Context, collection string, records []Record) (int, error)

	// ReplaceDocument atomically swaps all records of a document: prior
	// records are removed and the given ones inserted in one transaction,
	// so readers never observe a mix of old and new chunks. An empty
	// records slice removes the document entirely.
	ReplaceDocument(ctx context.Context, collection, documentID string, records []Record) error

	// DeleteDocument removes all records of a document. Deleting an
	// unknown document is a no-op.
	DeleteDocument(ctx context.Context, collection, documentID string) error

	// Search returns the closest records to the query vector by cosine
	// similarity. Fewer than topK results (or none) is not an error.
	Search(ctx context.Context, collection string, query []float32, opts ...SearchOption) ([]Match, error)

	// ListDocuments reports every document in the collection with its
	// chunk count, ordered by document ID.
	ListDocuments(ctx context.Context, collection string) ([]DocumentInfo, error)

	// Count returns the total number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)
}
