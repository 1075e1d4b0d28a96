package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/testutil"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := vectorstore.NewPostgres(db.Pool, log.NewNop())

	require.NoError(t, store.EnsureCollection(ctx, "documents", 3))

	t.Run("ensure collection is idempotent", func(t *testing.T) {
		require.NoError(t, store.EnsureCollection(ctx, "documents", 3))

		err := store.EnsureCollection(ctx, "documents", 4)
		require.Error(t, err)
		assert.ErrorIs(t, err, vectorstore.ErrCollectionConflict)
	})

	t.Run("replace and search", func(t *testing.T) {
		require.NoError(t, store.ReplaceDocument(ctx, "documents", "doc1", []vectorstore.Record{
			{ID: "doc1:0", DocumentID: "doc1", SequenceIndex: 0, Text: "alpha", Embedding: []float32{1, 0, 0}},
			{ID: "doc1:1", DocumentID: "doc1", SequenceIndex: 1, Text: "beta", Embedding: []float32{0, 1, 0}},
		}))

		matches, err := store.Search(ctx, "documents", []float32{1, 0, 0}, vectorstore.WithTopK(1))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "doc1:0", matches[0].ID)
		assert.Equal(t, "alpha", matches[0].Text)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("upsert overwrites in place", func(t *testing.T) {
		// Separate collection so record counts elsewhere stay stable.
		require.NoError(t, store.EnsureCollection(ctx, "upserts", 3))

		n, err := store.Upsert(ctx, "upserts", []vectorstore.Record{
			{ID: "u:0", DocumentID: "u", SequenceIndex: 0, Text: "v1", Embedding: []float32{1, 0, 0}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.Upsert(ctx, "upserts", []vectorstore.Record{
			{ID: "u:0", DocumentID: "u", SequenceIndex: 0, Text: "v2", Embedding: []float32{0, 1, 0}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := store.Count(ctx, "upserts")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		matches, err := store.Search(ctx, "upserts", []float32{0, 1, 0}, vectorstore.WithTopK(1))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "v2", matches[0].Text)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("metadata filter", func(t *testing.T) {
		require.NoError(t, store.ReplaceDocument(ctx, "documents", "doc2", []vectorstore.Record{
			{
				ID: "doc2:0", DocumentID: "doc2", SequenceIndex: 0, Text: "gamma",
				Metadata:  map[string]string{"source": "wiki"},
				Embedding: []float32{1, 0, 0},
			},
		}))

		matches, err := store.Search(ctx, "documents", []float32{1, 0, 0},
			vectorstore.WithTopK(10), vectorstore.WithFilter("source", "wiki"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "doc2:0", matches[0].ID)
		assert.Equal(t, "wiki", matches[0].Metadata["source"])
	})

	t.Run("re-ingestion removes stale chunks", func(t *testing.T) {
		require.NoError(t, store.ReplaceDocument(ctx, "documents", "doc3", []vectorstore.Record{
			{ID: "doc3:0", DocumentID: "doc3", SequenceIndex: 0, Text: "old a", Embedding: []float32{0, 0, 1}},
			{ID: "doc3:1", DocumentID: "doc3", SequenceIndex: 1, Text: "old b", Embedding: []float32{0, 0, 1}},
		}))
		require.NoError(t, store.ReplaceDocument(ctx, "documents", "doc3", []vectorstore.Record{
			{ID: "doc3:0", DocumentID: "doc3", SequenceIndex: 0, Text: "new a", Embedding: []float32{0, 0, 1}},
		}))

		matches, err := store.Search(ctx, "documents", []float32{0, 0, 1}, vectorstore.WithTopK(10))
		require.NoError(t, err)

		var doc3 []vectorstore.Match
		for _, m := range matches {
			if m.DocumentID == "doc3" {
				doc3 = append(doc3, m)
			}
		}
		require.Len(t, doc3, 1)
		assert.Equal(t, "new a", doc3[0].Text)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		err := store.ReplaceDocument(ctx, "documents", "doc4", []vectorstore.Record{
			{ID: "doc4:0", DocumentID: "doc4", SequenceIndex: 0, Text: "bad", Embedding: []float32{1, 0}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

		_, err = store.Search(ctx, "documents", []float32{1, 0})
		require.Error(t, err)
		assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	})

	t.Run("list and count", func(t *testing.T) {
		docs, err := store.ListDocuments(ctx, "documents")
		require.NoError(t, err)
		require.NotEmpty(t, docs)
		assert.Equal(t, "doc1", docs[0].DocumentID)
		assert.Equal(t, 2, docs[0].Chunks)

		count, err := store.Count(ctx, "documents")
		require.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("delete document", func(t *testing.T) {
		require.NoError(t, store.DeleteDocument(ctx, "documents", "doc2"))
		require.NoError(t, store.DeleteDocument(ctx, "documents", "doc2"))

		count, err := store.Count(ctx, "documents")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := store.Search(ctx, "missing", []float32{1, 0, 0})
		require.Error(t, err)
		assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
	})
}
