package vectorstore

import (
	"errors"
	"time"
)

// Record is one embedded chunk as persisted in a collection.
type Record struct {
	ID            string
	DocumentID    string
	SequenceIndex int
	Text          string
	Metadata      map[string]string
	Embedding     []float32
}

// Match is a search hit. Score is cosine similarity in [-1, 1]; higher is
// closer.
type Match struct {
	Record
	Score float64
}

// DocumentInfo summarizes one document's presence in a collection.
type DocumentInfo struct {
	DocumentID string
	Chunks     int
	UpdatedAt  time.Time
}

// ErrCollectionConflict indicates an existing collection whose configured
// dimensions differ from the requested ones. Checked with errors.Is.
var ErrCollectionConflict = errors.New("collection configuration conflict")

// ErrDimensionMismatch indicates a vector whose width differs from the
// collection's configured dimensions. Checked with errors.Is.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrCollectionNotFound indicates an operation against a collection that
// was never created.
var ErrCollectionNotFound = errors.New("collection not found")

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter restricts results to records whose metadata contains the
// given key/value pair. Multiple calls combine with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
