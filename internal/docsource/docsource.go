// Package docsource loads raw documents for ingestion. A Source yields
// documents with stable IDs, so repeated loads of the same corpus produce
// the same identities and re-ingestion replaces rather than duplicates.
package docsource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Document is one unit of source text prior to chunking.
type Document struct {
	// ID is stable across loads of the same source.
	ID string

	// Path is the document's location relative to its source root.
	Path string

	Text     string
	Metadata map[string]string
}

// Source yields documents from some corpus location.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// DocumentID derives a stable ID from a source-relative path.
func DocumentID(relPath string) string {
	hash := sha256.Sum256([]byte(relPath))
	return "file_" + hex.EncodeToString(hash[:16])
}
