package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"
)

// Memory implements Store entirely in memory. It mirrors the Postgres
// implementation's semantics, including ordering and error taxonomy, and
// is the backend used by unit tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimensions int
	records    map[string]memRecord
}

type memRecord struct {
	Record
	updatedAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (s *Memory) EnsureCollection(_ context.Context, name string, dimensions int) error {
	if dimensions < 1 {
		return fmt.Errorf("%w: invalid dimensions %d for collection %q", ErrCollectionConflict, dimensions, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.dimensions != dimensions {
			return fmt.Errorf("%w: collection %q has %d dimensions, requested %d",
				ErrCollectionConflict, name, c.dimensions, dimensions)
		}
		return nil
	}
	s.collections[name] = &memCollection{
		dimensions: dimensions,
		records:    make(map[string]memRecord),
	}
	return nil
}

func (s *Memory) Upsert(_ context.Context, collection string, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	for _, r := range records {
		if len(r.Embedding) != c.dimensions {
			return 0, fmt.Errorf("%w: record %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, r.ID, len(r.Embedding), collection, c.dimensions)
		}
	}

	now := time.Now()
	for _, r := range records {
		cp := r
		cp.Embedding = slices.Clone(r.Embedding)
		cp.Metadata = maps.Clone(r.Metadata)
		c.records[r.ID] = memRecord{Record: cp, updatedAt: now}
	}
	return len(records), nil
}

func (s *Memory) ReplaceDocument(_ context.Context, collection, documentID string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	for _, r := range records {
		if len(r.Embedding) != c.dimensions {
			return fmt.Errorf("%w: record %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, r.ID, len(r.Embedding), collection, c.dimensions)
		}
	}

	for id, r := range c.records {
		if r.DocumentID == documentID {
			delete(c.records, id)
		}
	}
	now := time.Now()
	for _, r := range records {
		cp := r
		cp.Embedding = slices.Clone(r.Embedding)
		cp.Metadata = maps.Clone(r.Metadata)
		c.records[r.ID] = memRecord{Record: cp, updatedAt: now}
	}
	return nil
}

func (s *Memory) DeleteDocument(_ context.Context, collection, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	for id, r := range c.records {
		if r.DocumentID == documentID {
			delete(c.records, id)
		}
	}
	return nil
}

func (s *Memory) Search(_ context.Context, collection string, query []float32, opts ...SearchOption) ([]Match, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK < 1 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(query), collection, c.dimensions)
	}

	var matches []Match
	for _, r := range c.records {
		if !matchesFilter(r.Metadata, cfg.filter) {
			continue
		}
		matches = append(matches, Match{Record: r.Record, Score: cosineSimilarity(query, r.Embedding)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].SequenceIndex != matches[j].SequenceIndex {
			return matches[i].SequenceIndex < matches[j].SequenceIndex
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > cfg.topK {
		matches = matches[:cfg.topK]
	}
	return matches, nil
}

func (s *Memory) ListDocuments(_ context.Context, collection string) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}

	byDoc := make(map[string]*DocumentInfo)
	for _, r := range c.records {
		info, ok := byDoc[r.DocumentID]
		if !ok {
			info = &DocumentInfo{DocumentID: r.DocumentID}
			byDoc[r.DocumentID] = info
		}
		info.Chunks++
		if r.updatedAt.After(info.UpdatedAt) {
			info.UpdatedAt = r.updatedAt
		}
	}

	docs := make([]DocumentInfo, 0, len(byDoc))
	for _, info := range byDoc {
		docs = append(docs, *info)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocumentID < docs[j].DocumentID })
	return docs, nil
}

func (s *Memory) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	return len(c.records), nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
