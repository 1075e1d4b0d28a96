// Package ingest drives the document ingestion pipeline: chunk, embed,
// and persist. Embedding runs in bounded-concurrency batches; persistence
// replaces a document's chunks atomically so a failed run never leaves a
// document half-updated.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragpipe/ragpipe/internal/chunker"
	"github.com/ragpipe/ragpipe/internal/docsource"
	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// DefaultCollection is the collection documents land in unless
// configured otherwise.
const DefaultCollection = "documents"

// Config holds pipeline parameters.
type Config struct {
	// Collection is the target collection name. Default "documents".
	Collection string

	// Concurrency bounds how many embedding batches run in parallel.
	// Default 4.
	Concurrency int

	// BatchSize is the number of chunks per embedding call. Default 64.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.BatchSize < 1 {
		c.BatchSize = 64
	}
}

// Pipeline ingests documents into a vector store collection.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder provider.Embedder
	store    vectorstore.Store
	cfg      Config
	logger   log.Logger
}

// New constructs a Pipeline. The collection is created on first use with
// the embedder's dimensions.
func New(ch *chunker.Chunker, embedder provider.Embedder, store vectorstore.Store, cfg Config, logger log.Logger) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		chunker:  ch,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// DocumentResult is the per-document outcome of an ingestion run.
type DocumentResult struct {
	DocumentID string
	Path       string
	Chunks     int
	Err        error
}

// Report summarizes an ingestion run.
type Report struct {
	Documents int
	Failed    int
	Chunks    int
	Duration  time.Duration
	Results   []DocumentResult
}

// IngestDocument chunks, embeds, and persists one document, returning the
// number of chunks written. A document whose text yields no chunks has
// its prior records removed, so re-ingesting an emptied file does not
// leave stale content behind.
func (p *Pipeline) IngestDocument(ctx context.Context, doc docsource.Document) (int, error) {
	if err := p.store.EnsureCollection(ctx, p.cfg.Collection, p.embedder.Dimensions()); err != nil {
		return 0, err
	}

	chunks := p.chunker.Split(doc.ID, doc.Text)
	if len(chunks) == 0 {
		if err := p.store.ReplaceDocument(ctx, p.cfg.Collection, doc.ID, nil); err != nil {
			return 0, err
		}
		p.logger.Debug("document has no content, cleared prior records", "document_id", doc.ID)
		return 0, nil
	}

	embeddings := make([][]float32, len(chunks))
	var embedded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, ch := range chunks[start:end] {
				texts = append(texts, ch.Text)
			}

			vecs, err := p.embedder.Embed(gctx, texts, provider.PurposeDocument)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
			}

			want := p.embedder.Dimensions()
			for i, v := range vecs {
				if len(v) != want {
					return fmt.Errorf("%w: chunk %q got %d dimensions, expected %d",
						vectorstore.ErrDimensionMismatch, chunks[start+i].ID, len(v), want)
				}
				embeddings[start+i] = v
			}
			embedded.Add(int64(len(vecs)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("embedding document %q (%d/%d chunks embedded): %w",
			doc.ID, embedded.Load(), len(chunks), err)
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for i, ch := range chunks {
		records = append(records, vectorstore.Record{
			ID:            ch.ID,
			DocumentID:    ch.DocumentID,
			SequenceIndex: ch.SequenceIndex,
			Text:          ch.Text,
			Metadata:      doc.Metadata,
			Embedding:     embeddings[i],
		})
	}
	if err := p.store.ReplaceDocument(ctx, p.cfg.Collection, doc.ID, records); err != nil {
		return 0, err
	}

	p.logger.Info("ingested document",
		"document_id", doc.ID,
		"path", doc.Path,
		"chunks", len(records),
	)
	return len(records), nil
}

// IngestAll loads every document from the source and ingests each one
// independently: one document's failure is recorded and the run moves on.
// Only context cancellation aborts the whole run.
func (p *Pipeline) IngestAll(ctx context.Context, source docsource.Source) (Report, error) {
	start := time.Now()

	docs, err := source.Load(ctx)
	if err != nil {
		return Report{Duration: time.Since(start)}, fmt.Errorf("loading documents: %w", err)
	}

	report := Report{Results: make([]DocumentResult, 0, len(docs))}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		count, err := p.IngestDocument(ctx, doc)
		result := DocumentResult{DocumentID: doc.ID, Path: doc.Path, Chunks: count, Err: err}
		report.Results = append(report.Results, result)
		if err != nil {
			report.Failed++
			p.logger.Error("document ingestion failed", "document_id", doc.ID, "path", doc.Path, "error", err)
			continue
		}
		report.Documents++
		report.Chunks += count
	}

	report.Duration = time.Since(start)
	p.logger.Info("ingestion run complete",
		"documents", report.Documents,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"duration", report.Duration,
	)
	return report, nil
}

// Remove deletes a document's records from the collection.
func (p *Pipeline) Remove(ctx context.Context, documentID string) error {
	return p.store.DeleteDocument(ctx, p.cfg.Collection, documentID)
}
