// Package chunker splits normalized document text into overlapping,
// boundary-respecting segments sized for embedding and retrieval.
//
// The splitter is recursive: it tries the highest-priority separator first
// (paragraph break), descending to sentence punctuation, whitespace, and
// finally a hard character cut. Splitting is deterministic: the same text
// and configuration always produce byte-identical chunks and IDs, so
// re-chunking a document is idempotent.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultChunkSize is the default maximum chunk length in characters,
// matching the original ingestion pipeline defaults.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of characters shared with the
// preceding chunk.
const DefaultOverlap = 200

// DefaultSeparators is the reference separator priority: paragraph break,
// line break, sentence-ending punctuation, then single spaces. When none
// apply the chunker falls back to a hard cut at exactly ChunkSize.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// ErrInvalidConfiguration indicates chunking parameters that can never
// produce a valid split (checked with errors.Is).
var ErrInvalidConfiguration = errors.New("invalid chunker configuration")

// Chunk is a contiguous segment of a document's text.
//
// StartOffset and EndOffset are rune offsets into the source text, end
// exclusive. For every chunk after the first, StartOffset reaches back into
// the previous chunk's range by OverlapWithPrevious runes.
type Chunk struct {
	ID                  string
	DocumentID          string
	SequenceIndex       int
	Text                string
	StartOffset         int
	EndOffset           int
	OverlapWithPrevious int

	// Embedding is populated by the embedding step; nil until then.
	Embedding []float32
}

// Config holds chunker parameters.
type Config struct {
	// ChunkSize is the maximum chunk length in runes before overlap is
	// applied. Must be >= 1.
	ChunkSize int

	// Overlap is the number of trailing runes of the previous chunk
	// prefixed to each subsequent chunk. Must be < ChunkSize.
	Overlap int

	// Separators overrides the split priority. Empty = DefaultSeparators.
	Separators []string
}

// Chunker produces deterministic chunk sequences for document text.
// Safe for concurrent use; all state is immutable after construction.
type Chunker struct {
	size       int
	overlap    int
	separators [][]rune
}

// New creates a Chunker, failing fast on configuration that would risk an
// infinite split loop. Overlap >= ChunkSize is rejected rather than clamped
// so misconfiguration surfaces immediately.
func New(cfg Config) (*Chunker, error) {
	size := cfg.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	overlap := cfg.Overlap

	if size < 1 {
		return nil, fmt.Errorf("%w: chunk size must be >= 1, got %d", ErrInvalidConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be >= 0, got %d", ErrInvalidConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfiguration, overlap, size)
	}

	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	runeSeps := make([][]rune, 0, len(seps))
	for _, s := range seps {
		if s == "" {
			return nil, fmt.Errorf("%w: empty separator (hard cut is implicit)", ErrInvalidConfiguration)
		}
		runeSeps = append(runeSeps, []rune(s))
	}

	return &Chunker{size: size, overlap: overlap, separators: runeSeps}, nil
}

// span is a half-open rune interval [start, end) into the source text.
type span struct {
	start, end int
}

// Split chunks text into an ordered sequence of Chunks. Empty or
// whitespace-only text yields zero chunks. Chunk IDs are derived from the
// document ID and sequence index, so the same inputs always produce the
// same IDs.
func (c *Chunker) Split(documentID, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	pieces := c.split(runes, 0, len(runes), 0)
	cores := c.merge(pieces)

	chunks := make([]Chunk, 0, len(cores))
	for i, core := range cores {
		start := core.start
		overlap := 0
		if i > 0 && c.overlap > 0 {
			prev := cores[i-1]
			start = c.overlapStart(runes, prev)
			overlap = prev.end - start
		}
		chunks = append(chunks, Chunk{
			ID:                  documentID + ":" + strconv.Itoa(i),
			DocumentID:          documentID,
			SequenceIndex:       i,
			Text:                string(runes[start:core.end]),
			StartOffset:         start,
			EndOffset:           core.end,
			OverlapWithPrevious: overlap,
		})
	}
	return chunks
}

// split recursively divides [start, end) into pieces no longer than the
// chunk size, using separators[sepIdx:] in priority order and a hard cut
// when the list is exhausted.
func (c *Chunker) split(runes []rune, start, end, sepIdx int) []span {
	if end-start <= c.size {
		return []span{{start, end}}
	}

	if sepIdx >= len(c.separators) {
		// Hard cut at exactly ChunkSize runes.
		out := make([]span, 0, (end-start+c.size-1)/c.size)
		for s := start; s < end; s += c.size {
			out = append(out, span{s, min(s+c.size, end)})
		}
		return out
	}

	cuts := c.boundaries(runes, start, end, c.separators[sepIdx])
	if len(cuts) == 0 {
		return c.split(runes, start, end, sepIdx+1)
	}

	var out []span
	s := start
	for _, cut := range append(cuts, end) {
		if cut <= s {
			continue
		}
		if cut-s > c.size {
			// Piece still too large; descend to the next separator.
			out = append(out, c.split(runes, s, cut, sepIdx+1)...)
		} else {
			out = append(out, span{s, cut})
		}
		s = cut
	}
	return out
}

// boundaries returns cut positions for sep within [start, end). The
// separator stays attached to the preceding piece, so each cut position is
// the index just past a separator occurrence. A trailing separator yields
// no cut.
func (c *Chunker) boundaries(runes []rune, start, end int, sep []rune) []int {
	var cuts []int
	for i := start; i+len(sep) <= end; i++ {
		if matchAt(runes, i, sep) {
			cut := i + len(sep)
			if cut < end {
				cuts = append(cuts, cut)
			}
			i = cut - 1
		}
	}
	return cuts
}

// merge greedily coalesces adjacent pieces so each resulting core
// approaches ChunkSize as closely as possible without exceeding it.
func (c *Chunker) merge(pieces []span) []span {
	out := make([]span, 0, len(pieces))
	cur := pieces[0]
	for _, p := range pieces[1:] {
		if p.end-cur.start <= c.size {
			cur.end = p.end
		} else {
			out = append(out, cur)
			cur = p
		}
	}
	return append(out, cur)
}

// overlapStart computes where the chunk following prev should begin.
//
// The ideal start is overlap runes before prev's end. If a separator
// boundary falls inside that window the start is clipped forward to it, so
// the overlap begins on a natural boundary instead of mid-word. The start
// is always kept past prev.start to guarantee monotonic progress on inputs
// shorter than the overlap.
func (c *Chunker) overlapStart(runes []rune, prev span) int {
	want := prev.end - c.overlap
	if want <= prev.start {
		want = prev.start + 1
	}

	for _, sep := range c.separators {
		for pos := want; pos+len(sep) <= prev.end; pos++ {
			if matchAt(runes, pos, sep) {
				if b := pos + len(sep); b < prev.end {
					return b
				}
			}
		}
	}
	return want
}

func matchAt(runes []rune, pos int, sep []rune) bool {
	if pos+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}
