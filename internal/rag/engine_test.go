package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
	"github.com/ragpipe/ragpipe/internal/session"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string, _ provider.Purpose) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func (e *fixedEmbedder) Dimensions() int { return len(e.vec) }
func (e *fixedEmbedder) Name() string    { return "fixed" }

type recordingGenerator struct {
	lastReq provider.GenerateRequest
	calls   int
	reply   string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, req provider.GenerateRequest) (string, error) {
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *recordingGenerator) Name() string { return "recording" }

type memoryHistory struct {
	mu    sync.Mutex
	turns map[uuid.UUID][]session.Turn
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{turns: make(map[uuid.UUID][]session.Turn)}
}

func (h *memoryHistory) History(_ context.Context, sessionID uuid.UUID, limit int) ([]session.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := h.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (h *memoryHistory) AppendTurns(_ context.Context, sessionID uuid.UUID, turns []session.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[sessionID] = append(h.turns[sessionID], turns...)
	return nil
}

// seedStore creates a "documents" collection with n unit-vector-ish
// chunks all pointing near the query direction.
func seedStore(t *testing.T, n int) *vectorstore.Memory {
	t.Helper()
	store := vectorstore.NewMemory()
	require.NoError(t, store.EnsureCollection(context.Background(), "documents", 2))

	records := make([]vectorstore.Record, 0, n)
	for i := range n {
		records = append(records, vectorstore.Record{
			ID:            fmt.Sprintf("doc1:%d", i),
			DocumentID:    "doc1",
			SequenceIndex: i,
			Text:          fmt.Sprintf("chunk %d text", i),
			Metadata:      map[string]string{"file_path": "docs/guide.md"},
			Embedding:     []float32{1, float32(i) * 0.01},
		})
	}
	require.NoError(t, store.ReplaceDocument(context.Background(), "documents", "doc1", records))
	return store
}

func TestSubmitTurnRecordsTopKChunkIDs(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, 6)
	gen := &recordingGenerator{reply: "grounded answer [1]"}
	hist := newMemoryHistory()
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, gen, store, hist, Config{TopK: 3}, log.NewNop())

	sessionID := uuid.New()
	answer, err := e.SubmitTurn(ctx, sessionID, "what is in the guide?")
	require.NoError(t, err)

	assert.Equal(t, "grounded answer [1]", answer.Text)
	assert.Len(t, answer.Sources, 3)
	assert.Len(t, answer.ChunkIDs(), 3)
	assert.Equal(t, StateCompleted, answer.State)

	turns := hist.turns[sessionID]
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
	assert.Equal(t, answer.ChunkIDs(), turns[1].RetrievedChunkIDs)
}

func TestSubmitTurnPromptContainsSources(t *testing.T) {
	ctx := context.Background()
	gen := &recordingGenerator{reply: "ok"}
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, gen, seedStore(t, 2), newMemoryHistory(), Config{}, log.NewNop())

	_, err := e.SubmitTurn(ctx, uuid.New(), "question")
	require.NoError(t, err)

	assert.Contains(t, gen.lastReq.System, "Context:")
	assert.Contains(t, gen.lastReq.System, "docs/guide.md")
	assert.Contains(t, gen.lastReq.System, "chunk doc1:0")
	assert.Contains(t, gen.lastReq.System, "[1]")

	require.NotEmpty(t, gen.lastReq.Messages)
	last := gen.lastReq.Messages[len(gen.lastReq.Messages)-1]
	assert.Equal(t, provider.RoleUser, last.Role)
	assert.Equal(t, "question", last.Content)
}

func TestSubmitTurnNoContextAnswers(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	require.NoError(t, store.EnsureCollection(ctx, "documents", 2))

	gen := &recordingGenerator{reply: "from general knowledge"}
	hist := newMemoryHistory()
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, gen, store, hist, Config{OnNoContext: NoContextAnswer}, log.NewNop())

	sessionID := uuid.New()
	answer, err := e.SubmitTurn(ctx, sessionID, "unanswerable question")
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.lastReq.System, "No relevant context")
	assert.Empty(t, answer.Sources)
	assert.Empty(t, hist.turns[sessionID][1].RetrievedChunkIDs)
}

func TestSubmitTurnNoContextRefuses(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	require.NoError(t, store.EnsureCollection(ctx, "documents", 2))

	gen := &recordingGenerator{reply: "should not be called"}
	hist := newMemoryHistory()
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, gen, store, hist, Config{OnNoContext: NoContextRefuse}, log.NewNop())

	sessionID := uuid.New()
	answer, err := e.SubmitTurn(ctx, sessionID, "anything")
	require.NoError(t, err)

	assert.Zero(t, gen.calls)
	assert.True(t, strings.Contains(answer.Text, "couldn't find"))
	assert.Equal(t, StateCompleted, answer.State)

	// The refusal is still part of the conversation record.
	require.Len(t, hist.turns[sessionID], 2)
}

func TestSubmitTurnGeneratorFailureLeavesHistoryUnchanged(t *testing.T) {
	ctx := context.Background()
	gen := &recordingGenerator{err: &provider.UnavailableError{Provider: "test", Op: "generate", Err: errors.New("down")}}
	hist := newMemoryHistory()
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, gen, seedStore(t, 2), hist, Config{}, log.NewNop())

	sessionID := uuid.New()
	_, err := e.SubmitTurn(ctx, sessionID, "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnavailable)

	var te *TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateGenerating, te.Phase)
	assert.Empty(t, hist.turns[sessionID])
}

func TestSubmitTurnEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	hist := newMemoryHistory()
	emb := &fixedEmbedder{vec: []float32{1, 0}, err: &provider.UnavailableError{Provider: "test", Op: "embed", Err: errors.New("down")}}
	e := New(emb, &recordingGenerator{}, seedStore(t, 2), hist, Config{}, log.NewNop())

	sessionID := uuid.New()
	_, err := e.SubmitTurn(ctx, sessionID, "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnavailable)

	var te *TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateEmbedding, te.Phase)
	assert.Empty(t, hist.turns[sessionID])
}

// switchingGenerator fails only for queries containing "broken", so
// concurrent turns on one engine can observe different outcomes.
type switchingGenerator struct{}

func (g *switchingGenerator) Generate(_ context.Context, req provider.GenerateRequest) (string, error) {
	last := req.Messages[len(req.Messages)-1]
	if strings.Contains(last.Content, "broken") {
		return "", &provider.UnavailableError{Provider: "test", Op: "generate", Err: errors.New("down")}
	}
	return "ok", nil
}

func (g *switchingGenerator) Name() string { return "switching" }

func TestSubmitTurnStateScopedPerTurn(t *testing.T) {
	ctx := context.Background()
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, &switchingGenerator{}, seedStore(t, 2), newMemoryHistory(), Config{}, log.NewNop())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			query := "fine question"
			if fail {
				query = "broken question"
			}
			answer, err := e.SubmitTurn(ctx, uuid.New(), query)
			if fail {
				var te *TurnError
				if assert.ErrorAs(t, err, &te) {
					assert.Equal(t, StateGenerating, te.Phase)
				}
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, StateCompleted, answer.State)
			}
		}(i%2 == 0)
	}
	wg.Wait()
}

func TestSubmitTurnWindowsHistory(t *testing.T) {
	ctx := context.Background()
	gen := &recordingGenerator{reply: "ok"}
	hist := newMemoryHistory()
	sessionID := uuid.New()

	for i := range 4 {
		hist.turns[sessionID] = append(hist.turns[sessionID],
			session.Turn{Role: session.RoleUser, Content: fmt.Sprintf("old question %d", i)},
			session.Turn{Role: session.RoleAssistant, Content: fmt.Sprintf("old answer %d", i)},
		)
	}

	e := New(&fixedEmbedder{vec: []float32{1, 0}}, gen, seedStore(t, 1), hist, Config{Window: 2}, log.NewNop())
	_, err := e.SubmitTurn(ctx, sessionID, "new question")
	require.NoError(t, err)

	// 2 exchanges of history plus the new query.
	require.Len(t, gen.lastReq.Messages, 5)
	assert.Equal(t, "old question 2", gen.lastReq.Messages[0].Content)
	assert.Equal(t, "new question", gen.lastReq.Messages[4].Content)
}

func TestSubmitTurnEmptyQuery(t *testing.T) {
	e := New(&fixedEmbedder{vec: []float32{1, 0}}, &recordingGenerator{}, seedStore(t, 1), newMemoryHistory(), Config{}, log.NewNop())
	_, err := e.SubmitTurn(context.Background(), uuid.New(), "")
	require.Error(t, err)
}
