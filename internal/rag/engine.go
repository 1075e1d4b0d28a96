// Package rag orchestrates a retrieval-augmented conversation turn:
// embed the query, retrieve the closest chunks, assemble a grounded
// prompt with the windowed session history, and generate an answer.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ragpipe/ragpipe/internal/log"
	"github.com/ragpipe/ragpipe/internal/provider"
	"github.com/ragpipe/ragpipe/internal/session"
	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// NoContextPolicy controls what happens when retrieval yields nothing.
type NoContextPolicy string

const (
	// NoContextAnswer lets the model answer from general knowledge,
	// with the prompt disclosing that no context was found.
	NoContextAnswer NoContextPolicy = "answer"

	// NoContextRefuse short-circuits with a canned refusal and never
	// calls the generator.
	NoContextRefuse NoContextPolicy = "refuse"
)

// HistoryStore is the slice of session persistence the engine depends
// on. session.Store satisfies it.
type HistoryStore interface {
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]session.Turn, error)
	AppendTurns(ctx context.Context, sessionID uuid.UUID, turns []session.Turn) error
}

// Config holds engine parameters.
type Config struct {
	// Collection is the vector store collection queried. Default
	// "documents".
	Collection string

	// TopK is how many chunks are retrieved per turn. Default 5.
	TopK int

	// Window bounds how many prior exchanges enter the prompt.
	Window session.Window

	Temperature float32

	// SystemPrompt overrides the built-in grounding instruction.
	SystemPrompt string

	// OnNoContext picks the behavior for empty retrieval. Default
	// NoContextAnswer.
	OnNoContext NoContextPolicy
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.TopK < 1 {
		c.TopK = 5
	}
	if c.Window == 0 {
		c.Window = session.DefaultWindow
	}
	if c.OnNoContext == "" {
		c.OnNoContext = NoContextAnswer
	}
}

// Answer is the outcome of a completed turn.
type Answer struct {
	Text string

	// Sources are the retrieved chunks that grounded the answer, in
	// retrieval order. Empty when retrieval found nothing.
	Sources []vectorstore.Match

	// State is the terminal phase of this turn, StateCompleted on
	// success.
	State State
}

// ChunkIDs returns the IDs of the chunks that grounded the answer.
func (a Answer) ChunkIDs() []string {
	ids := make([]string, 0, len(a.Sources))
	for _, m := range a.Sources {
		ids = append(ids, m.ID)
	}
	return ids
}

// Engine runs retrieval-augmented turns. Safe for concurrent use: each
// turn tracks its own phase, reported via Answer.State or TurnError.
type Engine struct {
	embedder  provider.Embedder
	generator provider.Generator
	store     vectorstore.Store
	sessions  HistoryStore
	cfg       Config
	logger    log.Logger
}

// New constructs an Engine.
func New(embedder provider.Embedder, generator provider.Generator, store vectorstore.Store, sessions HistoryStore, cfg Config, logger log.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		embedder:  embedder,
		generator: generator,
		store:     store,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
	}
}

// SubmitTurn runs one full turn for the session: embed, retrieve,
// assemble, generate, persist. On success both the user turn and the
// assistant turn (with its retrieved chunk IDs) are appended to the
// session atomically. On failure nothing is appended, so the session
// history is exactly as it was before the call, and the returned
// TurnError names the phase that failed.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID uuid.UUID, query string) (Answer, error) {
	if query == "" {
		return Answer{}, fmt.Errorf("empty query")
	}

	answer, phase, err := e.runTurn(ctx, sessionID, query)
	if err != nil {
		return Answer{}, &TurnError{Phase: phase, Err: err}
	}
	answer.State = StateCompleted
	return answer, nil
}

func (e *Engine) runTurn(ctx context.Context, sessionID uuid.UUID, query string) (Answer, State, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query}, provider.PurposeQuery)
	if err != nil {
		return Answer{}, StateEmbedding, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return Answer{}, StateEmbedding, fmt.Errorf("embedder returned %d vectors for query", len(vecs))
	}

	matches, err := e.store.Search(ctx, e.cfg.Collection, vecs[0], vectorstore.WithTopK(e.cfg.TopK))
	if err != nil {
		return Answer{}, StateRetrieving, fmt.Errorf("retrieving context: %w", err)
	}
	if len(matches) == 0 {
		e.logger.Debug("retrieval returned no context", "session_id", sessionID, "policy", e.cfg.OnNoContext)
	}

	history, err := e.sessions.History(ctx, sessionID, 2*int(e.cfg.Window))
	if err != nil {
		return Answer{}, StatePromptAssembly, fmt.Errorf("loading history: %w", err)
	}
	windowed := e.cfg.Window.Trim(history)

	messages := make([]provider.Message, 0, len(windowed)+1)
	for _, t := range windowed {
		role := provider.RoleUser
		if t.Role == session.RoleAssistant {
			role = provider.RoleAssistant
		}
		messages = append(messages, provider.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: query})

	var text string
	if len(matches) == 0 && e.cfg.OnNoContext == NoContextRefuse {
		text = refusalAnswer
	} else {
		text, err = e.generator.Generate(ctx, provider.GenerateRequest{
			System:      assemblePrompt(e.cfg.SystemPrompt, matches),
			Messages:    messages,
			Temperature: e.cfg.Temperature,
		})
		if err != nil {
			return Answer{}, StateGenerating, fmt.Errorf("generating answer: %w", err)
		}
	}

	answer := Answer{Text: text, Sources: matches}
	err = e.sessions.AppendTurns(ctx, sessionID, []session.Turn{
		{Role: session.RoleUser, Content: query},
		{Role: session.RoleAssistant, Content: text, RetrievedChunkIDs: answer.ChunkIDs()},
	})
	if err != nil {
		return Answer{}, StatePersisting, fmt.Errorf("persisting turn: %w", err)
	}

	e.logger.Info("turn completed",
		"session_id", sessionID,
		"retrieved", len(matches),
		"answer_length", len(text),
	)
	return answer, StateCompleted, nil
}
