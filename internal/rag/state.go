package rag

import "fmt"

// State identifies a phase of a conversation turn: Embedding ->
// Retrieving -> PromptAssembly -> Generating -> Persisting ->
// Completed. State is scoped to a single turn, so concurrent turns on
// one engine report their phases independently.
type State string

const (
	StateEmbedding      State = "embedding"
	StateRetrieving     State = "retrieving"
	StatePromptAssembly State = "prompt_assembly"
	StateGenerating     State = "generating"
	StatePersisting     State = "persisting"
	StateCompleted      State = "completed"
)

// TurnError reports a failed turn along with the phase that was running
// when the failure happened.
type TurnError struct {
	Phase State
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed during %s: %v", e.Phase, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }
