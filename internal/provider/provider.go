// Package provider defines the interfaces for embedding and text
// generation backends, plus the error taxonomy shared by all
// implementations. Concrete backends live in subpackages; callers depend
// only on the interfaces here.
package provider

import "context"

// Purpose tells an embedder what the embedding will be used for. Some
// backends produce asymmetric embeddings tuned per task.
type Purpose string

const (
	// PurposeDocument marks corpus text being indexed.
	PurposeDocument Purpose = "document"
	// PurposeQuery marks user query text being searched with.
	PurposeQuery Purpose = "query"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn passed to a generator.
type Message struct {
	Role    Role
	Content string
}

// GenerateRequest carries everything a generator needs for one completion.
// Messages are ordered oldest first; the final message is the current user
// prompt.
type GenerateRequest struct {
	System      string
	Messages    []Message
	Temperature float32
}

// Embedder converts text into fixed-dimension vectors.
//
// Embed returns one vector per input text, in input order. Partial results
// are never returned: on error the whole call failed.
type Embedder interface {
	Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error)

	// Dimensions reports the vector width this embedder produces.
	Dimensions() int

	// Name identifies the backend and model for logs and errors.
	Name() string
}

// Generator produces a completion for a conversation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	Name() string
}
