package rag

import (
	"fmt"
	"strings"

	"github.com/ragpipe/ragpipe/internal/vectorstore"
)

// defaultSystemPrompt grounds the model in retrieved context and asks for
// source citations by bracket number.
const defaultSystemPrompt = `You are a helpful assistant that answers questions using the provided context.
Base your answer on the context below. Cite sources by their bracket number, e.g. [1].
If the context does not contain the answer, say so instead of guessing.`

// noContextNote is appended to the system prompt when retrieval found
// nothing and the engine is configured to answer anyway.
const noContextNote = `No relevant context was found for this question.
Answer from general knowledge and tell the user the answer is not grounded in their documents.`

// refusalAnswer is returned without calling the model when retrieval
// found nothing and the engine is configured to refuse.
const refusalAnswer = "I couldn't find anything relevant to your question in the indexed documents."

// assemblePrompt builds the system instruction for one turn. Each
// retrieved chunk is annotated with a bracket number, its source path
// when known, and its chunk ID, so answers can cite where text came from.
func assemblePrompt(system string, matches []vectorstore.Match) string {
	if system == "" {
		system = defaultSystemPrompt
	}
	if len(matches) == 0 {
		return system + "\n\n" + noContextNote
	}

	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nContext:\n")
	for i, m := range matches {
		source := m.Metadata["file_path"]
		if source == "" {
			source = m.DocumentID
		}
		fmt.Fprintf(&b, "\n[%d] %s (chunk %s)\n%s\n", i+1, source, m.ID, strings.TrimSpace(m.Text))
	}
	return b.String()
}
