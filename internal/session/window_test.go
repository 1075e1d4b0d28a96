package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchange(n int) []Turn {
	return []Turn{
		{Role: RoleUser, Content: fmt.Sprintf("question %d", n)},
		{Role: RoleAssistant, Content: fmt.Sprintf("answer %d", n)},
	}
}

func conversation(exchanges int) []Turn {
	var turns []Turn
	for i := range exchanges {
		turns = append(turns, exchange(i)...)
	}
	return turns
}

func TestWindowKeepsRecentExchanges(t *testing.T) {
	turns := conversation(8)
	trimmed := Window(3).Trim(turns)

	require.Len(t, trimmed, 6)
	assert.Equal(t, "question 5", trimmed[0].Content)
	assert.Equal(t, "answer 7", trimmed[5].Content)
}

func TestWindowShortHistoryUntouched(t *testing.T) {
	turns := conversation(2)
	trimmed := Window(5).Trim(turns)
	assert.Equal(t, turns, trimmed)
}

func TestWindowZeroKeepsNothing(t *testing.T) {
	assert.Nil(t, Window(0).Trim(conversation(3)))
	assert.Nil(t, Window(-1).Trim(conversation(3)))
}

func TestWindowEmptyHistory(t *testing.T) {
	assert.Nil(t, Window(5).Trim(nil))
}

func TestWindowAlignsToExchangeStart(t *testing.T) {
	// History starting mid-exchange: assistant turn first.
	turns := append([]Turn{{Role: RoleAssistant, Content: "orphan answer"}}, conversation(3)...)

	trimmed := Window(10).Trim(turns)
	assert.Equal(t, turns, trimmed) // fits entirely, no trim

	trimmed = Window(3).Trim(turns)
	require.NotEmpty(t, trimmed)
	assert.Equal(t, RoleUser, trimmed[0].Role)
	assert.Len(t, trimmed, 6)
}

func TestWindowFIFOOrderPreserved(t *testing.T) {
	turns := conversation(5)
	trimmed := Window(2).Trim(turns)

	require.Len(t, trimmed, 4)
	for i := 0; i < len(trimmed)-1; i++ {
		if trimmed[i].Role == RoleUser {
			assert.Equal(t, RoleAssistant, trimmed[i+1].Role)
		}
	}
}
