package session

// DefaultWindow is the default number of prior exchanges (user/assistant
// pairs) carried into prompt assembly.
const DefaultWindow = 5

// Window bounds conversation history FIFO-style: the oldest exchanges
// drop out first. The value is a number of exchanges, so a window of 5
// keeps at most 10 turns.
type Window int

// Trim returns the most recent turns that fit the window, preserving
// chronological order. A window <= 0 keeps nothing. The cut is aligned to
// the start of an exchange: when the boundary would split a pair, the
// leading assistant turn is dropped too.
func (w Window) Trim(turns []Turn) []Turn {
	if w <= 0 || len(turns) == 0 {
		return nil
	}

	keep := 2 * int(w)
	if len(turns) <= keep {
		return turns
	}
	trimmed := turns[len(turns)-keep:]

	// An exchange starts with a user turn; drop an orphaned assistant
	// turn left at the head of the window.
	if trimmed[0].Role == RoleAssistant {
		trimmed = trimmed[1:]
	}
	return trimmed
}
