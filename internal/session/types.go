// Package session persists conversation sessions and their turns in
// PostgreSQL, and provides the windowing helper that bounds how much
// history flows into prompt assembly.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one conversation.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	TurnCount int
}

// Turn is a single message within a session. Assistant turns carry the
// IDs of the chunks retrieved to ground the answer; user turns leave
// RetrievedChunkIDs empty.
type Turn struct {
	ID                int64
	SessionID         uuid.UUID
	Role              Role
	Content           string
	RetrievedChunkIDs []string
	CreatedAt         time.Time
}

// ErrSessionNotFound indicates the requested session does not exist.
// Checked with errors.Is.
var ErrSessionNotFound = errors.New("session not found")
