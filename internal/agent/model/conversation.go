package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// SessionRepository stores per-session conversation history. Sessions are
// created lazily on first reference and only removed by an explicit Clear.
type SessionRepository interface {
	// Get returns the session, creating an empty one when it does not exist yet.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Append adds messages to the end of the session history in one step.
	Append(ctx context.Context, sessionID string, messages ...*schema.Message) error

	// Clear removes all history for a session.
	Clear(ctx context.Context, sessionID string) error

	// Count returns the number of messages in the session.
	Count(ctx context.Context, sessionID string) (int, error)
}

// Session is a snapshot of one conversation's history.
type Session struct {
	ID       string
	Messages []*schema.Message
}
