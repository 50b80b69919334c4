package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

const DefaultMaxHistory = 20

// ResetAction is what a query asks the session to do before processing.
type ResetAction int

const (
	ResetNone ResetAction = iota
	// ResetAndContinue clears history and then answers the query.
	ResetAndContinue
	// ResetOnly clears history and ends the turn.
	ResetOnly
)

var (
	endKeywords   = []string{"end chat", "stop session"}
	resetKeywords = []string{"new patient", "start over"}
)

// DetectReset looks for session keywords anywhere in the query. End keywords win.
func DetectReset(query string) ResetAction {
	q := strings.ToLower(query)
	for _, kw := range endKeywords {
		if strings.Contains(q, kw) {
			return ResetOnly
		}
	}
	for _, kw := range resetKeywords {
		if strings.Contains(q, kw) {
			return ResetAndContinue
		}
	}
	return ResetNone
}

type MessagesManager struct {
	repo       model.SessionRepository
	maxHistory int
}

func NewMessagesManager(repo model.SessionRepository, maxHistory int) *MessagesManager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MessagesManager{repo: repo, maxHistory: maxHistory}
}

// History returns the most recent user and assistant messages of a session.
func (m *MessagesManager) History(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return trimTail(sanitize(session.Messages), m.maxHistory), nil
}

// SaveTurn appends the user message and the final reply in one call.
func (m *MessagesManager) SaveTurn(ctx context.Context, sessionID, query, reply string) error {
	return m.repo.Append(ctx, sessionID, schema.UserMessage(query), schema.AssistantMessage(reply, nil))
}

func (m *MessagesManager) Reset(ctx context.Context, sessionID string) error {
	if err := m.repo.Clear(ctx, sessionID); err != nil {
		return err
	}
	logx.Info().Str("session_id", sessionID).Msg("session memory cleared")
	return nil
}

// ====================== Helper function ======================
func sanitize(messages []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User, schema.Assistant:
			out = append(out, msg)
		}
	}
	return out
}

func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	if len(messages) <= maxMessages {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxMessages:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
