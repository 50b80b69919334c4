package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// ToolCall is the audited form of one tool invocation.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Executed  bool   `json:"executed"`
}

// Entry is one audited turn.
type Entry struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	SessionID  string     `json:"session_id"`
	Mode       string     `json:"mode"`
	Query      string     `json:"query"`
	Status     string     `json:"status"`
	Category   string     `json:"category,omitempty"`
	Response   string     `json:"response"`
	ToolCalls  []ToolCall `json:"tool_calls"`
	Iterations int        `json:"iterations"`
	Outcome    string     `json:"outcome"`
	CostUSD    float64    `json:"cost_usd,omitempty"`
}

// Sink persists one serialized entry.
type Sink interface {
	Write(ctx context.Context, line []byte) error
	Close() error
}

// Logger serializes entries and hands them to a Sink one at a time.
type Logger struct {
	mu   sync.Mutex
	sink Sink
	now  func() time.Time
}

func NewLogger(sink Sink) *Logger {
	return &Logger{sink: sink, now: time.Now}
}

// Record fills ID and Timestamp when unset and writes the entry.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.ToolCalls == nil {
		e.ToolCalls = []ToolCall{}
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.sink.Write(ctx, line); err != nil {
		logx.Error().Err(err).Str("audit_id", e.ID).Str("session_id", e.SessionID).Msg("failed to write audit entry")
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Close()
}
