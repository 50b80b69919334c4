package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
)

type memorySession struct {
	mu       sync.Mutex
	messages []*schema.Message
}

// MemorySessionRepository is a process-local session store. The outer lock
// guards the index only; each session serializes its own reads and writes.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*memorySession)}
}

func (r *MemorySessionRepository) lookup(sessionID string, create bool) *memorySession {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok || !create {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[sessionID]; !ok {
		s = &memorySession{messages: []*schema.Message{}}
		r.sessions[sessionID] = s
	}
	return s
}

// Get returns a copy of the history so callers cannot mutate the store.
func (r *MemorySessionRepository) Get(_ context.Context, sessionID string) (*model.Session, error) {
	s := r.lookup(sessionID, true)
	s.mu.Lock()
	out := make([]*schema.Message, len(s.messages))
	copy(out, s.messages)
	s.mu.Unlock()
	return &model.Session{ID: sessionID, Messages: out}, nil
}

func (r *MemorySessionRepository) Append(_ context.Context, sessionID string, messages ...*schema.Message) error {
	s := r.lookup(sessionID, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		if m != nil {
			s.messages = append(s.messages, m)
		}
	}
	return nil
}

// Clear empties the session in place so concurrent holders see the reset.
func (r *MemorySessionRepository) Clear(_ context.Context, sessionID string) error {
	s := r.lookup(sessionID, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.messages = []*schema.Message{}
	s.mu.Unlock()
	return nil
}

func (r *MemorySessionRepository) Count(_ context.Context, sessionID string) (int, error) {
	s := r.lookup(sessionID, false)
	if s == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), nil
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
