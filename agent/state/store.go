package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrStateNotFound  = errors.New("session state not found")
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

// Store is the persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sessionID string) error
}

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendUpstash  Backend = "upstash"
	BackendPostgres Backend = "postgres"
)

// prepareSave normalizes a session before it is written by any backend.
func prepareSave(s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	} else {
		s.UpdatedAt = s.UpdatedAt.UTC()
	}
	return s.Validate()
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. Loaded sessions are copies.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := prepareSave(s); err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.SessionID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}
