package transcript

import (
	"context"
	"sync"
)

// MemoryStore holds transcripts for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Entry)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, entries ...Entry) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], entries...)
	return nil
}

// List returns a copy; callers may keep it after further appends.
func (s *MemoryStore) List(_ context.Context, sessionID string) ([]Entry, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sessions[sessionID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
