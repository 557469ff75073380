package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/claimline/internal/types"
)

// MemoryStore keeps sessions for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[types.UserKey]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[types.UserKey]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the user's session, creating an idle one on first use.
func (m *MemoryStore) Get(_ context.Context, user types.UserKey) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[user]
	if !ok {
		s = New(StateIdle)
		s.UpdatedAt = m.now()
		m.sessions[user] = s
	}
	return s.Clone(), nil
}

// Set stores a copy of s.
func (m *MemoryStore) Set(_ context.Context, user types.UserKey, s *Session) error {
	c := s.Clone()
	m.mu.Lock()
	m.sessions[user] = c
	m.mu.Unlock()
	return nil
}

// Reset replaces the user's session with a fresh one in the given state.
func (m *MemoryStore) Reset(ctx context.Context, user types.UserKey, state State) (*Session, error) {
	s := New(state)
	s.UpdatedAt = m.now()
	if err := m.Set(ctx, user, s); err != nil {
		return nil, err
	}
	return m.Get(ctx, user)
}

// List returns copies of every session ordered by user key.
func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.sessions))
	for k, s := range m.sessions {
		out = append(out, Entry{UserKey: k, Session: s.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserKey < out[j].UserKey })
	return out, nil
}
