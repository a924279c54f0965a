package sessionstore

import (
	"context"
	"sync"
	"time"

	"adaptive_quiz/internal/quiz"
)

type memoryEntry struct {
	state     *quiz.State
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Entries expire lazily after ttl;
// a zero ttl never expires.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uint]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[uint]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, userID uint) (*quiz.State, error) {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, quiz.ErrNoActiveSession
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[userID]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.entries, userID)
		}
		m.mu.Unlock()
		return nil, quiz.ErrNoActiveSession
	}
	return e.state.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, state *quiz.State) error {
	e := memoryEntry{state: state.Clone()}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[state.UserID] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID uint) error {
	m.mu.Lock()
	delete(m.entries, userID)
	m.mu.Unlock()
	return nil
}
