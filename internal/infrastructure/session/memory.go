package session

import (
	"sync"

	"github.com/bekzodov/kutubxona-bot/internal/core/domain"
)

// MemoryStore holds sessions for the lifetime of the process. Losing them on
// restart is an accepted failure mode; users restart with /start. The map is
// guarded for concurrent lookups from different chat lanes, while each
// session itself is only ever touched by its own lane.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// Get returns the session for identity, creating an idle one on first use.
func (m *MemoryStore) Get(identity string) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[identity]; ok {
		return s
	}
	s := domain.NewSession(identity)
	m.sessions[identity] = s
	return s
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
