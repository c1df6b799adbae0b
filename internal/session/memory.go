package session

import (
	"context"
	"sync"
	"time"

	"oliv/internal/model"
)

// MemoryStore keeps sessions in process memory with a sliding TTL
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*model.Session
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*model.Session),
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return newSession(id), nil
	}
	if m.expiredLocked(s) {
		delete(m.sessions, id)
		return newSession(id), nil
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneSession(s)
	stored.History = trimHistory(stored.History, m.maxMessages)
	stored.UpdatedAt = m.now()
	m.sessions[s.ID] = stored
	s.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep drops every expired session and returns how many were removed
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expiredLocked(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired sessions every interval until ctx is done
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of stored sessions, expired or not
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) expiredLocked(s *model.Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
