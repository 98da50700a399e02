package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of most recent messages a session keeps
// after eviction; eviction runs once its history exceeds twice this many.
const DefaultMaxHistory = 10

// Manager owns the set of live sessions for one Orchestrator process.
type Manager struct {
	sessions   map[string]*Session
	maxHistory int
	mu         sync.RWMutex
}

// NewManager creates an empty session Manager. maxHistory of 0 selects
// DefaultMaxHistory.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
	}
}

// Create starts a new, empty session. Callers add the first message
// themselves (Chat does this unconditionally, whether the session is
// brand new or resumed), so a session's history always reflects exactly
// the messages a caller recorded, never ones seeded implicitly here.
func (m *Manager) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		maxHistory: m.maxHistory,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return s, nil
}

// List returns snapshots of all known sessions.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// Delete removes a session.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	delete(m.sessions, sessionID)
	return nil
}
