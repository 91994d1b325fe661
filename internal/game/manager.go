package game

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager is the owning process for sessions: it creates them, hands out
// lookups to the transport, and discards a session when it signals its
// own termination.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newZone  ZoneFactory
	log      *zap.Logger
}

func NewManager(newZone ZoneFactory, log *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		newZone:  newZone,
		log:      log,
	}
}

// Create builds a new session with a fresh id and registers it.
func (m *Manager) Create(cfg Config) *Session {
	id := uuid.NewString()
	s := NewSession(id, cfg, m.newZone, m.log.With(zap.String("session", id)), m.sessionTerminated)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.Info("session created",
		zap.String("session", id),
		zap.Bool("withBot", cfg.WithBot))
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshots returns a view of every live session.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	return snaps
}

// sessionTerminated handles a session's self-destruct signal.
func (m *Manager) sessionTerminated(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.log.Info("session discarded", zap.String("session", id))
	}
}

// Close shuts down every remaining session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
