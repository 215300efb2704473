package layout

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// ErrSessionNotFound is returned for an unknown session handle
var ErrSessionNotFound = errors.New("layout session not found")

// Finished sessions are kept this long, and at most this many, so clients can
// still read their final state
const (
	DefaultRetention   = 5 * time.Minute
	DefaultMaxRetained = 256
)

// Manager tracks the sessions started through one simulator so they can be
// addressed by id. Finished sessions are evicted after the retention period
// or, past the retained cap, oldest first.
type Manager struct {
	sim         *Simulator
	retention   time.Duration
	maxRetained int

	mu       sync.RWMutex
	sessions map[string]*Session
	finished []*Session // oldest first
	retired  map[string]*time.Timer
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithRetention sets how long a finished session stays addressable. Zero or
// less keeps it until the retained cap pushes it out.
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) { m.retention = d }
}

// WithMaxRetained caps the number of finished sessions kept. Zero or less
// disables the cap.
func WithMaxRetained(n int) ManagerOption {
	return func(m *Manager) { m.maxRetained = n }
}

// NewManager creates a manager backed by sim
func NewManager(sim *Simulator, opts ...ManagerOption) *Manager {
	m := &Manager{
		sim:         sim,
		retention:   DefaultRetention,
		maxRetained: DefaultMaxRetained,
		sessions:    make(map[string]*Session),
		retired:     make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Simulator returns the underlying simulator
func (m *Manager) Simulator() *Simulator { return m.sim }

// Start begins and registers a new session
func (m *Manager) Start(nodes []synthesis.GraphNode, edges []synthesis.GraphEdge, publish PublishFunc) (*Session, error) {
	s, err := m.sim.start(nodes, edges, publish, m.sessionFinished)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	// The session may have finished before it was registered.
	select {
	case <-s.Done():
		m.retireLocked(s)
	default:
	}
	return s, nil
}

// Retained counts every tracked session, running or finished
func (m *Manager) Retained() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sessionFinished(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retireLocked(s)
}

// retireLocked starts the eviction clock of a finished session. Callers hold m.mu.
func (m *Manager) retireLocked(s *Session) {
	id := s.ID()
	if m.sessions[id] != s {
		return
	}
	if _, ok := m.retired[id]; ok {
		return
	}

	var timer *time.Timer
	if m.retention > 0 {
		timer = time.AfterFunc(m.retention, func() { m.expire(s) })
	}
	m.retired[id] = timer
	m.finished = append(m.finished, s)

	for m.maxRetained > 0 && len(m.finished) > m.maxRetained {
		m.forgetLocked(m.finished[0])
	}
}

func (m *Manager) expire(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ID()] == s {
		m.forgetLocked(s)
	}
}

// forgetLocked drops s from every index. Callers hold m.mu.
func (m *Manager) forgetLocked(s *Session) {
	id := s.ID()
	delete(m.sessions, id)
	if timer, ok := m.retired[id]; ok {
		if timer != nil {
			timer.Stop()
		}
		delete(m.retired, id)
	}
	for i, f := range m.finished {
		if f == s {
			m.finished = append(m.finished[:i], m.finished[i+1:]...)
			break
		}
	}
}

// Get looks up a session by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Cancel cancels the session with the given id
func (m *Manager) Cancel(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Cancel()
	return nil
}

// Remove cancels a session and forgets it
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		m.forgetLocked(s)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Cancel()
	return nil
}

// Active counts sessions still producing frames
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.State() == StateRunning {
			n++
		}
	}
	return n
}

// List returns every tracked session
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// CancelAll cancels every running session, used on shutdown
func (m *Manager) CancelAll() int {
	n := 0
	for _, s := range m.List() {
		if s.State() == StateRunning && s.Cancel() {
			n++
		}
	}
	return n
}
