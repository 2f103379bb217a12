// Package session manages live form sessions: one form instance per
// connected client, with its handle, props and event recording.
package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/matthewbaird/formengine/internal/event"
	"github.com/matthewbaird/formengine/internal/form"
)

// Session holds per-connection form state.
type Session struct {
	ID        string
	Form      *form.Form
	Handle    *form.Handle
	CreatedAt time.Time

	props  form.FormProps
	cancel func()

	mu           sync.Mutex
	lastActiveAt time.Time
}

// Summary is the listing view of a session.
type Summary struct {
	ID           string    `json:"id"`
	Form         string    `json:"form"`
	Active       bool      `json:"active"`
	Valid        bool      `json:"valid"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Age          string    `json:"age"`
	LastSeen     string    `json:"last_seen"`
}

// Render renders the session's form with its props.
func (s *Session) Render() ([]*form.Rendered, error) {
	s.Touch()
	return s.Form.Render(s.props)
}

// Props returns the props the session renders with.
func (s *Session) Props() form.FormProps { return s.props }

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
}

// LastActiveAt returns the last activity timestamp.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	return timeout > 0 && time.Since(s.LastActiveAt()) > timeout
}

func (s *Session) summary() Summary {
	last := s.LastActiveAt()
	return Summary{
		ID:           s.ID,
		Form:         s.Form.Name(),
		Active:       s.Handle.GetActive(),
		Valid:        s.Handle.IsFormValid(),
		CreatedAt:    s.CreatedAt,
		LastActiveAt: last,
		Age:          humanize.Time(s.CreatedAt),
		LastSeen:     humanize.Time(last),
	}
}

func (s *Session) close() {
	s.cancel()
	s.Form.Close()
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	recorder    event.Recorder
}

// NewManager creates a session manager with the given timeouts. A zero
// timeout disables that check.
func NewManager(maxAge, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
	}
}

// SetRecorder attaches an event recorder. Sessions created afterwards
// record every engine event under their ID.
func (m *Manager) SetRecorder(r event.Recorder) {
	m.mu.Lock()
	m.recorder = r
	m.mu.Unlock()
}

// Create registers a session for f and mounts it with props. The session
// owns its handle; any handle in props is replaced.
func (m *Manager) Create(f *form.Form, props form.FormProps) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:           uuid.New().String(),
		Form:         f,
		Handle:       &form.Handle{},
		CreatedAt:    now,
		lastActiveAt: now,
		cancel:       func() {},
	}
	props.Handle = s.Handle
	s.props = props

	m.mu.RLock()
	rec := m.recorder
	m.mu.RUnlock()
	if rec != nil {
		id := s.ID
		s.cancel = f.Engine().Subscribe(func(evt form.Event) {
			if err := rec.Record(context.Background(), event.FromForm(id, evt)); err != nil {
				log.Printf("session: %s record %s: %v", id[:8], evt.Type, err)
			}
		})
	}

	if _, err := s.Render(); err != nil {
		s.close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	return s
}

// Remove deletes a session and stops its form.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
}

// Cleanup removes all expired and idle sessions. Called periodically.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
			delete(m.sessions, id)
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

// List returns a summary of every live session, newest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.summary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Close removes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
