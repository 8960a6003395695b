package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finagent-io/finagent/pkg/models"
)

// ErrNotFound is returned when a session ID is unknown or expired.
var ErrNotFound = errors.New("session not found")

// ErrTurnInProgress is returned when a turn arrives while the session is
// still processing the previous one.
var ErrTurnInProgress = errors.New("session is processing another turn")

// Session is one conversation, owned by its manager. Turn processing is
// serialized through the turn lock: stages execute strictly sequentially
// within a session, while different sessions run in parallel without
// coordination.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu        sync.Mutex // turn lock
	state     *State
	updatedAt time.Time
}

// TryAcquire takes the turn lock without blocking. Returns the state for
// mutation, or ErrTurnInProgress when a turn is already executing.
func (s *Session) TryAcquire() (*State, error) {
	if !s.mu.TryLock() {
		return nil, ErrTurnInProgress
	}
	return s.state, nil
}

// Release returns the turn lock after a turn completes.
func (s *Session) Release() {
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Manager owns all live sessions. Sessions expire after the configured
// idle TTL; expiry only happens between turns because the sweep skips
// sessions whose turn lock is held.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewManager creates a session manager.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create creates a new session for the user, seeded with the stored
// profile (or an empty one).
func (m *Manager) Create(userID string, profile *models.Profile) *Session {
	if profile == nil {
		profile = models.NewProfile(userID)
	}
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		updatedAt: now,
		state: &State{
			Profile: profile,
			Stage:   models.StageGuardrail,
		},
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

// Get retrieves a session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes a session. A session may be deleted between turns only;
// deleting while a turn is in flight returns ErrTurnInProgress.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if !sess.mu.TryLock() {
		return ErrTurnInProgress
	}
	sess.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// List returns the IDs of all live sessions.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartSweeper runs TTL expiry until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// sweep expires idle sessions. Sessions mid-turn are skipped and
// re-checked next cycle.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sess := range m.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		expired := sess.updatedAt.Before(cutoff)
		sess.mu.Unlock()
		if expired {
			delete(m.sessions, id)
		}
	}
}
