// Package memory implements the three-tier memory system: episodic
// experiences, semantic facts, procedural strategies, plus session lifecycle
// and budgeted context assembly for the reasoner.
package memory

import (
	"context"
	"fmt"
	"sync"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/logging"
	"scout/internal/utils/id"
)

// SessionManager owns session lifecycle. At most one session is active per
// manager at any time.
type SessionManager struct {
	store  ports.DocumentStore
	clock  ports.Clock
	logger logging.Logger

	mu      sync.Mutex
	current *types.Session
}

// NewSessionManager creates a session manager over the given store.
func NewSessionManager(store ports.DocumentStore, logger logging.Logger) *SessionManager {
	return &SessionManager{
		store:  store,
		clock:  ports.SystemClock{},
		logger: logging.OrNop(logger),
	}
}

// SetClock overrides the manager clock (tests).
func (m *SessionManager) SetClock(clock ports.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// StartSession creates and activates a new session. It fails when another
// session is still active.
func (m *SessionManager) StartSession(ctx context.Context, topic string, goal types.Goal, userID string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Status == types.SessionActive {
		return nil, fmt.Errorf("session %s is still active", m.current.ID)
	}

	now := m.clock.Now()
	session := types.Session{
		ID:        id.NewSessionID(),
		UserID:    userID,
		Topic:     topic,
		Goal:      goal,
		Status:    types.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.current = &session
	m.logger.Info("Started session %s: %s", session.ID, topic)
	return &session, nil
}

// CompleteSession transitions the active session to a terminal status and
// clears it.
func (m *SessionManager) CompleteSession(ctx context.Context, status types.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return fmt.Errorf("no active session")
	}

	now := m.clock.Now()
	m.current.Status = status
	m.current.UpdatedAt = now
	m.current.CompletedAt = &now
	if err := m.store.UpdateSession(ctx, *m.current); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	m.logger.Info("Session %s finished with status %s", m.current.ID, status)
	m.current = nil
	return nil
}

// CurrentSession returns a copy of the active session, or nil when none is
// active.
func (m *SessionManager) CurrentSession() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// GetSession loads a session by id from the store.
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// ListSessions returns sessions matching the filter.
func (m *SessionManager) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]types.Session, error) {
	return m.store.ListSessions(ctx, filter)
}
