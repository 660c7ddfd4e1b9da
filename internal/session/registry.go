package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sftp-mcp/internal/metrics"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Session is a Manager registered under an ID
type Session struct {
	ID           string
	Manager      *Manager
	CreatedAt    time.Time
	LastActivity time.Time
	Host         string
	Username     string
}

// Registry keeps independent Managers keyed by session ID and expires idle ones
type Registry struct {
	sessions      map[string]*Session
	mu            sync.RWMutex
	sessionExpiry time.Duration
	logger        *zap.Logger
}

// NewRegistry creates a new registry with the given session expiry duration
func NewRegistry(sessionExpiry time.Duration, logger *zap.Logger) *Registry {
	if sessionExpiry <= 0 {
		sessionExpiry = 30 * time.Minute // Default expiry time
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		sessions:      make(map[string]*Session),
		sessionExpiry: sessionExpiry,
		logger:        logger,
	}
}

// Add registers a Manager under a fresh ID
func (r *Registry) Add(manager *Manager) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := manager.Config()
	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		Manager:      manager,
		CreatedAt:    now,
		LastActivity: now,
		Host:         cfg.Host,
		Username:     cfg.Username,
	}

	r.sessions[session.ID] = session
	metrics.SetActiveSessions(len(r.sessions))
	return session
}

// Get retrieves a session by ID and updates its last activity time
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}

	session.LastActivity = time.Now()
	return session, nil
}

// Remove closes a session and forgets it
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	session, exists := r.sessions[id]
	if exists {
		delete(r.sessions, id)
		metrics.SetActiveSessions(len(r.sessions))
	}
	r.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	return session.close()
}

// List returns a snapshot of all registered sessions
func (r *Registry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, *session)
	}

	return sessions
}

// CleanupExpiredSessions removes sessions that have been inactive for longer than the expiry duration
func (r *Registry) CleanupExpiredSessions() int {
	r.mu.Lock()
	now := time.Now()
	var expired []*Session
	for id, session := range r.sessions {
		if now.Sub(session.LastActivity) > r.sessionExpiry {
			expired = append(expired, session)
			delete(r.sessions, id)
		}
	}
	metrics.SetActiveSessions(len(r.sessions))
	r.mu.Unlock()

	for _, session := range expired {
		if err := session.close(); err != nil {
			r.logger.Warn("closing expired session failed", zap.String("session", session.ID), zap.Error(err))
		}
		r.logger.Info("session expired", zap.String("session", session.ID), zap.String("host", session.Host))
	}

	return len(expired)
}

// StartCleanupRoutine periodically cleans up expired sessions until ctx is done
func (r *Registry) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute // Default cleanup interval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupExpiredSessions()
			}
		}
	}()
}

// CloseAll closes and forgets every session
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	metrics.SetActiveSessions(0)
	r.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
}

func (s *Session) close() error {
	if s.Manager == nil {
		return nil
	}
	return s.Manager.Close()
}
