package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sftp-mcp/internal/metrics"
)

// ErrRateLimited is returned when a session issues operations faster than allowed.
var ErrRateLimited = errors.New("rate limit exceeded, please try again later")

// Config holds security configuration settings
type Config struct {
	AllowedHosts []string      // List of allowed hosts (if empty, all hosts are allowed)
	DeniedHosts  []string      // List of denied hosts
	AllowedPaths []string      // List of allowed path prefixes (if empty, all paths are allowed)
	DeniedPaths  []string      // List of denied path prefixes
	ReadOnly     bool          // Reject every operation that modifies the server
	RateLimit    time.Duration // Minimum time between operations (rate limiting)
}

// Manager enforces the access policy for SFTP sessions
type Manager struct {
	config      Config
	logger      *zap.Logger
	rateLimiter map[string]time.Time // Maps session IDs to last operation time
	mu          sync.Mutex
}

// NewManager creates a new security manager with the given configuration
func NewManager(config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:      config,
		logger:      logger,
		rateLimiter: make(map[string]time.Time),
	}
}

// CheckHost verifies if a host is allowed to connect
func (m *Manager) CheckHost(host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Remove port from host if present
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	// Check denied hosts first
	for _, denied := range m.config.DeniedHosts {
		if matchHost(host, denied) {
			m.deny("host_denied", zap.String("host", host))
			return fmt.Errorf("host %s is denied", host)
		}
	}

	// If allowed hosts is empty, all hosts are allowed
	if len(m.config.AllowedHosts) == 0 {
		return nil
	}

	for _, allowed := range m.config.AllowedHosts {
		if matchHost(host, allowed) {
			return nil
		}
	}

	m.deny("host_not_allowed", zap.String("host", host))
	return fmt.Errorf("host %s is not allowed", host)
}

// CheckPath verifies that a session may run op on the given remote paths.
// Modifying operations are rejected in read-only mode.
func (m *Manager) CheckPath(sessionID, op string, modifies bool, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.RateLimit > 0 {
		lastOp, exists := m.rateLimiter[sessionID]
		now := time.Now()
		if exists && now.Sub(lastOp) < m.config.RateLimit {
			m.deny("rate_limited", zap.String("session", sessionID), zap.String("op", op))
			return ErrRateLimited
		}
		m.rateLimiter[sessionID] = now
	}

	if modifies && m.config.ReadOnly {
		m.deny("read_only", zap.String("session", sessionID), zap.String("op", op))
		return fmt.Errorf("operation %s is not allowed in read-only mode", op)
	}

	for _, p := range paths {
		if err := m.checkPath(sessionID, op, p); err != nil {
			return err
		}
	}

	m.logger.Debug("operation allowed", zap.String("session", sessionID), zap.String("op", op), zap.Strings("paths", paths))
	return nil
}

func (m *Manager) checkPath(sessionID, op, p string) error {
	for _, denied := range m.config.DeniedPaths {
		if matchPath(p, denied) {
			m.deny("path_denied", zap.String("session", sessionID), zap.String("op", op), zap.String("path", p))
			return fmt.Errorf("path '%s' is denied", p)
		}
	}

	if len(m.config.AllowedPaths) == 0 {
		return nil
	}

	for _, allowed := range m.config.AllowedPaths {
		if matchPath(p, allowed) {
			return nil
		}
	}

	m.deny("path_not_allowed", zap.String("session", sessionID), zap.String("op", op), zap.String("path", p))
	return fmt.Errorf("path '%s' is not allowed", p)
}

func (m *Manager) deny(reason string, fields ...zap.Field) {
	metrics.RecordPolicyDenial(reason)
	m.logger.Warn("policy denied request", append(fields, zap.String("reason", reason))...)
}

// Forget drops the rate limiter state of a closed session
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rateLimiter, sessionID)
}

// CleanupRateLimiter removes old entries from the rate limiter
func (m *Manager) CleanupRateLimiter(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for sessionID, lastOp := range m.rateLimiter {
		if now.Sub(lastOp) > maxAge {
			delete(m.rateLimiter, sessionID)
		}
	}
}

// StartCleanupRoutine periodically cleans up the rate limiter until ctx is done
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute // Default cleanup interval
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute // Default max age
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupRateLimiter(maxAge)
			}
		}
	}()
}

// matchHost checks if a host matches a pattern (supports wildcards)
func matchHost(host, pattern string) bool {
	// Simple exact match
	if host == pattern {
		return true
	}

	// Wildcard match
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // Remove the *
		return strings.HasSuffix(host, suffix)
	}

	// CIDR match
	if strings.Contains(pattern, "/") {
		_, ipNet, err := net.ParseCIDR(pattern)
		if err != nil {
			return false
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ipNet.Contains(ip)
	}

	return false
}

// matchPath reports whether p is prefix or lies below it. Both are cleaned and
// treated as rooted, so "a/../b" cannot escape a denied prefix.
func matchPath(p, prefix string) bool {
	p = path.Clean("/" + p)
	prefix = path.Clean("/" + prefix)

	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}
