package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"sftp-mcp/internal/metrics"
	"sftp-mcp/internal/pathutil"
	"sftp-mcp/internal/ssh"
)

// Dialer builds the transport for a configuration.
type Dialer func(cfg ssh.Config) ssh.Conn

// DefaultDialer creates an ssh.Client for the configured host.
func DefaultDialer(cfg ssh.Config) ssh.Conn {
	return ssh.NewClient(cfg.Host, cfg.Port, cfg.Timeout)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDialer replaces transport construction.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dial = d
		}
	}
}

// Manager owns the connect, login and disconnect lifecycle of one SFTP session.
// All methods are safe for concurrent use; calls are serialized.
type Manager struct {
	cfg    ssh.Config
	auth   *ssh.Authenticator
	dial   Dialer
	logger *zap.Logger

	mu    sync.Mutex
	conn  ssh.Conn
	state State
	root  string
	wd    string
}

// NewManager creates a Manager for cfg. No connection is made until Connect or Conn is called.
func NewManager(cfg ssh.Config, opts ...Option) (*Manager, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		auth:   ssh.NewAuthenticator(cfg),
		dial:   DefaultDialer,
		logger: zap.NewNop(),
		root:   pathutil.NormalizeRoot(cfg.Root),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("host", cfg.Host), zap.String("username", cfg.Username))

	return m, nil
}

// Config returns the configuration with defaults applied.
func (m *Manager) Config() ssh.Config {
	return m.cfg
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Root returns the effective root, with a trailing separator. Before the first
// connect this is the configured root.
func (m *Manager) Root() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Prefix resolves path against the effective root.
func (m *Manager) Prefix(path string) string {
	return pathutil.Prefix(m.Root(), path)
}

// ServerPath returns the absolute server path addressed by path. With no root the
// prefixed path is relative to the login directory and is resolved against it.
func (m *Manager) ServerPath(path string) string {
	m.mu.Lock()
	root, wd := m.root, m.wd
	m.mu.Unlock()

	full := pathutil.Prefix(root, path)
	if strings.HasPrefix(full, pathutil.Separator) {
		return full
	}
	if wd == "" {
		wd = pathutil.Separator
	}
	return pathutil.Prefix(wd, full)
}

// Connect establishes the session if it is not active yet.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Active {
		return nil
	}
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) (err error) {
	m.state = Connecting

	conn := m.cfg.Conn
	if conn == nil {
		conn = m.dial(m.cfg)
	}

	defer func() {
		if err == nil {
			metrics.RecordConnect("ok")
			return
		}
		metrics.RecordConnect(connectResult(err))
		m.state = Disconnected
		conn.Close()
		m.logger.Warn("connect failed", zap.Error(err))
	}()

	if m.cfg.HostFingerprint != "" {
		if err := m.verifyHost(ctx, conn); err != nil {
			return err
		}
	}

	cred, err := m.auth.Resolve()
	if errors.Is(err, ssh.ErrNoCredential) {
		return &ssh.AuthenticationError{Username: m.cfg.Username, Host: m.cfg.Host, Err: err}
	}
	if err != nil {
		return err
	}

	cred, err = m.login(ctx, conn, cred)
	if err != nil {
		return err
	}
	m.state = Authenticated

	if agentCred, ok := cred.(ssh.AgentCredential); ok {
		if fwd, ok := conn.(ssh.AgentForwarder); ok {
			if err := fwd.ForwardAgent(agentCred.Agent); err != nil {
				m.logger.Warn("agent forwarding failed", zap.Error(err))
			}
		}
	}

	if m.cfg.Root != "" {
		if err := conn.Chdir(m.cfg.Root); err != nil {
			return &ssh.InvalidRootError{Root: m.cfg.Root, Err: err}
		}
		wd, err := conn.Getwd()
		if err != nil {
			return &ssh.InvalidRootError{Root: m.cfg.Root, Err: err}
		}
		m.root = pathutil.NormalizeRoot(wd)
		m.wd = wd
		m.state = Rooted
		m.logger.Debug("root applied", zap.String("root", m.root))
	} else if wd, err := conn.Getwd(); err == nil {
		m.wd = wd
	} else {
		m.logger.Warn("login directory unavailable", zap.Error(err))
	}

	m.conn = conn
	m.state = Active
	m.logger.Info("connected", zap.String("credential", cred.Kind()))
	return nil
}

func (m *Manager) verifyHost(ctx context.Context, conn ssh.Conn) error {
	blob, err := conn.ServerHostKey(ctx)
	if err != nil {
		return &ssh.HostUnreachableError{Host: m.cfg.Host, Err: err}
	}

	if err := ssh.VerifyHostKey(blob, m.cfg.HostFingerprint); err != nil {
		var verr *ssh.HostVerificationError
		if errors.As(err, &verr) {
			verr.Host = m.cfg.Host
			return verr
		}
		return &ssh.HostUnreachableError{Host: m.cfg.Host, Err: err}
	}
	return nil
}

// login tries cred and, if the server rejects it, the fallback candidate once.
// It returns the credential that was accepted.
func (m *Manager) login(ctx context.Context, conn ssh.Conn, cred ssh.Credential) (ssh.Credential, error) {
	ok, err := conn.Login(ctx, m.cfg.Username, cred)
	if err != nil {
		return nil, &ssh.HostUnreachableError{Host: m.cfg.Host, Err: err}
	}
	if ok {
		return cred, nil
	}

	fallback, hasFallback := m.auth.Fallback(cred)
	if !hasFallback {
		return nil, &ssh.AuthenticationError{Username: m.cfg.Username, Host: m.cfg.Host}
	}

	m.logger.Info("login rejected, retrying with password", zap.String("credential", cred.Kind()))
	metrics.RecordLoginFallback()

	ok, err = conn.Login(ctx, m.cfg.Username, fallback)
	if err != nil {
		return nil, &ssh.HostUnreachableError{Host: m.cfg.Host, Err: err}
	}
	if !ok {
		return nil, &ssh.AuthenticationError{Username: m.cfg.Username, Host: m.cfg.Host}
	}
	return fallback, nil
}

// IsConnected reports whether the session is usable. With ping mode enabled every
// call probes the server and the answer holds for that call only.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aliveLocked()
}

func (m *Manager) aliveLocked() bool {
	if m.conn == nil || m.state != Active {
		return false
	}
	if m.cfg.UsePingForConnectivityCheck {
		if p, ok := m.conn.(ssh.Pinger); ok {
			return p.Ping() == nil
		}
	}
	return m.conn.IsConnected()
}

// Conn returns the live transport, connecting first if needed. A transport found
// dead is replaced when Reconnect is set; otherwise ConnectionLostError is returned
// and the next call connects again.
func (m *Manager) Conn(ctx context.Context, op string) (ssh.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Active && !m.aliveLocked() {
		m.logger.Warn("connection lost", zap.String("op", op))
		m.teardownLocked()
		if !m.cfg.Reconnect {
			return nil, &ssh.ConnectionLostError{Op: op}
		}
	}

	if m.state != Active {
		if err := m.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return m.conn, nil
}

// CheckLost converts err into a ConnectionLostError when the transport turns out to
// be dead, and tears the session down so the next call reconnects.
func (m *Manager) CheckLost(op string, err error) error {
	if err == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.conn.IsConnected() {
		return err
	}
	m.teardownLocked()
	return &ssh.ConnectionLostError{Op: op, Err: err}
}

// Disconnect closes the session. The agent handle is kept for a later reconnect.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teardownLocked()
}

func (m *Manager) teardownLocked() error {
	m.state = Disconnected
	if m.conn == nil {
		return nil
	}

	err := m.conn.Close()
	m.conn = nil
	m.root = pathutil.NormalizeRoot(m.cfg.Root)
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	m.logger.Debug("disconnected")
	return nil
}

// Close disconnects and releases the agent handle.
func (m *Manager) Close() error {
	err := m.Disconnect()
	if aerr := m.auth.Close(); aerr != nil && err == nil {
		err = aerr
	}
	return err
}

func connectResult(err error) string {
	var (
		hostErr  *ssh.HostUnreachableError
		verifErr *ssh.HostVerificationError
		authErr  *ssh.AuthenticationError
		credErr  *ssh.CredentialError
		rootErr  *ssh.InvalidRootError
	)
	switch {
	case errors.As(err, &verifErr):
		return "host_verification"
	case errors.As(err, &hostErr):
		return "host_unreachable"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &credErr):
		return "credential"
	case errors.As(err, &rootErr):
		return "invalid_root"
	default:
		return "error"
	}
}
