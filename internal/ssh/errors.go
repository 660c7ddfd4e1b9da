package ssh

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed is matched by every OperationError.
	ErrOperationFailed = errors.New("operation failed")

	// ErrNoCredential is returned when neither an agent, a private key nor a password is available.
	ErrNoCredential = errors.New("no password, private key or agent configured")

	// ErrNotConnected is returned by transport calls made before a successful login or after Close.
	ErrNotConnected = errors.New("SFTP client not connected")
)

// ConfigurationError reports a missing or invalid option.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Option, e.Reason)
}

// CredentialError indicates that key material could not be read, parsed or decrypted,
// or that the agent or keyring could not be reached.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential error: %s: %v", e.Reason, e.Err)
	}
	return "credential error: " + e.Reason
}

func (e *CredentialError) Unwrap() error { return e.Err }

// HostUnreachableError is returned when the server could not be reached or did not
// present a host key.
type HostUnreachableError struct {
	Host string
	Err  error
}

func (e *HostUnreachableError) Error() string {
	return fmt.Sprintf("host %s unreachable: %v", e.Host, e.Err)
}

func (e *HostUnreachableError) Unwrap() error { return e.Err }

// HostVerificationError is returned when the server host key fingerprint does not match
// the configured one. This may indicate a MITM attack.
type HostVerificationError struct {
	Host     string
	Expected string
	Actual   string
}

func (e *HostVerificationError) Error() string {
	return fmt.Sprintf("host key fingerprint mismatch for %s: expected %s, got %s", e.Host, e.Expected, e.Actual)
}

// AuthenticationError is returned when the server rejected every credential candidate.
type AuthenticationError struct {
	Username string
	Host     string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("could not login with username: %s, host: %s", e.Username, e.Host)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// InvalidRootError is returned when the configured root cannot be entered.
type InvalidRootError struct {
	Root string
	Err  error
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("root is invalid or does not exist: %s: %v", e.Root, e.Err)
}

func (e *InvalidRootError) Unwrap() error { return e.Err }

// ConnectionLostError is returned when a call finds the transport dead.
type ConnectionLostError struct {
	Op  string
	Err error
}

func (e *ConnectionLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection lost during %s: %v", e.Op, e.Err)
	}
	return "connection lost during " + e.Op
}

func (e *ConnectionLostError) Unwrap() error { return e.Err }

// OperationError reports that a single filesystem primitive failed on the server.
type OperationError struct {
	Op   string
	Path string
	Err  error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, ErrOperationFailed)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Is reports ErrOperationFailed as a match so callers can test for any operation failure.
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}
