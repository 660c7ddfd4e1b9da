package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// errHostKeyCaptured aborts a handshake once the server host key has been seen.
var errHostKeyCaptured = errors.New("host key captured")

// Fingerprint returns the MD5 fingerprint of a server host key as lowercase
// colon-separated hex octets. The key may be given in SSH wire format or in
// authorized_keys text form ("ssh-ed25519 AAAA...").
func Fingerprint(hostKey []byte) (string, error) {
	if len(hostKey) == 0 {
		return "", errors.New("get fingerprint: host key is empty")
	}

	key, err := ssh.ParsePublicKey(hostKey)
	if err != nil {
		parsed, _, _, _, authErr := ssh.ParseAuthorizedKey(hostKey)
		if authErr != nil {
			return "", fmt.Errorf("get fingerprint: parse host key: %w", err)
		}
		key = parsed
	}

	return ssh.FingerprintLegacyMD5(key), nil
}

// VerifyHostKey checks that hostKey matches the expected fingerprint. The comparison
// ignores case and an optional "MD5:" prefix. A mismatch yields *HostVerificationError.
func VerifyHostKey(hostKey []byte, expected string) error {
	actual, err := Fingerprint(hostKey)
	if err != nil {
		return fmt.Errorf("verify host key: %w", err)
	}

	if normalizeFingerprint(actual) != normalizeFingerprint(expected) {
		return &HostVerificationError{
			Expected: expected,
			Actual:   actual,
		}
	}

	return nil
}

func normalizeFingerprint(fp string) string {
	fp = strings.ToLower(strings.TrimSpace(fp))
	return strings.TrimPrefix(fp, "md5:")
}

func looksLikeFingerprint(fp string) bool {
	octets := strings.Split(normalizeFingerprint(fp), ":")
	if len(octets) != 16 {
		return false
	}
	for _, o := range octets {
		if len(o) != 2 || strings.Trim(o, "0123456789abcdef") != "" {
			return false
		}
	}
	return true
}

// ScanHostKey performs a key exchange with addr and returns the host key the server
// presents, without authenticating.
func ScanHostKey(ctx context.Context, addr string, timeout time.Duration) (ssh.PublicKey, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer netConn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	var captured ssh.PublicKey
	clientConfig := &ssh.ClientConfig{
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			captured = key
			return errHostKeyCaptured
		},
		Timeout: timeout,
	}

	_, _, _, err = ssh.NewClientConn(netConn, addr, clientConfig)
	if captured != nil {
		return captured, nil
	}
	if err == nil {
		err = errors.New("server did not present a host key")
	}
	return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
}
