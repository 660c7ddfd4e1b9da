package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Credential kinds.
const (
	KindPassword = "password"
	KindKey      = "key"
	KindAgent    = "agent"
)

// Credential is one way of proving identity to the server. The concrete
// variants are Password, PrivateKey and AgentCredential.
type Credential interface {
	Kind() string
	authMethods() []ssh.AuthMethod
}

// Password authenticates with a plain password.
type Password string

func (Password) Kind() string { return KindPassword }

func (p Password) authMethods() []ssh.AuthMethod {
	pw := string(p)
	return []ssh.AuthMethod{
		ssh.Password(pw),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = pw
			}
			return answers, nil
		}),
	}
}

// PrivateKey authenticates with a parsed private key.
type PrivateKey struct {
	Signer ssh.Signer
}

func (PrivateKey) Kind() string { return KindKey }

func (k PrivateKey) authMethods() []ssh.AuthMethod {
	return []ssh.AuthMethod{ssh.PublicKeys(k.Signer)}
}

// AgentCredential authenticates with the keys held by an SSH agent.
type AgentCredential struct {
	Agent agent.Agent
}

func (AgentCredential) Kind() string { return KindAgent }

func (a AgentCredential) authMethods() []ssh.AuthMethod {
	return []ssh.AuthMethod{ssh.PublicKeysCallback(a.Agent.Signers)}
}

// AuthMethods converts a credential into the methods handed to the SSH handshake.
func AuthMethods(cred Credential) []ssh.AuthMethod {
	if cred == nil {
		return nil
	}
	return cred.authMethods()
}

// Authenticator picks the credential for a connection: agent first, then private
// key, then password. The agent handle is created once and reused.
type Authenticator struct {
	cfg Config

	mu        sync.Mutex
	agent     agent.Agent
	agentConn net.Conn
}

// NewAuthenticator creates an Authenticator for the given configuration.
func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Resolve returns the highest-priority credential available.
func (a *Authenticator) Resolve() (Credential, error) {
	if a.cfg.Agent != nil || a.cfg.UseAgent {
		ag, err := a.getAgent()
		if err != nil {
			return nil, err
		}
		return AgentCredential{Agent: ag}, nil
	}

	if a.cfg.PrivateKey != "" {
		signer, err := a.loadPrivateKey()
		if err != nil {
			return nil, err
		}
		return PrivateKey{Signer: signer}, nil
	}

	pw, err := a.password()
	if err != nil {
		return nil, err
	}
	if pw != "" {
		return Password(pw), nil
	}

	return nil, ErrNoCredential
}

// Fallback returns the password credential to retry with after primary was rejected.
// It reports false when password fallback is disabled, primary already was a password,
// or no password is available.
func (a *Authenticator) Fallback(primary Credential) (Credential, bool) {
	if !a.cfg.PasswordFallback || primary == nil || primary.Kind() == KindPassword {
		return nil, false
	}
	pw, err := a.password()
	if err != nil || pw == "" {
		return nil, false
	}
	return Password(pw), true
}

// Agent returns the agent handle if one has been resolved.
func (a *Authenticator) Agent() agent.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agent
}

// Close releases the agent socket, if any.
func (a *Authenticator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.agent = nil
	if a.agentConn == nil {
		return nil
	}
	err := a.agentConn.Close()
	a.agentConn = nil
	return err
}

func (a *Authenticator) getAgent() (agent.Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.agent != nil {
		return a.agent, nil
	}
	if a.cfg.Agent != nil {
		a.agent = a.cfg.Agent
		return a.agent, nil
	}
	if a.cfg.AgentSocket == "" {
		return nil, &CredentialError{Reason: "SSH agent requested but SSH_AUTH_SOCK is not set"}
	}

	conn, err := net.Dial("unix", a.cfg.AgentSocket)
	if err != nil {
		return nil, &CredentialError{Reason: "connect to SSH agent", Err: err}
	}
	a.agentConn = conn
	a.agent = agent.NewClient(conn)
	return a.agent, nil
}

func (a *Authenticator) loadPrivateKey() (ssh.Signer, error) {
	data, err := readKeyMaterial(a.cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, &CredentialError{Reason: "parse private key", Err: err}
	}

	passphrase := a.cfg.Passphrase
	if passphrase == "" {
		passphrase = a.cfg.Password
	}
	if passphrase == "" {
		return nil, &CredentialError{Reason: "private key is encrypted and no passphrase was given"}
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, &CredentialError{Reason: "decrypt private key", Err: err}
	}
	return signer, nil
}

func (a *Authenticator) password() (string, error) {
	if a.cfg.Password != "" {
		return a.cfg.Password, nil
	}
	if a.cfg.KeyringService == "" {
		return "", nil
	}

	pw, err := keyring.Get(a.cfg.KeyringService, a.cfg.Username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &CredentialError{Reason: fmt.Sprintf("read password from keyring %q", a.cfg.KeyringService), Err: err}
	}
	return pw, nil
}

// readKeyMaterial returns the key text itself, or the contents of the file it names.
func readKeyMaterial(key string) ([]byte, error) {
	if strings.Contains(key, "PRIVATE KEY-----") {
		return []byte(key), nil
	}

	path := key
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, &CredentialError{Reason: "resolve home directory", Err: err}
		}
		path = filepath.Join(home, path[2:])
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// Not a readable file, let the parser judge the literal.
		return []byte(key), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CredentialError{Reason: "read private key file", Err: err}
	}
	return data, nil
}
