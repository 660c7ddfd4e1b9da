package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

func generateKeyPEM(t *testing.T, passphrase string) ([]byte, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("Failed to convert public key: %v", err)
	}
	return pem.EncodeToMemory(block), sshPub
}

func TestResolvePriority(t *testing.T) {
	keyPEM, _ := generateKeyPEM(t, "")

	tests := []struct {
		name     string
		cfg      Config
		wantKind string
		wantErr  error
	}{
		{
			name:     "agent wins over key and password",
			cfg:      Config{UseAgent: true, Agent: agent.NewKeyring(), PrivateKey: string(keyPEM), Password: "pw"},
			wantKind: KindAgent,
		},
		{
			name:     "pre-built agent without flag",
			cfg:      Config{Agent: agent.NewKeyring()},
			wantKind: KindAgent,
		},
		{
			name:     "key wins over password",
			cfg:      Config{PrivateKey: string(keyPEM), Password: "pw"},
			wantKind: KindKey,
		},
		{
			name:     "password",
			cfg:      Config{Password: "pw"},
			wantKind: KindPassword,
		},
		{
			name:    "nothing configured",
			cfg:     Config{Username: "alice"},
			wantErr: ErrNoCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewAuthenticator(tt.cfg)
			defer auth.Close()

			cred, err := auth.Resolve()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if cred.Kind() != tt.wantKind {
				t.Errorf("Expected credential kind %s, got %s", tt.wantKind, cred.Kind())
			}
			if len(AuthMethods(cred)) == 0 {
				t.Error("Credential produced no auth methods")
			}
		})
	}
}

func TestResolveKeyFromFile(t *testing.T) {
	keyPEM, pub := generateKeyPEM(t, "")
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}

	cred, err := NewAuthenticator(Config{PrivateKey: keyPath}).Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	key, ok := cred.(PrivateKey)
	if !ok {
		t.Fatalf("Expected PrivateKey credential, got %T", cred)
	}
	if ssh.FingerprintSHA256(key.Signer.PublicKey()) != ssh.FingerprintSHA256(pub) {
		t.Error("Loaded key does not match the generated one")
	}
}

func TestResolveEncryptedKey(t *testing.T) {
	keyPEM, _ := generateKeyPEM(t, "secret")

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"passphrase", Config{PrivateKey: string(keyPEM), Passphrase: "secret"}, false},
		{"password used as passphrase", Config{PrivateKey: string(keyPEM), Password: "secret"}, false},
		{"passphrase preferred over password", Config{PrivateKey: string(keyPEM), Passphrase: "secret", Password: "other"}, false},
		{"wrong passphrase", Config{PrivateKey: string(keyPEM), Passphrase: "wrong"}, true},
		{"no passphrase", Config{PrivateKey: string(keyPEM)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewAuthenticator(tt.cfg).Resolve()
			if tt.wantErr {
				var credErr *CredentialError
				if !errors.As(err, &credErr) {
					t.Fatalf("Expected CredentialError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if cred.Kind() != KindKey {
				t.Errorf("Expected key credential, got %s", cred.Kind())
			}
		})
	}
}

func TestResolveMalformedKey(t *testing.T) {
	_, err := NewAuthenticator(Config{PrivateKey: "not a key"}).Resolve()

	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("Expected CredentialError, got %v", err)
	}
}

func TestResolvePasswordFromKeyring(t *testing.T) {
	keyring.MockInit()
	if err := keyring.Set("sftp-mcp-test", "alice", "from-keyring"); err != nil {
		t.Fatalf("Failed to seed keyring: %v", err)
	}

	cred, err := NewAuthenticator(Config{Username: "alice", KeyringService: "sftp-mcp-test"}).Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cred != Password("from-keyring") {
		t.Errorf("Expected password from keyring, got %#v", cred)
	}

	_, err = NewAuthenticator(Config{Username: "bob", KeyringService: "sftp-mcp-test"}).Resolve()
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("Expected ErrNoCredential for missing keyring entry, got %v", err)
	}
}

func TestFallback(t *testing.T) {
	keyPEM, _ := generateKeyPEM(t, "")

	tests := []struct {
		name    string
		cfg     Config
		primary Credential
		want    bool
	}{
		{"key falls back to password", Config{PasswordFallback: true, Password: "pw"}, PrivateKey{}, true},
		{"agent falls back to password", Config{PasswordFallback: true, Password: "pw"}, AgentCredential{}, true},
		{"disabled", Config{Password: "pw", PrivateKey: string(keyPEM)}, PrivateKey{}, false},
		{"primary already password", Config{PasswordFallback: true, Password: "pw"}, Password("pw"), false},
		{"no password", Config{PasswordFallback: true}, PrivateKey{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, ok := NewAuthenticator(tt.cfg).Fallback(tt.primary)
			if ok != tt.want {
				t.Fatalf("Expected fallback %v, got %v", tt.want, ok)
			}
			if ok && cred != Password("pw") {
				t.Errorf("Expected password fallback, got %#v", cred)
			}
		})
	}
}

func TestResolveAgentFromSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "agent.sock")
	listener, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("Unix sockets unavailable: %v", err)
	}
	defer listener.Close()

	keys := agent.NewKeyring()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go agent.ServeAgent(keys, conn)
		}
	}()

	auth := NewAuthenticator(Config{UseAgent: true, AgentSocket: sock})
	defer auth.Close()

	first, err := auth.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := auth.Resolve()
	if err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}

	if first.(AgentCredential).Agent != second.(AgentCredential).Agent {
		t.Error("Agent handle should be created once and reused")
	}
	if auth.Agent() == nil {
		t.Error("Agent() should expose the cached handle")
	}

	if err := auth.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if auth.Agent() != nil {
		t.Error("Close should release the agent handle")
	}
}

func TestResolveAgentWithoutSocket(t *testing.T) {
	_, err := NewAuthenticator(Config{UseAgent: true}).Resolve()

	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("Expected CredentialError, got %v", err)
	}
}
