package ssh

import (
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh/agent"
)

const (
	DefaultPort              = 22
	DefaultTimeout           = 10 * time.Second
	DefaultPermPublic        = os.FileMode(0744)
	DefaultPermPrivate       = os.FileMode(0700)
	DefaultDirectoryPerm     = os.FileMode(0744)
	DefaultListingPublicMask = os.FileMode(0044)
)

// Config describes one SFTP connection. A Manager copies it at construction and
// never modifies it afterwards.
type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password"`

	// PrivateKey holds either the key text or a path to a key file.
	PrivateKey string `json:"privateKey,omitempty" yaml:"privateKey"`
	// Passphrase decrypts PrivateKey. When empty the password is tried instead.
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase"`

	UseAgent    bool        `json:"useAgent,omitempty" yaml:"useAgent"`
	AgentSocket string      `json:"agentSocket,omitempty" yaml:"agentSocket"`
	Agent       agent.Agent `json:"-" yaml:"-"`

	// PasswordFallback retries a rejected key or agent login once with the password.
	PasswordFallback bool `json:"passwordFallback,omitempty" yaml:"passwordFallback"`
	// KeyringService names the OS keyring entry holding the password when Password is empty.
	KeyringService string `json:"keyringService,omitempty" yaml:"keyringService"`

	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
	Root    string        `json:"root,omitempty" yaml:"root"`

	PermPublic        os.FileMode `json:"permPublic,omitempty" yaml:"permPublic"`
	PermPrivate       os.FileMode `json:"permPrivate,omitempty" yaml:"permPrivate"`
	ListingPublicMask os.FileMode `json:"listingPublicMask,omitempty" yaml:"listingPublicMask"`
	DirectoryPerm     os.FileMode `json:"directoryPerm,omitempty" yaml:"directoryPerm"`

	HostFingerprint             string `json:"hostFingerprint,omitempty" yaml:"hostFingerprint"`
	UsePingForConnectivityCheck bool   `json:"usePingForConnectivityCheck,omitempty" yaml:"usePingForConnectivityCheck"`
	Reconnect                   bool   `json:"reconnect,omitempty" yaml:"reconnect"`

	// Conn replaces transport construction entirely. Used by tests and pools.
	Conn Conn `json:"-" yaml:"-"`
}

// WithDefaults returns a copy of c with unset options filled in.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PermPublic == 0 {
		c.PermPublic = DefaultPermPublic
	}
	if c.PermPrivate == 0 {
		c.PermPrivate = DefaultPermPrivate
	}
	if c.DirectoryPerm == 0 {
		c.DirectoryPerm = DefaultDirectoryPerm
	}
	if c.ListingPublicMask == 0 {
		c.ListingPublicMask = DefaultListingPublicMask
	}
	if c.UseAgent && c.AgentSocket == "" {
		c.AgentSocket = os.Getenv("SSH_AUTH_SOCK")
	}
	return c
}

// Validate checks the options a connection cannot do without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" && c.Conn == nil {
		return &ConfigurationError{Option: "host", Reason: "required"}
	}
	if strings.TrimSpace(c.Username) == "" {
		return &ConfigurationError{Option: "username", Reason: "required"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &ConfigurationError{Option: "port", Reason: "must be between 1 and 65535"}
	}
	if c.HostFingerprint != "" && !looksLikeFingerprint(c.HostFingerprint) {
		return &ConfigurationError{Option: "hostFingerprint", Reason: "expected colon-separated hex octets"}
	}
	return nil
}
