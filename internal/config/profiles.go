package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"sftp-mcp/internal/ssh"
)

// profile is the YAML form of a connection. Modes are octal strings and the
// timeout a Go duration so the file reads the way an operator writes it.
type profile struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	PrivateKey       string `yaml:"privateKey"`
	Passphrase       string `yaml:"passphrase"`
	UseAgent         bool   `yaml:"useAgent"`
	AgentSocket      string `yaml:"agentSocket"`
	PasswordFallback bool   `yaml:"passwordFallback"`
	KeyringService   string `yaml:"keyringService"`
	Timeout          string `yaml:"timeout"`
	Root             string `yaml:"root"`

	PermPublic        string `yaml:"permPublic"`
	PermPrivate       string `yaml:"permPrivate"`
	ListingPublicMask string `yaml:"listingPublicMask"`
	DirectoryPerm     string `yaml:"directoryPerm"`

	HostFingerprint             string `yaml:"hostFingerprint"`
	UsePingForConnectivityCheck bool   `yaml:"usePingForConnectivityCheck"`
	Reconnect                   bool   `yaml:"reconnect"`
}

type profilesFile struct {
	Profiles map[string]profile `yaml:"profiles"`
}

// Profiles maps profile names to connection configs.
type Profiles map[string]ssh.Config

// LoadProfiles reads a YAML profiles file. An empty path yields no profiles.
//
//	profiles:
//	  backups:
//	    host: files.example.com
//	    username: backup
//	    privateKey: ~/.ssh/id_ed25519
//	    root: /srv/backups
//	    permPublic: "0644"
func LoadProfiles(path string) (Profiles, error) {
	if path == "" {
		return Profiles{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes the YAML profiles document.
func ParseProfiles(data []byte) (Profiles, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	profiles := make(Profiles, len(file.Profiles))
	for name, p := range file.Profiles {
		cfg, err := p.config()
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		profiles[name] = cfg
	}
	return profiles, nil
}

func (p profile) config() (ssh.Config, error) {
	cfg := ssh.Config{
		Host:                        p.Host,
		Port:                        p.Port,
		Username:                    p.Username,
		Password:                    p.Password,
		PrivateKey:                  p.PrivateKey,
		Passphrase:                  p.Passphrase,
		UseAgent:                    p.UseAgent,
		AgentSocket:                 p.AgentSocket,
		PasswordFallback:            p.PasswordFallback,
		KeyringService:              p.KeyringService,
		Root:                        p.Root,
		HostFingerprint:             p.HostFingerprint,
		UsePingForConnectivityCheck: p.UsePingForConnectivityCheck,
		Reconnect:                   p.Reconnect,
	}

	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return ssh.Config{}, &ssh.ConfigurationError{Option: "timeout", Reason: err.Error()}
		}
		cfg.Timeout = d
	}

	modes := []struct {
		option string
		value  string
		target *os.FileMode
	}{
		{"permPublic", p.PermPublic, &cfg.PermPublic},
		{"permPrivate", p.PermPrivate, &cfg.PermPrivate},
		{"listingPublicMask", p.ListingPublicMask, &cfg.ListingPublicMask},
		{"directoryPerm", p.DirectoryPerm, &cfg.DirectoryPerm},
	}
	for _, m := range modes {
		if m.value == "" {
			continue
		}
		mode, err := ssh.ParseMode(m.value)
		if err != nil {
			return ssh.Config{}, &ssh.ConfigurationError{Option: m.option, Reason: err.Error()}
		}
		*m.target = mode
	}

	return cfg, nil
}

// Get returns the named profile.
func (p Profiles) Get(name string) (ssh.Config, error) {
	cfg, ok := p[name]
	if !ok {
		return ssh.Config{}, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}

// Names returns the profile names in order.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
