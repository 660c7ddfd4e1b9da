package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings are the server settings, read from SFTP_MCP_* environment variables.
type Settings struct {
	Port            int           `envconfig:"PORT" default:"8081"`
	Transport       string        `envconfig:"TRANSPORT" default:"http"`
	SessionExpiry   time.Duration `envconfig:"SESSION_EXPIRY" default:"30m"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogOutput string `envconfig:"LOG_OUTPUT" default:""`

	// Connection profiles file, see LoadProfiles
	ProfilesPath string `envconfig:"PROFILES_PATH" default:""`

	// Access policy
	AllowedHosts []string      `envconfig:"ALLOWED_HOSTS" default:""`
	DeniedHosts  []string      `envconfig:"DENIED_HOSTS" default:""`
	AllowedPaths []string      `envconfig:"ALLOWED_PATHS" default:""`
	DeniedPaths  []string      `envconfig:"DENIED_PATHS" default:""`
	ReadOnly     bool          `envconfig:"READ_ONLY" default:"false"`
	RateLimit    time.Duration `envconfig:"RATE_LIMIT" default:"0s"`
}

// Load reads the settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("SFTP_MCP", &s); err != nil {
		return Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	if s.Transport != "http" && s.Transport != "stdio" {
		return Settings{}, fmt.Errorf("invalid transport %q: expected http or stdio", s.Transport)
	}
	return s, nil
}
