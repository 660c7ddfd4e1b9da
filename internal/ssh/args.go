package ssh

import (
	"os"
	"strconv"
	"time"
)

// ConnectArgs defines the arguments for opening an SFTP session
type ConnectArgs struct {
	Profile          string `json:"profile" jsonschema:"description=Name of a connection profile to start from"`
	Host             string `json:"host" jsonschema:"description=The SFTP server hostname or IP address"`
	Port             int    `json:"port" jsonschema:"description=The SFTP server port,default=22"`
	Username         string `json:"username" jsonschema:"description=The SSH username"`
	Password         string `json:"password" jsonschema:"description=The SSH password, also used as key passphrase when none is given"`
	PrivateKey       string `json:"privateKey" jsonschema:"description=Private key text or path to the private key file"`
	Passphrase       string `json:"passphrase" jsonschema:"description=Passphrase of the private key"`
	UseAgent         bool   `json:"useAgent" jsonschema:"description=Authenticate with the local SSH agent"`
	PasswordFallback bool   `json:"passwordFallback" jsonschema:"description=Retry a rejected key or agent login once with the password"`
	Root             string `json:"root" jsonschema:"description=Directory all paths are resolved against"`
	HostFingerprint  string `json:"hostFingerprint" jsonschema:"description=Expected MD5 fingerprint of the server host key"`
	Timeout          int    `json:"timeout" jsonschema:"description=Connection timeout in seconds,default=10"`
	PermPublic       string `json:"permPublic" jsonschema:"description=Octal mode applied for public visibility,default=0744"`
	PermPrivate      string `json:"permPrivate" jsonschema:"description=Octal mode applied for private visibility,default=0700"`
	DirectoryPerm    string `json:"directoryPerm" jsonschema:"description=Octal mode for created directories,default=0744"`
	UsePing          bool   `json:"usePingForConnectivityCheck" jsonschema:"description=Probe the server on every liveness check"`
	Reconnect        bool   `json:"reconnect" jsonschema:"description=Reconnect transparently when the connection dropped"`
}

// Apply overlays the arguments that were given onto base.
func (a ConnectArgs) Apply(base Config) (Config, error) {
	cfg := base
	if a.Host != "" {
		cfg.Host = a.Host
	}
	if a.Port != 0 {
		cfg.Port = a.Port
	}
	if a.Username != "" {
		cfg.Username = a.Username
	}
	if a.Password != "" {
		cfg.Password = a.Password
	}
	if a.PrivateKey != "" {
		cfg.PrivateKey = a.PrivateKey
	}
	if a.Passphrase != "" {
		cfg.Passphrase = a.Passphrase
	}
	if a.Root != "" {
		cfg.Root = a.Root
	}
	if a.HostFingerprint != "" {
		cfg.HostFingerprint = a.HostFingerprint
	}
	if a.Timeout > 0 {
		cfg.Timeout = time.Duration(a.Timeout) * time.Second
	}
	cfg.UseAgent = cfg.UseAgent || a.UseAgent
	cfg.PasswordFallback = cfg.PasswordFallback || a.PasswordFallback
	cfg.UsePingForConnectivityCheck = cfg.UsePingForConnectivityCheck || a.UsePing
	cfg.Reconnect = cfg.Reconnect || a.Reconnect

	modes := []struct {
		option string
		value  string
		target *os.FileMode
	}{
		{"permPublic", a.PermPublic, &cfg.PermPublic},
		{"permPrivate", a.PermPrivate, &cfg.PermPrivate},
		{"directoryPerm", a.DirectoryPerm, &cfg.DirectoryPerm},
	}
	for _, m := range modes {
		if m.value == "" {
			continue
		}
		mode, err := ParseMode(m.value)
		if err != nil {
			return Config{}, &ConfigurationError{Option: m.option, Reason: err.Error()}
		}
		*m.target = mode
	}

	return cfg, nil
}

// ParseMode parses an octal permission string such as "0755" or "755".
func ParseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return os.FileMode(v).Perm(), nil
}

// DisconnectArgs defines the arguments for closing an SFTP session
type DisconnectArgs struct {
	SessionID string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
}

// PathArgs defines the arguments of tools operating on a single remote path
type PathArgs struct {
	SessionID string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
	Path      string `json:"path" jsonschema:"description=Remote path relative to the session root,required"`
}

// ListArgs defines the arguments for listing directory contents
type ListArgs struct {
	SessionID string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
	Path      string `json:"path" jsonschema:"description=Directory path to list"`
	Recursive bool   `json:"recursive" jsonschema:"description=Descend into subdirectories"`
}

// WriteArgs defines the arguments for writing a remote file
type WriteArgs struct {
	SessionID  string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
	Path       string `json:"path" jsonschema:"description=Remote file path,required"`
	Contents   string `json:"contents" jsonschema:"description=File contents,required"`
	Visibility string `json:"visibility" jsonschema:"description=public or private,enum=public,enum=private"`
}

// RenameArgs defines the arguments for moving a remote file
type RenameArgs struct {
	SessionID string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
	Path      string `json:"path" jsonschema:"description=Current path,required"`
	NewPath   string `json:"newPath" jsonschema:"description=New path,required"`
}

// VisibilityArgs defines the arguments for changing the visibility of a remote path
type VisibilityArgs struct {
	SessionID  string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
	Path       string `json:"path" jsonschema:"description=Remote path,required"`
	Visibility string `json:"visibility" jsonschema:"description=public or private,required,enum=public,enum=private"`
}

// TransferArgs defines the arguments for copying a file between the local machine and the server
type TransferArgs struct {
	SessionID   string `json:"sessionId" jsonschema:"description=The SFTP session identifier,required"`
	Source      string `json:"source" jsonschema:"description=Source file path,required"`
	Destination string `json:"destination" jsonschema:"description=Destination file path,required"`
}
