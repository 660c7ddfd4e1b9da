package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"sftp-mcp/internal/file"
	"sftp-mcp/internal/logging"
	"sftp-mcp/internal/session"
	"sftp-mcp/internal/ssh"
)

// connectionFlags are the connection options shared by the client commands.
type connectionFlags struct {
	args ssh.ConnectArgs
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.args.Profile, "profile", "", "connection profile to start from")
	fs.StringVar(&f.args.Host, "host", "", "SFTP server host")
	fs.IntVarP(&f.args.Port, "port", "p", 0, "SFTP server port (default 22)")
	fs.StringVarP(&f.args.Username, "user", "u", "", "SSH username")
	fs.StringVar(&f.args.Password, "password", "", "SSH password")
	fs.StringVarP(&f.args.PrivateKey, "key", "i", "", "private key file")
	fs.StringVar(&f.args.Passphrase, "passphrase", "", "private key passphrase")
	fs.BoolVar(&f.args.UseAgent, "agent", false, "authenticate with the SSH agent")
	fs.BoolVar(&f.args.PasswordFallback, "password-fallback", false, "retry a rejected key login with the password")
	fs.StringVar(&f.args.Root, "root", "", "directory paths are resolved against")
	fs.StringVar(&f.args.HostFingerprint, "fingerprint", "", "expected MD5 host key fingerprint")
	fs.IntVar(&f.args.Timeout, "timeout", 0, "connection timeout in seconds (default 10)")
}

// open connects and returns the file operations of the new session. The
// returned func closes the session.
func (f *connectionFlags) open(ctx context.Context, a *app) (*file.Operations, func(), error) {
	base := ssh.Config{}
	if f.args.Profile != "" {
		profile, err := a.profiles.Get(f.args.Profile)
		if err != nil {
			return nil, nil, err
		}
		base = profile
	}

	cfg, err := f.args.Apply(base)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.L()
	manager, err := session.NewManager(cfg, session.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := manager.Connect(ctx); err != nil {
		manager.Close()
		return nil, nil, err
	}

	return file.NewOperations(manager, logger), func() { manager.Close() }, nil
}
