package cmd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"sftp-mcp/internal/ssh"
)

func newFingerprintCmd(a *app) *cobra.Command {
	var port int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "fingerprint HOST",
		Short: "Print the MD5 fingerprint of a server host key",
		Long:  "Fetch the host key without logging in. The output can be pinned with --fingerprint or the hostFingerprint profile option.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := net.JoinHostPort(args[0], strconv.Itoa(port))
			key, err := ssh.ScanHostKey(cmd.Context(), addr, timeout)
			if err != nil {
				return err
			}

			fp, err := ssh.Fingerprint(key.Marshal())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", key.Type(), fp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", ssh.DefaultPort, "SSH port")
	cmd.Flags().DurationVar(&timeout, "timeout", ssh.DefaultTimeout, "connection timeout")
	return cmd
}
