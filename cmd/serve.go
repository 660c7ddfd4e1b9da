package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sftp-mcp/internal/logging"
	"sftp-mcp/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var stdio bool
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over HTTP or stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.settings
			if stdio {
				settings.Transport = "stdio"
			}
			if cmd.Flags().Changed("port") {
				settings.Port = port
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.L()
			mcpServer, registry, err := server.SetupServer(ctx, server.Config{
				Settings: settings,
				Profiles: a.profiles,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer registry.CloseAll()

			logger.Info("starting sftp-mcp",
				zap.String("version", server.Version),
				zap.String("transport", settings.Transport),
				zap.Strings("profiles", a.profiles.Names()),
			)

			if settings.Transport == "stdio" {
				return server.StartStdioServer(mcpServer)
			}
			return server.StartHTTPServer(ctx, mcpServer, settings.Port)
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve over stdin/stdout instead of HTTP")
	cmd.Flags().IntVar(&port, "port", 8081, "HTTP port, overrides SFTP_MCP_PORT")
	return cmd
}
