package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"sftp-mcp/internal/config"
	"sftp-mcp/internal/logging"
	"sftp-mcp/internal/metrics"
	"sftp-mcp/internal/security"
	"sftp-mcp/internal/session"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Config holds configuration for the MCP server
type Config struct {
	Settings config.Settings
	Profiles config.Profiles
	Logger   *zap.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Settings: config.Settings{
			Port:            8081,
			Transport:       "http",
			SessionExpiry:   30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Profiles: config.Profiles{},
	}
}

// SetupServer creates and configures an MCP server with SFTP tools. The
// cleanup routines stop when ctx is done.
func SetupServer(ctx context.Context, cfg Config) (*server.MCPServer, *session.Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := cfg.Settings

	// Initialize components
	registry := session.NewRegistry(settings.SessionExpiry, logger.Named("session"))
	registry.StartCleanupRoutine(ctx, settings.CleanupInterval)

	securityManager := security.NewManager(security.Config{
		AllowedHosts: settings.AllowedHosts,
		DeniedHosts:  settings.DeniedHosts,
		AllowedPaths: settings.AllowedPaths,
		DeniedPaths:  settings.DeniedPaths,
		ReadOnly:     settings.ReadOnly,
		RateLimit:    settings.RateLimit,
	}, logger.Named("security"))
	securityManager.StartCleanupRoutine(ctx, settings.CleanupInterval, settings.SessionExpiry)

	// Create hooks for logging
	hooks := &server.Hooks{}
	hooks.AddBeforeAny(func(ctx context.Context, id any, method mcp.MCPMethod, message any) {
		logger.Debug("request", zap.String("method", string(method)), zap.Any("id", id))
	})
	hooks.AddOnSuccess(func(ctx context.Context, id any, method mcp.MCPMethod, message any, result any) {
		logger.Debug("success", zap.String("method", string(method)), zap.Any("id", id))
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Warn("error", zap.String("method", string(method)), zap.Any("id", id), zap.Error(err))
	})

	// Create a new server
	mcpServer := server.NewMCPServer(
		"sftp-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithHooks(hooks),
		server.WithInstructions("SFTP filesystem access. Open a session with sftp_connect and pass its sessionId to the other tools. Paths are relative to the session root."),
	)

	// Register all tools
	tools := GetTools(registry, securityManager, cfg.Profiles, logger.Named("tools"))
	for _, tool := range tools {
		handler := tool.Handler
		mcpServer.AddTool(mcp.NewTool(tool.Name, tool.Opts...), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handler(ctx, request.GetArguments())
		})
	}

	return mcpServer, registry, nil
}

// NewRouter mounts the streamable HTTP transport on /mcp and the Prometheus
// handler on /metrics.
func NewRouter(mcpServer *server.MCPServer) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)

	r.Handle("/mcp", server.NewStreamableHTTPServer(mcpServer))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// StartHTTPServer serves the MCP server over HTTP until ctx is done
func StartHTTPServer(ctx context.Context, mcpServer *server.MCPServer, port int) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(mcpServer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.L().Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("endpoint", "/mcp"))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartStdioServer starts the MCP server with stdio transport
func StartStdioServer(mcpServer *server.MCPServer) error {
	logging.L().Info("Starting stdio server")
	return server.ServeStdio(mcpServer)
}
