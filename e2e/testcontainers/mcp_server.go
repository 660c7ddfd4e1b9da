package testcontainers

import (
	"context"
	"net/http/httptest"

	"sftp-mcp/internal/server"
	"sftp-mcp/internal/session"
)

// MCPServer is an sftp-mcp HTTP server on a loopback port
type MCPServer struct {
	URL      string
	Registry *session.Registry

	httpServer *httptest.Server
	cancel     context.CancelFunc
}

// StartMCPServer starts the HTTP transport with the given configuration
func StartMCPServer(ctx context.Context, config server.Config) (*MCPServer, error) {
	ctx, cancel := context.WithCancel(ctx)

	mcpServer, registry, err := server.SetupServer(ctx, config)
	if err != nil {
		cancel()
		return nil, err
	}

	httpServer := httptest.NewServer(server.NewRouter(mcpServer))
	return &MCPServer{
		URL:        httpServer.URL + "/mcp",
		Registry:   registry,
		httpServer: httpServer,
		cancel:     cancel,
	}, nil
}

// Stop closes all sessions and the HTTP server
func (s *MCPServer) Stop() {
	s.Registry.CloseAll()
	s.httpServer.Close()
	s.cancel()
}
