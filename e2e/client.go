package e2e

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient is a client for the SFTP MCP tools
type MCPClient struct {
	baseURL string
	client  *client.Client
}

// NewMCPClient creates and initializes a client of the streamable HTTP endpoint
func NewMCPClient(ctx context.Context, baseURL string) (*MCPClient, error) {
	// Create an HTTP transport that connects to the server
	httpTransport, err := transport.NewStreamableHTTP(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
	}

	c := client.NewClient(httpTransport)
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start client: %w", err)
	}

	// Initialize the client
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "SFTP-MCP Client",
		Version: "1.0.0",
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := c.Initialize(ctx, initRequest); err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	return &MCPClient{
		baseURL: baseURL,
		client:  c,
	}, nil
}

// Close closes the client transport
func (c *MCPClient) Close() error {
	return c.client.Close()
}

// Call invokes a tool and returns its text. A tool error result is returned as error.
func (c *MCPClient) Call(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args

	response, err := c.client.CallTool(ctx, request)
	if err != nil {
		return "", err
	}

	text := ""
	if len(response.Content) > 0 {
		if content, ok := response.Content[0].(mcp.TextContent); ok {
			text = content.Text
		}
	}
	if response.IsError {
		return "", fmt.Errorf("%s: %s", name, text)
	}
	return text, nil
}

// Connect opens a session and returns its ID
func (c *MCPClient) Connect(ctx context.Context, args map[string]interface{}) (string, error) {
	text, err := c.Call(ctx, "sftp_connect", args)
	if err != nil {
		return "", err
	}

	// The response format is "Connected. Session ID: <session-id>\nRoot: <root>"
	line := strings.SplitN(text, "\n", 2)[0]
	parts := strings.Split(line, "Session ID: ")
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("failed to get session ID from response %q", text)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Fingerprint returns the host key fingerprint reported by sftp_host_fingerprint
func (c *MCPClient) Fingerprint(ctx context.Context, host string, port int) (string, error) {
	text, err := c.Call(ctx, "sftp_host_fingerprint", map[string]interface{}{
		"host": host,
		"port": port,
	})
	if err != nil {
		return "", err
	}

	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", fmt.Errorf("unexpected fingerprint response %q", text)
	}
	return fields[1], nil
}

// Disconnect closes a session
func (c *MCPClient) Disconnect(ctx context.Context, sessionID string) error {
	_, err := c.Call(ctx, "sftp_disconnect", map[string]interface{}{"sessionId": sessionID})
	return err
}
