package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/tools"
)

// ServerClient wraps an MCP SDK client and session for a single MCP
// server connection. It handles connection lifecycle, tool discovery,
// and tool execution.
type ServerClient struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession

	mu            sync.Mutex
	cachedTools   []api.Tool
	toolsResolved bool
}

// NewServerClient creates a ServerClient for the given server
// configuration. Call Connect to establish the connection.
func NewServerClient(cfg ServerConfig) *ServerClient {
	return &ServerClient{cfg: cfg}
}

// Connect establishes the MCP connection to the server, performing the
// protocol handshake.
func (c *ServerClient) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport establishes the MCP connection using the given
// transport. If transport is nil, a transport is created from the
// server configuration.
func (c *ServerClient) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{
			Name:    "empfang",
			Version: "1.0.0",
		},
		&mcp.ClientOptions{
			Capabilities: &mcp.ClientCapabilities{},
		},
	)

	if transport == nil {
		t, err := c.createTransport()
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	return nil
}

// createTransport creates an MCP transport based on the server configuration.
func (c *ServerClient) createTransport() (mcp.Transport, error) {
	httpClient := c.buildHTTPClient()

	switch c.cfg.Transport {
	case "sse":
		transport := &mcp.SSEClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	case "streamable-http", "":
		transport := &mcp.StreamableClientTransport{
			Endpoint: c.cfg.URL,
		}
		if httpClient != nil {
			transport.HTTPClient = httpClient
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns an HTTP client that applies the configured
// static headers and auth provider. Returns nil if neither is configured.
func (c *ServerClient) buildHTTPClient() *http.Client {
	var authProvider AuthProvider

	switch c.cfg.Auth.Type {
	case "oauth_client_credentials":
		authProvider = NewOAuthClientCredentials(
			c.cfg.Auth.TokenURL,
			c.cfg.Auth.ClientID,
			c.cfg.Auth.ClientSecret,
			c.cfg.Auth.Scopes,
		)
	}

	if len(c.cfg.Headers) == 0 && authProvider == nil {
		return nil
	}

	return &http.Client{
		Transport: &authAwareTransport{
			base:         http.DefaultTransport,
			headers:      c.cfg.Headers,
			authProvider: authProvider,
		},
	}
}

// authAwareTransport is an http.RoundTripper that adds static headers and
// dynamically obtained auth headers to every request.
type authAwareTransport struct {
	base         http.RoundTripper
	headers      map[string]string
	authProvider AuthProvider
}

func (t *authAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	// Auth provider headers may override static ones, e.g. Authorization.
	if t.authProvider != nil {
		authHeaders, err := t.authProvider.GetHeaders(req.Context())
		if err != nil {
			return nil, fmt.Errorf("getting auth headers: %w", err)
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	}

	return t.base.RoundTrip(req)
}

// DiscoverTools queries the MCP server for available tools, converts
// them to function tool definitions, and caches the results. Subsequent
// calls return the cached tools.
func (c *ServerClient) DiscoverTools(ctx context.Context) ([]api.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.toolsResolved {
		return c.cachedTools, nil
	}

	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var defs []api.Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		def, convErr := convertTool(tool)
		if convErr != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, convErr)
		}
		defs = append(defs, def)
	}

	c.cachedTools = defs
	c.toolsResolved = true
	return defs, nil
}

// CallTool executes a tool call on the MCP server and returns the result.
func (c *ServerClient) CallTool(ctx context.Context, call tools.Call) (*tools.Result, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	// Parse the arguments from JSON string to a generic map.
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return &tools.Result{
				CallID:  call.ID,
				Output:  fmt.Sprintf("invalid arguments JSON: %v", err),
				IsError: true,
			}, nil
		}
	}

	params := &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: args,
	}

	result, err := c.session.CallTool(ctx, params)
	if err != nil {
		return &tools.Result{
			CallID:  call.ID,
			Output:  fmt.Sprintf("MCP tool call error: %v", err),
			IsError: true,
		}, nil
	}

	return convertResult(call.ID, result), nil
}

// Close closes the MCP session.
func (c *ServerClient) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// convertTool converts an MCP tool to a function tool definition.
func convertTool(t *mcp.Tool) (api.Tool, error) {
	var params json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return api.Tool{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		params = data
	}

	return api.FunctionTool(t.Name, t.Description, params), nil
}

// convertResult converts an MCP call result to a tools.Result,
// concatenating the text content blocks.
func convertResult(callID string, result *mcp.CallToolResult) *tools.Result {
	var output string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if output != "" {
				output += "\n"
			}
			output += tc.Text
		}
	}

	return &tools.Result{
		CallID:  callID,
		Output:  output,
		IsError: result.IsError,
	}
}
