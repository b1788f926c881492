package mcp

// Config holds the configuration for all MCP server connections.
type Config struct {
	// Servers is the list of MCP server configurations to connect to.
	Servers []ServerConfig
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used for logging and
	// identification when routing tool calls.
	Name string `json:"name" yaml:"name"`

	// Transport is the transport type to use: "sse" or "streamable-http".
	// If empty, defaults to "streamable-http".
	Transport string `json:"transport" yaml:"transport"`

	// URL is the MCP server endpoint URL.
	URL string `json:"url" yaml:"url"`

	// Headers contains additional HTTP headers to send with requests,
	// typically used for API key authentication.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Auth configures dynamic authentication for the server.
	Auth AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// AuthConfig describes how to authenticate against an MCP server.
type AuthConfig struct {
	// Type selects the auth mechanism. Empty means none;
	// "oauth_client_credentials" obtains Bearer tokens via the OAuth 2.0
	// client_credentials grant.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// TokenURL is the OAuth token endpoint.
	TokenURL string `json:"token_url,omitempty" yaml:"token_url,omitempty"`

	// ClientID and ClientSecret are the OAuth client credentials.
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`

	// Scopes are the OAuth scopes to request.
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}
