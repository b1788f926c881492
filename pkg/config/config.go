// Package config provides unified configuration for empfang clients and
// the tooling built on them.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (EMPFANG_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration.
type Config struct {
	Client        ClientConfig        `yaml:"client"`
	Auth          AuthConfig          `yaml:"auth"`
	Tools         ToolsConfig         `yaml:"tools"`
	Storage       StorageConfig       `yaml:"storage"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ClientConfig holds API endpoint settings.
type ClientConfig struct {
	BaseURL   string        `yaml:"base_url"`   // required
	Model     string        `yaml:"model"`      // default model for requests
	Timeout   time.Duration `yaml:"timeout"`    // default: 120s
	UserAgent string        `yaml:"user_agent"` // default: "empfang-go"
}

// AuthConfig holds outgoing credential settings.
type AuthConfig struct {
	Type       string    `yaml:"type"`         // "none", "apikey", or "jwt", default: "none"
	APIKey     string    `yaml:"api_key"`      // for type=apikey
	APIKeyFile string    `yaml:"api_key_file"` // _file variant for api_key
	JWT        JWTConfig `yaml:"jwt"`          // for type=jwt
}

// JWTConfig holds service token settings for auth.type=jwt.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	Subject    string        `yaml:"subject"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	TTL        time.Duration `yaml:"ttl"` // default: 15m
}

// ToolsConfig holds tool loop settings.
type ToolsConfig struct {
	MaxTurns int  `yaml:"max_turns"` // default: 10
	Parallel bool `yaml:"parallel"`  // default: false
}

// StorageConfig holds response history settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection. The json
// tags cover the EMPFANG_MCP_SERVERS environment override, which takes
// a JSON array.
type MCPServerConfig struct {
	Name      string            `json:"name" yaml:"name"`
	Transport string            `json:"transport" yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `json:"url" yaml:"url"`
	Headers   map[string]string `json:"headers" yaml:"headers"`
	Auth      MCPAuthConfig     `json:"auth" yaml:"auth"`
}

// MCPAuthConfig holds MCP server authentication settings.
type MCPAuthConfig struct {
	Type             string   `json:"type" yaml:"type"` // "" or "oauth_client_credentials"
	TokenURL         string   `json:"token_url" yaml:"token_url"`
	ClientID         string   `json:"client_id" yaml:"client_id"`
	ClientIDFile     string   `json:"client_id_file" yaml:"client_id_file"`
	ClientSecret     string   `json:"client_secret" yaml:"client_secret"`
	ClientSecretFile string   `json:"client_secret_file" yaml:"client_secret_file"`
	Scopes           []string `json:"scopes" yaml:"scopes"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Client: ClientConfig{
			Timeout: 120 * time.Second,
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				TTL: 15 * time.Minute,
			},
		},
		Tools: ToolsConfig{
			MaxTurns: 10,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
