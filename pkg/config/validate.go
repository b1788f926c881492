package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// client.base_url is required.
	if c.Client.BaseURL == "" {
		errs = append(errs, fmt.Errorf("client.base_url is required"))
	}

	// client.timeout must not be negative.
	if c.Client.Timeout < 0 {
		errs = append(errs, fmt.Errorf("client.timeout must be >= 0, got %v", c.Client.Timeout))
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// Key auth needs a key, jwt auth needs a secret and subject.
	if c.Auth.Type == "apikey" && c.Auth.APIKey == "" && c.Auth.APIKeyFile == "" {
		errs = append(errs, fmt.Errorf("auth.api_key or auth.api_key_file is required when auth.type is \"apikey\""))
	}
	if c.Auth.Type == "jwt" {
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
		if c.Auth.JWT.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.subject is required when auth.type is \"jwt\""))
		}
	}

	// tools.max_turns must be positive.
	if c.Tools.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("tools.max_turns must be > 0, got %d", c.Tools.MaxTurns))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// Every MCP server needs a name and URL.
	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
	}

	return errors.Join(errs...)
}
