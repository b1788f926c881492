package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/tools"
)

// Bridge implements tools.Executor over a set of MCP servers. It
// discovers the tools each server provides and routes tool calls to the
// providing server.
type Bridge struct {
	mu sync.RWMutex

	// clients maps server name to its connection.
	clients map[string]*ServerClient

	// toolToServer maps tool name to the server name that provides it.
	toolToServer map[string]string

	// discovered tracks whether tools have been discovered.
	discovered bool
}

var _ tools.Executor = (*Bridge)(nil)

// NewBridge creates a Bridge over the given connected clients.
func NewBridge(clients map[string]*ServerClient) *Bridge {
	return &Bridge{
		clients:      clients,
		toolToServer: make(map[string]string),
	}
}

// Dial connects to every server in the configuration and returns a
// Bridge over the connections. Servers that fail to connect fail the
// whole call.
func Dial(ctx context.Context, cfg Config) (*Bridge, error) {
	clients := make(map[string]*ServerClient, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		client := NewServerClient(sc)
		if err := client.Connect(ctx); err != nil {
			for _, connected := range clients {
				connected.Close()
			}
			return nil, err
		}
		clients[sc.Name] = client
	}
	return NewBridge(clients), nil
}

// CanExecute returns true if any connected MCP server provides the named
// tool. On the first call, it triggers lazy tool discovery.
func (b *Bridge) CanExecute(toolName string) bool {
	b.ensureDiscovered()

	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.toolToServer[toolName]
	return ok
}

// Execute routes the tool call to the providing MCP server.
func (b *Bridge) Execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	b.ensureDiscovered()

	b.mu.RLock()
	serverName, ok := b.toolToServer[call.Name]
	if !ok {
		b.mu.RUnlock()
		return &tools.Result{
			CallID:  call.ID,
			Output:  fmt.Sprintf("no MCP server provides tool %q", call.Name),
			IsError: true,
		}, nil
	}
	client := b.clients[serverName]
	b.mu.RUnlock()

	return client.CallTool(ctx, call)
}

// Definitions returns all tools discovered from the connected MCP
// servers, for inclusion in a request's tools array.
func (b *Bridge) Definitions() []api.Tool {
	b.ensureDiscovered()

	b.mu.RLock()
	defer b.mu.RUnlock()

	var defs []api.Tool
	for _, client := range b.clients {
		client.mu.Lock()
		defs = append(defs, client.cachedTools...)
		client.mu.Unlock()
	}
	return defs
}

// Close closes all MCP client connections.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var lastErr error
	for name, client := range b.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// ensureDiscovered triggers tool discovery if it hasn't been done yet.
func (b *Bridge) ensureDiscovered() {
	b.mu.RLock()
	if b.discovered {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Double-check after acquiring write lock.
	if b.discovered {
		return
	}

	ctx := context.Background()
	for name, client := range b.clients {
		defs, err := client.DiscoverTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server",
				"server", name,
				"error", err,
			)
			continue
		}

		for _, def := range defs {
			if _, exists := b.toolToServer[def.Name]; exists {
				slog.Warn("duplicate MCP tool name, using first provider",
					"tool", def.Name,
					"server", name,
				)
				continue
			}
			b.toolToServer[def.Name] = name
		}

		slog.Info("discovered MCP tools",
			"server", name,
			"count", len(defs),
		)
	}

	b.discovered = true
}
