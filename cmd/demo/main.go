// Command demo exercises the client end to end against a responses API
// endpoint: it streams a prompt and prints the deltas, then shows the
// accumulated snapshot, retrieval, and optionally a function tool loop
// with locally registered tools and bridged MCP servers.
//
// Point it at a real deployment or at the bundled mock backend:
//
//	go run ./cmd/mock-backend &
//	go run ./cmd/demo -base-url http://localhost:9090 -tools
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/auth"
	"github.com/empfang-dev/empfang/pkg/client"
	"github.com/empfang-dev/empfang/pkg/config"
	"github.com/empfang-dev/empfang/pkg/debug"
	"github.com/empfang-dev/empfang/pkg/tools"
	"github.com/empfang-dev/empfang/pkg/tools/mcp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "config file path (default: discovered)")
		baseURL    = flag.String("base-url", "", "API base URL (overrides config)")
		model      = flag.String("model", "", "model name (overrides config)")
		prompt     = flag.String("prompt", "Count from 1 to 5.", "prompt to send")
		noStream   = flag.Bool("no-stream", false, "use a blocking create call instead of streaming")
		withTools  = flag.Bool("tools", false, "run the function tool loop")
	)
	flag.Parse()

	if *baseURL != "" {
		os.Setenv("EMPFANG_BASE_URL", *baseURL)
	}
	if *model != "" {
		os.Setenv("EMPFANG_MODEL", *model)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	debug.Init("", "")

	tokens, err := tokenSource(cfg)
	if err != nil {
		return err
	}

	cli, err := client.New(client.Config{
		BaseURL:   cfg.Client.BaseURL,
		Tokens:    tokens,
		Timeout:   cfg.Client.Timeout,
		UserAgent: cfg.Client.UserAgent,
		Metrics:   cfg.Observability.Metrics.Enabled,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := &api.CreateResponseRequest{
		Model: cfg.Client.Model,
		Input: api.TextInput(*prompt),
	}

	if *withTools {
		return runToolLoop(ctx, cli, cfg, req)
	}
	if *noStream {
		return runBlocking(ctx, cli, req)
	}
	return runStreaming(ctx, cli, req)
}

func runBlocking(ctx context.Context, cli *client.Client, req *api.CreateResponseRequest) error {
	resp, err := cli.CreateResponse(ctx, req)
	if err != nil {
		return err
	}
	printResponse(resp)
	return retrieveAndDelete(ctx, cli, resp)
}

func runStreaming(ctx context.Context, cli *client.Client, req *api.CreateResponseRequest) error {
	stream, err := cli.StreamResponse(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		ev := stream.Event()
		switch ev.Type {
		case api.EventOutputTextDelta:
			fmt.Print(ev.Delta)
		case api.EventResponseCompleted, api.EventResponseFailed, api.EventResponseIncomplete:
			fmt.Println()
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	fmt.Printf("stream outcome: %s\n", stream.Outcome())
	snapshot := stream.Snapshot()
	if snapshot == nil {
		return fmt.Errorf("stream produced no snapshot")
	}
	printResponse(snapshot)
	return retrieveAndDelete(ctx, cli, snapshot)
}

// runToolLoop registers a local tool, bridges any configured MCP
// servers, and lets the runner drive the call/output exchange until the
// model answers in text.
func runToolLoop(ctx context.Context, cli *client.Client, cfg *config.Config, req *api.CreateResponseRequest) error {
	local := tools.NewFuncExecutor()
	local.Register(weatherTool(), func(ctx context.Context, arguments string) (string, error) {
		return `{"temperature_c": 21, "conditions": "sunny"}`, nil
	})

	executors := []tools.Executor{local}

	if len(cfg.MCP.Servers) > 0 {
		bridge, err := mcp.Dial(ctx, mcpConfig(cfg))
		if err != nil {
			return fmt.Errorf("connecting MCP servers: %w", err)
		}
		defer bridge.Close()
		executors = append(executors, bridge)
		slog.Info("MCP servers bridged", "count", len(cfg.MCP.Servers))
	}

	runner := tools.NewRunner(cli, tools.RunnerConfig{
		MaxTurns: cfg.Tools.MaxTurns,
		Parallel: cfg.Tools.Parallel,
	}, executors...)

	resp, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	printResponse(resp)
	return nil
}

func weatherTool() api.Tool {
	return api.FunctionTool("get_weather", "Get current weather for a location.",
		[]byte(`{"type":"object","properties":{"location":{"type":"string"},"unit":{"type":"string","enum":["celsius","fahrenheit"]}},"required":["location"]}`))
}

// retrieveAndDelete round-trips the stored response through GET and
// DELETE so retrieval semantics are visible in the demo output.
func retrieveAndDelete(ctx context.Context, cli *client.Client, resp *api.Response) error {
	if !resp.Store {
		return nil
	}
	got, err := cli.GetResponse(ctx, resp.ID)
	if err != nil {
		return fmt.Errorf("retrieving %s: %w", resp.ID, err)
	}
	fmt.Printf("retrieved:  %s (%s)\n", got.ID, got.Status)

	if err := cli.DeleteResponse(ctx, resp.ID); err != nil {
		return fmt.Errorf("deleting %s: %w", resp.ID, err)
	}
	fmt.Printf("deleted:    %s\n", resp.ID)
	return nil
}

func printResponse(resp *api.Response) {
	fmt.Printf("response:   %s (%s)\n", resp.ID, resp.Status)
	if text := resp.OutputText(); text != "" {
		fmt.Printf("text:       %s\n", text)
	}
	for _, call := range resp.FunctionCalls() {
		fmt.Printf("tool call:  %s(%s)\n", call.Name, call.Arguments)
	}
	if resp.Usage != nil {
		fmt.Printf("usage:      %d in / %d out / %d total\n",
			resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
	}
}

// tokenSource builds the auth token source selected by the config.
func tokenSource(cfg *config.Config) (auth.TokenSource, error) {
	switch cfg.Auth.Type {
	case "", "none":
		return nil, nil
	case "apikey":
		return auth.StaticKey(cfg.Auth.APIKey), nil
	case "jwt":
		return auth.NewServiceToken(auth.ServiceTokenConfig{
			Secret:   []byte(cfg.Auth.JWT.Secret),
			Subject:  cfg.Auth.JWT.Subject,
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
			TTL:      cfg.Auth.JWT.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}
}

// mcpConfig converts the application MCP configuration to bridge form.
func mcpConfig(cfg *config.Config) mcp.Config {
	out := mcp.Config{Servers: make([]mcp.ServerConfig, 0, len(cfg.MCP.Servers))}
	for _, s := range cfg.MCP.Servers {
		out.Servers = append(out.Servers, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
			Auth: mcp.AuthConfig{
				Type:         s.Auth.Type,
				TokenURL:     s.Auth.TokenURL,
				ClientID:     s.Auth.ClientID,
				ClientSecret: s.Auth.ClientSecret,
				Scopes:       s.Auth.Scopes,
			},
		})
	}
	return out
}
