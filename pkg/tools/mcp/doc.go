// Package mcp bridges MCP (Model Context Protocol) servers into the
// function tool loop. It connects to external MCP servers, discovers
// their tools as function tool definitions, and executes the model's
// function calls against the providing server.
//
// The package wraps the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk)
// and implements the tools.Executor interface, so MCP server tools can
// be used alongside locally registered tool functions.
//
// Configuration is provided via ServerConfig structs, which specify the
// server name, transport type (SSE or streamable-http), URL, and
// optional authentication.
package mcp
