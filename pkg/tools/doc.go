// Package tools runs the client side of the function tool loop. The
// model emits function_call items; an Executor resolves each call to a
// local Go function or a connected MCP server, and the Runner feeds the
// resulting function_call_output items back into the next request via
// previous_response_id until the model stops calling tools.
//
// The package also provides tool filtering for allowed_tools
// enforcement and the Call/Result types executors exchange.
package tools
