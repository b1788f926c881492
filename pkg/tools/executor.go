package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/empfang-dev/empfang/pkg/api"
)

// Call represents a model's request to invoke a tool.
type Call struct {
	// ID is the unique call identifier from the model (e.g. "call_abc123").
	ID string

	// Name is the tool function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// Result represents the output of a tool execution.
type Result struct {
	// CallID matches the originating Call.ID.
	CallID string

	// Output is the tool output content (text).
	Output string

	// IsError indicates that the output is an error message.
	IsError bool
}

// Item converts the result into a function_call_output item suitable
// for the next request's input.
func (r *Result) Item() api.Item {
	return api.FunctionOutput(r.CallID, r.Output)
}

// Executor executes tool calls. Implementations exist for locally
// registered Go functions (FuncExecutor) and for MCP server tools
// (mcp.Bridge).
type Executor interface {
	// CanExecute checks if this executor can handle the given tool name.
	CanExecute(toolName string) bool

	// Execute runs the tool and returns the result. Execution failures
	// that the model should see are reported as an error Result, not as
	// an error return.
	Execute(ctx context.Context, call Call) (*Result, error)

	// Definitions returns the tool definitions this executor provides,
	// for inclusion in a request's tools array.
	Definitions() []api.Tool
}

// Func is a locally executed tool function. It receives the raw
// JSON-encoded arguments and returns the output text.
type Func func(ctx context.Context, arguments string) (string, error)

// FuncExecutor executes tools registered as local Go functions.
type FuncExecutor struct {
	mu    sync.RWMutex
	funcs map[string]Func
	defs  map[string]api.Tool
}

var _ Executor = (*FuncExecutor)(nil)

// NewFuncExecutor creates an empty FuncExecutor.
func NewFuncExecutor() *FuncExecutor {
	return &FuncExecutor{
		funcs: make(map[string]Func),
		defs:  make(map[string]api.Tool),
	}
}

// Register adds a tool function under the definition's name. A later
// registration with the same name replaces the earlier one.
func (e *FuncExecutor) Register(def api.Tool, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[def.Name] = fn
	e.defs[def.Name] = def
}

// CanExecute reports whether a function is registered under the name.
func (e *FuncExecutor) CanExecute(toolName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.funcs[toolName]
	return ok
}

// Execute runs the registered function. A function error becomes an
// error Result so the model can react to it.
func (e *FuncExecutor) Execute(ctx context.Context, call Call) (*Result, error) {
	e.mu.RLock()
	fn, ok := e.funcs[call.Name]
	e.mu.RUnlock()

	if !ok {
		return &Result{
			CallID:  call.ID,
			Output:  fmt.Sprintf("no function registered for tool %q", call.Name),
			IsError: true,
		}, nil
	}

	output, err := fn(ctx, call.Arguments)
	if err != nil {
		return &Result{
			CallID:  call.ID,
			Output:  err.Error(),
			IsError: true,
		}, nil
	}

	return &Result{CallID: call.ID, Output: output}, nil
}

// Definitions returns the registered tool definitions sorted by name.
func (e *FuncExecutor) Definitions() []api.Tool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defs := make([]api.Tool, 0, len(e.defs))
	for _, def := range e.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
