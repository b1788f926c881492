package tools

import (
	"context"
	"log/slog"
	"sync"

	"github.com/empfang-dev/empfang/pkg/api"
	"github.com/empfang-dev/empfang/pkg/observability"
)

// ResponseCreator is the client surface the Runner drives. It is
// satisfied by client.Client.
type ResponseCreator interface {
	CreateResponse(ctx context.Context, req *api.CreateResponseRequest) (*api.Response, error)
}

// RunnerConfig controls the tool loop.
type RunnerConfig struct {
	// MaxTurns is the maximum number of create calls in one Run
	// (default 10). The request's max_tool_calls lowers it further.
	MaxTurns int

	// Parallel executes the tool calls of a turn concurrently.
	Parallel bool
}

func (c RunnerConfig) maxTurns() int {
	if c.MaxTurns <= 0 {
		return 10
	}
	return c.MaxTurns
}

// Runner drives the function tool loop: it creates a response, executes
// the function calls the model produced, sends the outputs back chained
// via previous_response_id, and repeats until the model answers without
// tool calls or a turn limit is hit.
type Runner struct {
	creator   ResponseCreator
	executors []Executor
	cfg       RunnerConfig
}

// NewRunner creates a Runner over the given executors.
func NewRunner(creator ResponseCreator, cfg RunnerConfig, executors ...Executor) *Runner {
	return &Runner{creator: creator, executors: executors, cfg: cfg}
}

// Run executes the tool loop for the request and returns the final
// response. The executors' tool definitions are merged into the
// request's tools array; the caller's request is not modified.
//
// The last response is returned even when the loop stops early: when a
// produced function call has no executor, when tool_choice is "none",
// or when the turn limit is reached with calls still outstanding.
func (r *Runner) Run(ctx context.Context, req *api.CreateResponseRequest) (*api.Response, error) {
	maxTurns := r.cfg.maxTurns()
	if mc, ok := req.MaxToolCalls.Value(); ok && mc > 0 && mc < maxTurns {
		maxTurns = mc
	}

	turnReq := *req
	turnReq.Tools = r.mergeTools(req.Tools)

	var resp *api.Response
	for turn := 0; turn < maxTurns; turn++ {
		var err error
		resp, err = r.creator.CreateResponse(ctx, &turnReq)
		if err != nil {
			return nil, err
		}

		calls := extractCalls(resp.Output)
		if len(calls) == 0 {
			return resp, nil
		}

		// tool_choice "none" means the calls are not to be executed.
		if req.ToolChoice != nil && req.ToolChoice.String == api.ToolChoiceNone.String {
			return resp, nil
		}

		// A call without an executor is the caller's to handle.
		if r.hasUnhandled(calls) {
			return resp, nil
		}

		filtered := FilterAllowedTools(calls, allowedNames(req.ToolChoice))
		results := r.execute(ctx, filtered.Allowed)
		results = append(results, filtered.Rejected...)

		items := make([]api.Item, 0, len(results))
		for i := range results {
			items = append(items, results[i].Item())
		}

		next := *req
		next.Tools = turnReq.Tools
		next.Input = api.ItemsInput(items...)
		next.PreviousResponseID = resp.ID
		turnReq = next

		slog.Debug("tool turn finished",
			"response_id", resp.ID,
			"calls", len(calls),
			"turn", turn,
		)
	}

	return resp, nil
}

// mergeTools appends executor definitions to the request tools, keeping
// request-declared tools first and skipping duplicate names.
func (r *Runner) mergeTools(declared []api.Tool) []api.Tool {
	merged := append([]api.Tool(nil), declared...)
	seen := make(map[string]bool, len(declared))
	for _, t := range declared {
		seen[t.Name] = true
	}
	for _, exec := range r.executors {
		for _, def := range exec.Definitions() {
			if seen[def.Name] {
				continue
			}
			seen[def.Name] = true
			merged = append(merged, def)
		}
	}
	return merged
}

func (r *Runner) hasUnhandled(calls []Call) bool {
	for _, c := range calls {
		if r.findExecutor(c.Name) == nil {
			return true
		}
	}
	return false
}

func (r *Runner) findExecutor(name string) Executor {
	for _, exec := range r.executors {
		if exec.CanExecute(name) {
			return exec
		}
	}
	return nil
}

// execute runs the calls, concurrently when configured.
func (r *Runner) execute(ctx context.Context, calls []Call) []Result {
	if len(calls) == 0 {
		return nil
	}

	results := make([]Result, len(calls))
	if !r.cfg.Parallel {
		for i, call := range calls {
			results[i] = r.executeOne(ctx, call)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()
			results[idx] = r.executeOne(ctx, c)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (r *Runner) executeOne(ctx context.Context, call Call) Result {
	exec := r.findExecutor(call.Name)
	if exec == nil {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "error").Inc()
		return Result{
			CallID:  call.ID,
			Output:  "no executor found for tool " + call.Name,
			IsError: true,
		}
	}

	result, err := exec.Execute(ctx, call)
	if err != nil {
		slog.Warn("tool execution error",
			"tool", call.Name,
			"call_id", call.ID,
			"error", err.Error(),
		)
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "error").Inc()
		return Result{
			CallID:  call.ID,
			Output:  err.Error(),
			IsError: true,
		}
	}

	status := "success"
	if result.IsError {
		status = "error"
	}
	observability.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	return *result
}

// extractCalls pulls the function calls out of the response output.
func extractCalls(items []api.Item) []Call {
	var calls []Call
	for i := range items {
		if items[i].Type == api.ItemTypeFunctionCall && items[i].FunctionCall != nil {
			fc := items[i].FunctionCall
			calls = append(calls, Call{
				ID:        fc.CallID,
				Name:      fc.Name,
				Arguments: fc.Arguments,
			})
		}
	}
	return calls
}

// allowedNames extracts the tool names of an allowed_tools choice.
// Returns nil when the choice does not restrict tools.
func allowedNames(tc *api.ToolChoice) []string {
	if tc == nil || tc.Allowed == nil {
		return nil
	}
	names := make([]string, 0, len(tc.Allowed.Tools))
	for _, t := range tc.Allowed.Tools {
		names = append(names, t.Name)
	}
	return names
}
