package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/empfang-dev/empfang/pkg/api"
)

func weatherTool() api.Tool {
	return api.FunctionTool("get_weather", "Look up the weather",
		json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`))
}

func TestFuncExecutor_Execute(t *testing.T) {
	exec := NewFuncExecutor()
	exec.Register(weatherTool(), func(_ context.Context, args string) (string, error) {
		if args != `{"city":"Berlin"}` {
			t.Errorf("arguments = %q", args)
		}
		return "sunny", nil
	})

	if !exec.CanExecute("get_weather") {
		t.Error("expected CanExecute(get_weather) = true")
	}
	if exec.CanExecute("get_time") {
		t.Error("expected CanExecute(get_time) = false")
	}

	result, err := exec.Execute(context.Background(), Call{
		ID: "c1", Name: "get_weather", Arguments: `{"city":"Berlin"}`,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.CallID != "c1" {
		t.Errorf("CallID = %q, want %q", result.CallID, "c1")
	}
	if result.Output != "sunny" || result.IsError {
		t.Errorf("result = %+v", result)
	}
}

func TestFuncExecutor_FunctionError(t *testing.T) {
	exec := NewFuncExecutor()
	exec.Register(weatherTool(), func(_ context.Context, _ string) (string, error) {
		return "", errors.New("upstream unavailable")
	})

	result, err := exec.Execute(context.Background(), Call{ID: "c1", Name: "get_weather"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result")
	}
	if result.Output != "upstream unavailable" {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestFuncExecutor_UnknownTool(t *testing.T) {
	exec := NewFuncExecutor()

	result, err := exec.Execute(context.Background(), Call{ID: "c1", Name: "missing"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for unregistered tool")
	}
}

func TestFuncExecutor_Definitions(t *testing.T) {
	exec := NewFuncExecutor()
	exec.Register(api.FunctionTool("zeta", "", nil), func(_ context.Context, _ string) (string, error) { return "", nil })
	exec.Register(api.FunctionTool("alpha", "", nil), func(_ context.Context, _ string) (string, error) { return "", nil })

	defs := exec.Definitions()
	if len(defs) != 2 {
		t.Fatalf("len(defs) = %d, want 2", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("definitions not sorted: %q, %q", defs[0].Name, defs[1].Name)
	}
}

func TestResult_Item(t *testing.T) {
	r := Result{CallID: "call_1", Output: "42"}
	item := r.Item()

	if item.Type != api.ItemTypeFunctionCallOutput {
		t.Errorf("Type = %q", item.Type)
	}
	if item.FunctionCallOutput == nil || item.FunctionCallOutput.CallID != "call_1" {
		t.Errorf("FunctionCallOutput = %+v", item.FunctionCallOutput)
	}
	if item.FunctionCallOutput.Output != "42" {
		t.Errorf("Output = %q", item.FunctionCallOutput.Output)
	}
}
