package api

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResponseRoundTrip(t *testing.T) {
	temp := 0.7
	completedAt := int64(1756600000)
	resp := Response{
		ID:          "resp_aaaaaaaaaaaaaaaaaaaaaaaa",
		Object:      "response",
		CreatedAt:   1756599990,
		CompletedAt: &completedAt,
		Status:      ResponseStatusCompleted,
		Model:       "gpt-4.1",
		Output: []Item{
			{
				ID:     "item_aaaaaaaaaaaaaaaaaaaaaaaa",
				Type:   ItemTypeMessage,
				Status: ItemStatusCompleted,
				Message: &MessageData{
					Role:    RoleAssistant,
					Content: []ContentPart{{Type: ContentTypeOutputText, Text: "hi", Annotations: []Annotation{}, Logprobs: []Logprob{}}},
				},
			},
		},
		Temperature: &temp,
		Usage: &Usage{
			InputTokens:  3,
			OutputTokens: 5,
			TotalTokens:  8,
		},
	}

	got := roundTrip(t, resp)
	assertDeepEqual(t, got, resp)
}

func TestResponseUnknownFieldsRetained(t *testing.T) {
	raw := `{"id":"resp_x","status":"completed","output":[],"vendor_trace_id":"tr-123"}`

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := resp.Extra["vendor_trace_id"]; !ok {
		t.Fatalf("Extra missing vendor_trace_id: %+v", resp.Extra)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("Unmarshal output: %v", err)
	}
	if got["vendor_trace_id"] != "tr-123" {
		t.Errorf("vendor_trace_id = %v, want tr-123", got["vendor_trace_id"])
	}
}

func TestResponseRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{"missing id", `{"status":"completed","output":[]}`, "id"},
		{"missing status", `{"id":"resp_x","output":[]}`, "status"},
		{"mistyped status", `{"id":"resp_x","status":3}`, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			err := json.Unmarshal([]byte(tt.raw), &resp)
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want SchemaError", err)
			}
			if se.Path != tt.path {
				t.Errorf("Path = %q, want %q", se.Path, tt.path)
			}
		})
	}
}

func TestResponseUnknownOutputItemSurvives(t *testing.T) {
	raw := `{"id":"resp_x","status":"completed","output":[{"type":"ssh_session","host":"example.com"}]}`

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(resp.Output) != 1 {
		t.Fatalf("Output length = %d", len(resp.Output))
	}
	if resp.Output[0].Type != "ssh_session" {
		t.Errorf("Type = %q", resp.Output[0].Type)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got struct {
		Output []map[string]any `json:"output"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("Unmarshal output: %v", err)
	}
	if got.Output[0]["host"] != "example.com" {
		t.Errorf("host = %v, want example.com", got.Output[0]["host"])
	}
}

func TestResponseOutputText(t *testing.T) {
	resp := Response{
		Output: []Item{
			{Type: ItemTypeReasoning, Reasoning: &ReasoningData{}},
			{Type: ItemTypeMessage, Message: &MessageData{Role: RoleAssistant, Content: []ContentPart{OutputText("a")}}},
			{Type: ItemTypeMessage, Message: &MessageData{Role: RoleAssistant, Content: []ContentPart{OutputText("b")}}},
		},
	}
	if got := resp.OutputText(); got != "ab" {
		t.Errorf("OutputText() = %q, want ab", got)
	}
}

func TestResponseFunctionCalls(t *testing.T) {
	resp := Response{
		Output: []Item{
			{Type: ItemTypeMessage, Message: &MessageData{Role: RoleAssistant}},
			{Type: ItemTypeFunctionCall, FunctionCall: &FunctionCallData{CallID: "call_1", Name: "f"}},
		},
	}
	calls := resp.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "f" {
		t.Errorf("FunctionCalls() = %+v", calls)
	}
}
