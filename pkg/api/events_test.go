package api

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStreamEventRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
	}{
		{
			name: "output_text.delta",
			event: StreamEvent{
				Type:           EventOutputTextDelta,
				SequenceNumber: 4,
				ItemID:         "item_aaaaaaaaaaaaaaaaaaaaaaaa",
				OutputIndex:    1,
				ContentIndex:   2,
				Delta:          "Hel",
			},
		},
		{
			name: "output_text.done",
			event: StreamEvent{
				Type:   EventOutputTextDone,
				ItemID: "item_aaaaaaaaaaaaaaaaaaaaaaaa",
				Text:   "Hello",
			},
		},
		{
			name: "function_call_arguments.delta",
			event: StreamEvent{
				Type:   EventFunctionCallArgsDelta,
				ItemID: "item_bbbbbbbbbbbbbbbbbbbbbbbb",
				Delta:  `{"cit`,
			},
		},
		{
			name: "output_item.added",
			event: StreamEvent{
				Type:        EventOutputItemAdded,
				OutputIndex: 0,
				Item: &Item{
					ID:     "item_cccccccccccccccccccccccc",
					Type:   ItemTypeMessage,
					Status: ItemStatusInProgress,
					Message: &MessageData{
						Role:    RoleAssistant,
						Content: []ContentPart{},
					},
				},
			},
		},
		{
			name: "content_part.added",
			event: StreamEvent{
				Type:   EventContentPartAdded,
				ItemID: "item_cccccccccccccccccccccccc",
				Part:   &ContentPart{Type: ContentTypeOutputText, Text: "", Annotations: []Annotation{}, Logprobs: []Logprob{}},
			},
		},
		{
			name: "error",
			event: StreamEvent{
				Type:  EventError,
				Error: &APIError{Type: ErrorTypeServerError, Message: "upstream exploded"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.event)
			assertDeepEqual(t, got, tt.event)
		})
	}
}

func TestStreamEventUnknownTypePreserved(t *testing.T) {
	raw := `{"type":"response.audio.delta","item_id":"item_x","delta":"UklGRg=="}`

	var e StreamEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if e.Type != "response.audio.delta" {
		t.Errorf("Type = %q", e.Type)
	}
	if KnownEventType(e.Type) {
		t.Error("response.audio.delta should not be a known event type")
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(out) != raw {
		t.Errorf("re-encode = %s, want %s", out, raw)
	}
}

func TestStreamEventMissingRequiredField(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{"delta without item_id", `{"type":"response.output_text.delta","delta":"x"}`, "item_id"},
		{"delta without delta", `{"type":"response.output_text.delta","item_id":"i"}`, "delta"},
		{"done without text", `{"type":"response.output_text.done","item_id":"i"}`, "text"},
		{"item.added without item", `{"type":"response.output_item.added","output_index":0}`, "item"},
		{"error without error", `{"type":"error"}`, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e StreamEvent
			err := json.Unmarshal([]byte(tt.raw), &e)
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

func TestStreamEventValidDeltaDecodes(t *testing.T) {
	// A complete per-kind payload must decode with an error that is nil
	// as an interface value, not merely a nil *SchemaError.
	tests := []struct {
		name string
		raw  string
	}{
		{"output_text.delta", `{"type":"response.output_text.delta","item_id":"i1","delta":"Hi"}`},
		{"output_text.done", `{"type":"response.output_text.done","item_id":"i1","text":"Hi"}`},
		{"refusal.delta", `{"type":"response.refusal.delta","item_id":"i1","delta":"no"}`},
		{"refusal.done", `{"type":"response.refusal.done","item_id":"i1","refusal":"no"}`},
		{"reasoning_text.delta", `{"type":"response.reasoning_text.delta","item_id":"i1","delta":"hm"}`},
		{"reasoning_text.done", `{"type":"response.reasoning_text.done","item_id":"i1","text":"hm"}`},
		{"function_call_arguments.delta", `{"type":"response.function_call_arguments.delta","item_id":"i1","delta":"{"}`},
		{"function_call_arguments.done", `{"type":"response.function_call_arguments.done","item_id":"i1","arguments":"{}"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e StreamEvent
			if err := json.Unmarshal([]byte(tt.raw), &e); err != nil {
				t.Fatalf("err = %v (%T), want nil", err, err)
			}
			if e.ItemID != "i1" {
				t.Errorf("ItemID = %q, want %q", e.ItemID, "i1")
			}
		})
	}
}

func TestStreamEventWrappedSnapshot(t *testing.T) {
	raw := `{"type":"response.completed","sequence_number":9,"response":{"id":"resp_x","status":"completed","output":[]}}`

	var e StreamEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if e.Response == nil {
		t.Fatal("Response is nil")
	}
	if e.Response.ID != "resp_x" || e.Response.Status != ResponseStatusCompleted {
		t.Errorf("Response = %+v", e.Response)
	}
	if e.SequenceNumber != 9 {
		t.Errorf("SequenceNumber = %d, want 9", e.SequenceNumber)
	}
}

func TestStreamEventTopLevelSnapshot(t *testing.T) {
	raw := `{"type":"response.created","id":"r1","status":"in_progress","output":[]}`

	var e StreamEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if e.Type != EventResponseCreated {
		t.Errorf("Type = %q", e.Type)
	}
	if e.Response == nil {
		t.Fatal("Response is nil")
	}
	if e.Response.ID != "r1" || e.Response.Status != ResponseStatusInProgress {
		t.Errorf("Response = %+v", e.Response)
	}
	if len(e.Response.Output) != 0 {
		t.Errorf("Output = %+v, want empty", e.Response.Output)
	}
}

func TestEventTypeLifecycle(t *testing.T) {
	if !EventResponseCreated.Lifecycle() {
		t.Error("response.created should be a lifecycle event")
	}
	if EventOutputTextDelta.Lifecycle() {
		t.Error("output_text.delta should not be a lifecycle event")
	}
}
