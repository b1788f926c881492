package client

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/empfang-dev/empfang/pkg/api"
)

func TestSSEReaderAssemblesFrames(t *testing.T) {
	input := "event: response.created\n" +
		"data: {\"id\":\"r1\"}\n" +
		"\n" +
		"event: response.output_text.delta\n" +
		"data: {\"item_id\":\"i1\",\n" +
		"data: \"delta\":\"Hi\"}\n" +
		"\n"

	r := newSSEReader(strings.NewReader(input))

	first, err := r.next()
	if err != nil {
		t.Fatalf("next error: %v", err)
	}
	if first.event != "response.created" || string(first.data) != `{"id":"r1"}` {
		t.Errorf("frame = %q / %s", first.event, first.data)
	}

	second, err := r.next()
	if err != nil {
		t.Fatalf("next error: %v", err)
	}
	// Multiple data lines are joined with a newline.
	if string(second.data) != "{\"item_id\":\"i1\",\n\"delta\":\"Hi\"}" {
		t.Errorf("data = %s", second.data)
	}

	if _, err := r.next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestSSEReaderIgnoresCommentsAndIDs(t *testing.T) {
	input := ": keep-alive\n" +
		"id: 7\n" +
		"retry: 1000\n" +
		"event: response.created\n" +
		"data: {\"id\":\"r1\"}\n" +
		"\n"

	r := newSSEReader(strings.NewReader(input))
	frame, err := r.next()
	if err != nil {
		t.Fatalf("next error: %v", err)
	}
	if frame.event != "response.created" {
		t.Errorf("event = %q", frame.event)
	}
}

func TestSSEReaderDoneSentinel(t *testing.T) {
	r := newSSEReader(strings.NewReader("data: [DONE]\n\n"))
	if _, err := r.next(); !errors.Is(err, errDone) {
		t.Errorf("expected done sentinel, got %v", err)
	}
}

func TestSSEReaderUnterminatedFinalFrame(t *testing.T) {
	r := newSSEReader(strings.NewReader("event: response.created\ndata: {\"id\":\"r1\"}\n"))
	frame, err := r.next()
	if err != nil {
		t.Fatalf("next error: %v", err)
	}
	if frame.event != "response.created" {
		t.Errorf("event = %q", frame.event)
	}
}

func TestSSEReaderOversizedFrame(t *testing.T) {
	huge := "data: " + strings.Repeat("x", maxEventBytes+1) + "\n\n"
	r := newSSEReader(strings.NewReader(huge))
	_, err := r.next()
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FramingError", err)
	}
}

func TestDecodeFrameInjectsEventName(t *testing.T) {
	ev, err := decodeFrame(&sseFrame{
		event: "response.output_text.delta",
		data:  []byte(`{"item_id":"i1","delta":"Hi"}`),
	})
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Type != api.EventOutputTextDelta {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.Delta != "Hi" || ev.ItemID != "i1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDecodeFramePayloadTypeWins(t *testing.T) {
	ev, err := decodeFrame(&sseFrame{
		data: []byte(`{"type":"response.output_text.delta","item_id":"i1","delta":"x"}`),
	})
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Type != api.EventOutputTextDelta {
		t.Errorf("Type = %q", ev.Type)
	}
}

func TestDecodeFrameTypeMismatch(t *testing.T) {
	_, err := decodeFrame(&sseFrame{
		event: "response.completed",
		data:  []byte(`{"type":"response.output_text.delta","item_id":"i1","delta":"x"}`),
	})
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FramingError", err)
	}
}

func TestDecodeFrameInvalidJSON(t *testing.T) {
	_, err := decodeFrame(&sseFrame{event: "response.created", data: []byte(`{"id":`)})
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FramingError", err)
	}
}

func TestDecodeFrameUnknownEventKind(t *testing.T) {
	ev, err := decodeFrame(&sseFrame{
		event: "response.audio.delta",
		data:  []byte(`{"item_id":"i1","delta":"UklGRg=="}`),
	})
	if err != nil {
		t.Fatalf("unknown event kind must not fail: %v", err)
	}
	if api.KnownEventType(ev.Type) {
		t.Errorf("Type = %q should be unknown", ev.Type)
	}
	if len(ev.Raw) == 0 {
		t.Error("raw payload should be preserved")
	}
}

func TestDecodeFrameSchemaError(t *testing.T) {
	_, err := decodeFrame(&sseFrame{
		event: "response.output_text.delta",
		data:  []byte(`{"item_id":"i1"}`),
	})
	var se *api.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if se.Path != "delta" {
		t.Errorf("Path = %q, want delta", se.Path)
	}
}

func TestInjectTypeEmptyObject(t *testing.T) {
	out, err := injectType([]byte(`{}`), "response.created")
	if err != nil {
		t.Fatalf("injectType error: %v", err)
	}
	if string(out) != `{"type":"response.created"}` {
		t.Errorf("out = %s", out)
	}
}
