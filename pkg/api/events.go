package api

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// StreamEventType identifies the type of a streaming event.
type StreamEventType string

// Lifecycle events carry a full response snapshot.
const (
	EventResponseCreated    StreamEventType = "response.created"
	EventResponseQueued     StreamEventType = "response.queued"
	EventResponseInProgress StreamEventType = "response.in_progress"
	EventResponseCompleted  StreamEventType = "response.completed"
	EventResponseFailed     StreamEventType = "response.failed"
	EventResponseIncomplete StreamEventType = "response.incomplete"
)

// Delta events convey incremental output.
const (
	EventOutputItemAdded           StreamEventType = "response.output_item.added"
	EventOutputItemDone            StreamEventType = "response.output_item.done"
	EventContentPartAdded          StreamEventType = "response.content_part.added"
	EventContentPartDone           StreamEventType = "response.content_part.done"
	EventOutputTextDelta           StreamEventType = "response.output_text.delta"
	EventOutputTextDone            StreamEventType = "response.output_text.done"
	EventOutputTextAnnotationAdded StreamEventType = "response.output_text.annotation.added"
	EventRefusalDelta              StreamEventType = "response.refusal.delta"
	EventRefusalDone               StreamEventType = "response.refusal.done"
	EventReasoningTextDelta        StreamEventType = "response.reasoning_text.delta"
	EventReasoningTextDone         StreamEventType = "response.reasoning_text.done"
	EventReasoningSummaryPartAdded StreamEventType = "response.reasoning_summary_part.added"
	EventReasoningSummaryPartDone  StreamEventType = "response.reasoning_summary_part.done"
	EventReasoningSummaryTextDelta StreamEventType = "response.reasoning_summary_text.delta"
	EventReasoningSummaryTextDone  StreamEventType = "response.reasoning_summary_text.done"
	EventFunctionCallArgsDelta     StreamEventType = "response.function_call_arguments.delta"
	EventFunctionCallArgsDone      StreamEventType = "response.function_call_arguments.done"
)

// EventError reports a stream-fatal server error.
const EventError StreamEventType = "error"

var knownEventTypes = map[StreamEventType]bool{
	EventResponseCreated:           true,
	EventResponseQueued:            true,
	EventResponseInProgress:        true,
	EventResponseCompleted:         true,
	EventResponseFailed:            true,
	EventResponseIncomplete:        true,
	EventOutputItemAdded:           true,
	EventOutputItemDone:            true,
	EventContentPartAdded:          true,
	EventContentPartDone:           true,
	EventOutputTextDelta:           true,
	EventOutputTextDone:            true,
	EventOutputTextAnnotationAdded: true,
	EventRefusalDelta:              true,
	EventRefusalDone:               true,
	EventReasoningTextDelta:        true,
	EventReasoningTextDone:         true,
	EventReasoningSummaryPartAdded: true,
	EventReasoningSummaryPartDone:  true,
	EventReasoningSummaryTextDelta: true,
	EventReasoningSummaryTextDone:  true,
	EventFunctionCallArgsDelta:     true,
	EventFunctionCallArgsDone:      true,
	EventError:                     true,
}

// KnownEventType reports whether t is a streaming event kind this client
// understands.
func KnownEventType(t StreamEventType) bool {
	return knownEventTypes[t]
}

// Lifecycle reports whether the event type carries a response snapshot.
func (t StreamEventType) Lifecycle() bool {
	switch t {
	case EventResponseCreated, EventResponseQueued, EventResponseInProgress,
		EventResponseCompleted, EventResponseFailed, EventResponseIncomplete:
		return true
	}
	return false
}

// StreamEvent is a single server-sent event of a streaming response.
// Which fields are populated depends on Type. Unrecognized event kinds
// keep their payload in Raw and re-encode verbatim.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	SequenceNumber int             `json:"sequence_number,omitempty"`

	// Lifecycle events.
	Response *Response `json:"response,omitempty"`

	// Item and part events.
	Item            *Item        `json:"item,omitempty"`
	Part            *ContentPart `json:"part,omitempty"`
	ItemID          string       `json:"item_id,omitempty"`
	OutputIndex     int          `json:"output_index,omitempty"`
	ContentIndex    int          `json:"content_index,omitempty"`
	SummaryIndex    int          `json:"summary_index,omitempty"`
	AnnotationIndex int          `json:"annotation_index,omitempty"`
	Annotation      *Annotation  `json:"annotation,omitempty"`

	// Text and argument deltas. Delta carries the increment; Text,
	// Arguments and Refusal carry the final value of done events.
	Delta       string    `json:"delta,omitempty"`
	Text        string    `json:"text,omitempty"`
	Arguments   string    `json:"arguments,omitempty"`
	Refusal     string    `json:"refusal,omitempty"`
	Logprobs    []Logprob `json:"logprobs,omitempty"`
	Obfuscation string    `json:"obfuscation,omitempty"`

	// error events.
	Error *APIError `json:"error,omitempty"`

	// Extra holds fields of a recognized kind that this client does not
	// model. They survive a decode/encode round-trip.
	Extra map[string]json.RawMessage `json:"-"`

	// Raw is the full payload of an unrecognized kind.
	Raw json.RawMessage `json:"-"`
}

type streamEventWire StreamEvent

// MarshalJSON implements json.Marshaler.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	if !KnownEventType(e.Type) && len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return marshalWithExtra(streamEventWire(e), e.Extra)
}

// UnmarshalJSON implements json.Unmarshaler. An unrecognized type keeps
// the raw payload; a recognized type with a missing or mistyped required
// field returns a SchemaError.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	t := StreamEventType(wireType(data))
	if t == "" {
		return missingField("type")
	}

	if !KnownEventType(t) {
		*e = StreamEvent{Type: t, Raw: append(json.RawMessage(nil), data...)}
		return nil
	}

	if err := requireEventFields(t, data); err != nil {
		return err
	}

	// Some servers put the snapshot fields of lifecycle events at the top
	// level of the payload instead of under a "response" key.
	if t.Lifecycle() && !gjsonExists(data, "response") {
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		seq := int(gjson.GetBytes(data, "sequence_number").Int())
		delete(r.Extra, "type")
		delete(r.Extra, "sequence_number")
		if len(r.Extra) == 0 {
			r.Extra = nil
		}
		*e = StreamEvent{Type: t, SequenceNumber: seq, Response: &r}
		return nil
	}

	var w streamEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return contentSchemaError(err)
	}
	*e = StreamEvent(w)
	e.Extra = extraFields(data, &w)
	return nil
}

// requireEventFields validates the per-kind required fields before the
// full decode. Snapshot payloads may carry the response fields at the top
// level instead of under a "response" key; that shape is accepted and
// normalized by the stream decoder.
func requireEventFields(t StreamEventType, data []byte) error {
	switch t {
	case EventOutputTextDelta, EventRefusalDelta, EventReasoningTextDelta,
		EventReasoningSummaryTextDelta, EventFunctionCallArgsDelta:
		if err := requireString(data, "item_id"); err != nil {
			return err
		}
		return requireString(data, "delta")
	case EventOutputTextDone, EventReasoningTextDone:
		if err := requireString(data, "item_id"); err != nil {
			return err
		}
		return requireString(data, "text")
	case EventRefusalDone:
		if err := requireString(data, "item_id"); err != nil {
			return err
		}
		return requireString(data, "refusal")
	case EventFunctionCallArgsDone:
		if err := requireString(data, "item_id"); err != nil {
			return err
		}
		return requireString(data, "arguments")
	case EventOutputItemAdded, EventOutputItemDone:
		if !gjsonExists(data, "item") {
			return missingField("item")
		}
	case EventContentPartAdded, EventContentPartDone,
		EventReasoningSummaryPartAdded, EventReasoningSummaryPartDone:
		if err := requireString(data, "item_id"); err != nil {
			return err
		}
		if !gjsonExists(data, "part") {
			return missingField("part")
		}
	case EventOutputTextAnnotationAdded:
		if err := requireString(data, "item_id"); err != nil {
			return err
		}
		if !gjsonExists(data, "annotation") {
			return missingField("annotation")
		}
	case EventError:
		if !gjsonExists(data, "error") {
			return missingField("error")
		}
	}
	return nil
}
