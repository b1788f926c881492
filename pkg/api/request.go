package api

import "encoding/json"

// Input is the request input: either a plain text prompt or a list of
// items. The wire form is a JSON string or a JSON array.
type Input struct {
	Text  string `json:"-"`
	Items []Item `json:"-"`
}

// TextInput builds a plain text input.
func TextInput(text string) Input {
	return Input{Text: text}
}

// ItemsInput builds an input from a list of items.
func ItemsInput(items ...Item) Input {
	return Input{Items: items}
}

// MarshalJSON implements json.Marshaler.
func (in Input) MarshalJSON() ([]byte, error) {
	if in.Items != nil {
		return json.Marshal(in.Items)
	}
	return json.Marshal(in.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return missingField("input")
	}
	switch data[0] {
	case '"':
		*in = Input{}
		return json.Unmarshal(data, &in.Text)
	case '[':
		*in = Input{}
		return json.Unmarshal(data, &in.Items)
	default:
		return wrongType("input", "string or array")
	}
}

// CreateResponseRequest is the request body for creating a response.
//
// Sampling fields use Opt so a caller can distinguish leaving a field at
// the server default (absent) from explicitly resetting it (null).
type CreateResponseRequest struct {
	Model              string           `json:"model"`
	Input              Input            `json:"input"`
	Instructions       string           `json:"instructions,omitempty"`
	Tools              []Tool           `json:"tools,omitempty"`
	ToolChoice         *ToolChoice      `json:"tool_choice,omitempty"`
	Store              Opt[bool]        `json:"store,omitzero"`
	Stream             bool             `json:"stream,omitempty"`
	Background         bool             `json:"background,omitempty"`
	PreviousResponseID string           `json:"previous_response_id,omitempty"`
	Truncation         string           `json:"truncation,omitempty"`
	ServiceTier        string           `json:"service_tier,omitempty"`
	MaxOutputTokens    Opt[int]         `json:"max_output_tokens,omitzero"`
	Temperature        Opt[float64]     `json:"temperature,omitzero"`
	TopP               Opt[float64]     `json:"top_p,omitzero"`
	FrequencyPenalty   Opt[float64]     `json:"frequency_penalty,omitzero"`
	PresencePenalty    Opt[float64]     `json:"presence_penalty,omitzero"`
	TopLogprobs        Opt[int]         `json:"top_logprobs,omitzero"`
	ParallelToolCalls  Opt[bool]        `json:"parallel_tool_calls,omitzero"`
	MaxToolCalls       Opt[int]         `json:"max_tool_calls,omitzero"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
	User               string           `json:"user,omitempty"`
	Reasoning          *ReasoningConfig `json:"reasoning,omitempty"`
	Text               *TextConfig      `json:"text,omitempty"`
	Include            []string         `json:"include,omitempty"`
	StreamOptions      *StreamOptions   `json:"stream_options,omitempty"`
}

// StreamOptions controls streaming behavior.
type StreamOptions struct {
	IncludeUsage       bool `json:"include_usage,omitempty"`
	IncludeObfuscation bool `json:"include_obfuscation,omitempty"`
}

// TextConfig holds text generation configuration.
type TextConfig struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat specifies the output text format. For json_schema mode, the
// Name, Strict, and Schema fields carry the schema definition through as
// opaque data.
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// ReasoningConfig holds reasoning configuration.
type ReasoningConfig struct {
	Effort  *string `json:"effort,omitempty"`
	Summary *string `json:"summary,omitempty"`
}
