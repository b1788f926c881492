package api

import "encoding/json"

// ResponseStatus represents the overall status of a response.
type ResponseStatus string

const (
	ResponseStatusQueued     ResponseStatus = "queued"
	ResponseStatusInProgress ResponseStatus = "in_progress"
	ResponseStatusCompleted  ResponseStatus = "completed"
	ResponseStatusIncomplete ResponseStatus = "incomplete"
	ResponseStatusFailed     ResponseStatus = "failed"
	ResponseStatusCancelled  ResponseStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ResponseStatus) Terminal() bool {
	switch s {
	case ResponseStatusCompleted, ResponseStatusIncomplete,
		ResponseStatusFailed, ResponseStatusCancelled:
		return true
	}
	return false
}

// Response is the response resource returned by the API, as a full body
// or as the snapshot embedded in lifecycle stream events. Nullable
// required fields use pointer types.
type Response struct {
	ID                 string             `json:"id"`
	Object             string             `json:"object,omitempty"`
	CreatedAt          int64              `json:"created_at,omitempty"`
	CompletedAt        *int64             `json:"completed_at,omitempty"`
	Status             ResponseStatus     `json:"status"`
	IncompleteDetails  *IncompleteDetails `json:"incomplete_details,omitempty"`
	Model              string             `json:"model,omitempty"`
	PreviousResponseID *string            `json:"previous_response_id,omitempty"`
	Instructions       *string            `json:"instructions,omitempty"`
	Output             []Item             `json:"output"`
	Error              *APIError          `json:"error,omitempty"`
	Tools              []Tool             `json:"tools,omitempty"`
	ToolChoice         *ToolChoice        `json:"tool_choice,omitempty"`
	Truncation         string             `json:"truncation,omitempty"`
	ParallelToolCalls  bool               `json:"parallel_tool_calls,omitempty"`
	Text               *TextConfig        `json:"text,omitempty"`
	Temperature        *float64           `json:"temperature,omitempty"`
	TopP               *float64           `json:"top_p,omitempty"`
	PresencePenalty    *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty   *float64           `json:"frequency_penalty,omitempty"`
	TopLogprobs        *int               `json:"top_logprobs,omitempty"`
	Reasoning          *ReasoningConfig   `json:"reasoning,omitempty"`
	Usage              *Usage             `json:"usage,omitempty"`
	MaxOutputTokens    *int               `json:"max_output_tokens,omitempty"`
	MaxToolCalls       *int               `json:"max_tool_calls,omitempty"`
	Store              bool               `json:"store,omitempty"`
	Background         bool               `json:"background,omitempty"`
	ServiceTier        string             `json:"service_tier,omitempty"`
	Metadata           map[string]any     `json:"metadata,omitempty"`
	User               string             `json:"user,omitempty"`
	SafetyIdentifier   *string            `json:"safety_identifier,omitempty"`
	PromptCacheKey     *string            `json:"prompt_cache_key,omitempty"`

	// Extra holds top-level fields this client does not model. They
	// survive a decode/encode round-trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// responseWire avoids method recursion during (un)marshaling.
type responseWire Response

// MarshalJSON implements json.Marshaler. The output array encodes as []
// rather than null when empty.
func (r Response) MarshalJSON() ([]byte, error) {
	w := responseWire(r)
	if w.Output == nil {
		w.Output = []Item{}
	}
	return marshalWithExtra(w, r.Extra)
}

// UnmarshalJSON implements json.Unmarshaler. A missing id or status is a
// SchemaError; unmodeled top-level fields are retained in Extra.
func (r *Response) UnmarshalJSON(data []byte) error {
	for _, f := range []string{"id", "status"} {
		if err := requireString(data, f); err != nil {
			return err
		}
	}
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return contentSchemaError(err)
	}
	*r = Response(w)
	r.Extra = extraFields(data, &w)
	return nil
}

// OutputText returns the concatenated text of all output_text parts
// across the response's message output items, in output order.
func (r *Response) OutputText() string {
	var s string
	for i := range r.Output {
		s += r.Output[i].OutputText()
	}
	return s
}

// FunctionCalls returns the function_call items of the response output.
func (r *Response) FunctionCalls() []*FunctionCallData {
	var calls []*FunctionCallData
	for i := range r.Output {
		if r.Output[i].Type == ItemTypeFunctionCall && r.Output[i].FunctionCall != nil {
			calls = append(calls, r.Output[i].FunctionCall)
		}
	}
	return calls
}

// IncompleteDetails explains why a response is incomplete.
type IncompleteDetails struct {
	Reason string `json:"reason,omitempty"`
}

// Usage holds token usage information for a response.
type Usage struct {
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	TotalTokens         int                 `json:"total_tokens"`
	InputTokensDetails  InputTokensDetails  `json:"input_tokens_details"`
	OutputTokensDetails OutputTokensDetails `json:"output_tokens_details"`
}

// InputTokensDetails breaks down input token usage.
type InputTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// OutputTokensDetails breaks down output token usage.
type OutputTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens"`
}
