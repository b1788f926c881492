package api

import "encoding/json"

// ToolType identifies the kind of a tool definition.
type ToolType string

// ToolTypeFunction is the only tool kind this client models structurally.
// Other kinds round-trip through Raw.
const ToolTypeFunction ToolType = "function"

// Tool describes a tool available to the model. Function tools expose
// their fields; any other kind keeps its raw payload and re-encodes
// verbatim.
type Tool struct {
	Type        ToolType
	Name        string
	Description string
	Parameters  json.RawMessage
	Strict      bool

	Extra map[string]json.RawMessage
	Raw   json.RawMessage
}

// FunctionTool builds a function tool with a JSON Schema parameters object.
func FunctionTool(name, description string, parameters json.RawMessage) Tool {
	return Tool{
		Type:        ToolTypeFunction,
		Name:        name,
		Description: description,
		Parameters:  parameters,
	}
}

type wireFunctionTool struct {
	Type        ToolType        `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict"`
}

// MarshalJSON implements json.Marshaler.
func (t Tool) MarshalJSON() ([]byte, error) {
	if t.Type != ToolTypeFunction {
		if len(t.Raw) > 0 {
			return t.Raw, nil
		}
		return marshalWithExtra(struct {
			Type ToolType `json:"type"`
		}{t.Type}, t.Extra)
	}
	w := wireFunctionTool{
		Type:        t.Type,
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
		Strict:      t.Strict,
	}
	return marshalWithExtra(w, t.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tool) UnmarshalJSON(data []byte) error {
	typ := ToolType(wireType(data))
	if typ == "" {
		return missingField("type")
	}
	if typ != ToolTypeFunction {
		*t = Tool{Type: typ, Raw: append(json.RawMessage(nil), data...)}
		t.Name = gjsonString(data, "name")
		return nil
	}
	if err := requireString(data, "name"); err != nil {
		return err
	}
	var w wireFunctionTool
	if err := json.Unmarshal(data, &w); err != nil {
		return contentSchemaError(err)
	}
	*t = Tool{
		Type:        w.Type,
		Name:        w.Name,
		Description: w.Description,
		Parameters:  w.Parameters,
		Strict:      w.Strict,
		Extra:       extraFields(data, &w),
	}
	return nil
}

// ToolChoice represents a tool selection strategy. It can be a simple
// string value ("auto", "required", "none") or a structured selection.
type ToolChoice struct {
	String   string              `json:"-"`
	Function *ToolChoiceFunction `json:"-"`
	Allowed  *AllowedTools       `json:"-"`

	// Raw holds a structured tool_choice of an unrecognized kind.
	Raw json.RawMessage `json:"-"`
}

// ToolChoiceFunction specifies a particular function to call by name.
type ToolChoiceFunction struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// AllowedTools restricts the model to a subset of the declared tools.
type AllowedTools struct {
	Type  string `json:"type"`
	Mode  string `json:"mode,omitempty"`
	Tools []Tool `json:"tools"`
}

var (
	// ToolChoiceAuto lets the model decide whether to use a tool.
	ToolChoiceAuto = ToolChoice{String: "auto"}
	// ToolChoiceRequired forces the model to use a tool.
	ToolChoiceRequired = ToolChoice{String: "required"}
	// ToolChoiceNone prevents the model from using any tool.
	ToolChoiceNone = ToolChoice{String: "none"}
)

// NewToolChoiceFunction creates a ToolChoice that selects a specific
// function by name.
func NewToolChoiceFunction(name string) ToolChoice {
	return ToolChoice{
		Function: &ToolChoiceFunction{
			Type: "function",
			Name: name,
		},
	}
}

// MarshalJSON serializes ToolChoice as either a JSON string or a JSON object.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	switch {
	case tc.String != "":
		return json.Marshal(tc.String)
	case tc.Function != nil:
		return json.Marshal(tc.Function)
	case tc.Allowed != nil:
		return json.Marshal(tc.Allowed)
	case len(tc.Raw) > 0:
		return tc.Raw, nil
	}
	return nil, NewSchemaError("tool_choice", "empty tool choice")
}

// UnmarshalJSON deserializes ToolChoice from either a JSON string or a
// JSON object. Unrecognized object kinds round-trip through Raw.
func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*tc = ToolChoice{String: s}
		return nil
	}

	switch wireType(data) {
	case "function":
		var f ToolChoiceFunction
		if err := json.Unmarshal(data, &f); err != nil {
			return contentSchemaError(err)
		}
		*tc = ToolChoice{Function: &f}
	case "allowed_tools":
		var a AllowedTools
		if err := json.Unmarshal(data, &a); err != nil {
			return contentSchemaError(err)
		}
		*tc = ToolChoice{Allowed: &a}
	case "":
		return missingField("type")
	default:
		*tc = ToolChoice{Raw: append(json.RawMessage(nil), data...)}
	}
	return nil
}
