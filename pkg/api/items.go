package api

import "encoding/json"

// ItemType identifies the kind of an item.
type ItemType string

const (
	ItemTypeMessage            ItemType = "message"
	ItemTypeFunctionCall       ItemType = "function_call"
	ItemTypeFunctionCallOutput ItemType = "function_call_output"
	ItemTypeReasoning          ItemType = "reasoning"
	ItemTypeItemReference      ItemType = "item_reference"
)

var knownItemTypes = map[ItemType]bool{
	ItemTypeMessage:            true,
	ItemTypeFunctionCall:       true,
	ItemTypeFunctionCallOutput: true,
	ItemTypeReasoning:          true,
	ItemTypeItemReference:      true,
}

// KnownItemType reports whether t is an item kind this client understands.
func KnownItemType(t ItemType) bool {
	return knownItemTypes[t]
}

// ItemStatus represents the lifecycle state of an item.
type ItemStatus string

const (
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusIncomplete ItemStatus = "incomplete"
)

// Role identifies the author of a message item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
)

// MessageData holds the fields specific to message items.
type MessageData struct {
	Role    Role
	Content []ContentPart
}

// FunctionCallData holds the fields specific to function_call items.
type FunctionCallData struct {
	CallID    string
	Name      string
	Arguments string
}

// FunctionCallOutputData holds the fields specific to function_call_output
// items. Output carries a plain string result; OutputParts carries
// structured content when the tool returned parts instead.
type FunctionCallOutputData struct {
	CallID      string
	Output      string
	OutputParts []ContentPart
}

// ReasoningData holds the fields specific to reasoning items.
type ReasoningData struct {
	Summary          []ContentPart
	Content          []ContentPart
	EncryptedContent string
}

// ItemReference points at an item from an earlier response by id.
type ItemReference struct {
	ID string
}

// Item is one entry of a response's input or output. Exactly one variant
// pointer is non-nil for recognized kinds, selected by Type. Unrecognized
// kinds keep their raw payload in Raw and re-encode verbatim.
type Item struct {
	ID     string
	Type   ItemType
	Status ItemStatus

	Message            *MessageData
	FunctionCall       *FunctionCallData
	FunctionCallOutput *FunctionCallOutputData
	Reasoning          *ReasoningData
	Reference          *ItemReference

	// Extra holds fields of a recognized kind that this client does not
	// model. They survive a decode/encode round-trip.
	Extra map[string]json.RawMessage

	// Raw is the full payload of an unrecognized kind.
	Raw json.RawMessage
}

// UserMessage builds a message item with a single input_text part.
func UserMessage(text string) Item {
	return Item{
		Type: ItemTypeMessage,
		Message: &MessageData{
			Role:    RoleUser,
			Content: []ContentPart{InputText(text)},
		},
	}
}

// FunctionOutput builds a function_call_output item answering the call
// with the given call_id.
func FunctionOutput(callID, output string) Item {
	return Item{
		Type: ItemTypeFunctionCallOutput,
		FunctionCallOutput: &FunctionCallOutputData{
			CallID: callID,
			Output: output,
		},
	}
}

// OutputText returns the concatenated text of the item's output_text parts.
// Non-message items and non-text parts contribute nothing.
func (it *Item) OutputText() string {
	if it.Message == nil {
		return ""
	}
	var s string
	for _, p := range it.Message.Content {
		if p.Type == ContentTypeOutputText {
			s += p.Text
		}
	}
	return s
}

// itemWireBase carries the fields shared by every item kind.
type itemWireBase struct {
	ID     string     `json:"id,omitempty"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status,omitempty"`
}

type wireMessageItem struct {
	itemWireBase
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

type wireFunctionCallItem struct {
	itemWireBase
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireFunctionCallOutputItem struct {
	itemWireBase
	CallID string          `json:"call_id"`
	Output json.RawMessage `json:"output"`
}

type wireReasoningItem struct {
	itemWireBase
	Summary          []ContentPart `json:"summary"`
	Content          []ContentPart `json:"content,omitempty"`
	EncryptedContent string        `json:"encrypted_content,omitempty"`
}

type wireItemReference struct {
	itemWireBase
}

// MarshalJSON writes the flat wire shape of the active variant.
func (it Item) MarshalJSON() ([]byte, error) {
	if !KnownItemType(it.Type) {
		if len(it.Raw) > 0 {
			return it.Raw, nil
		}
		return marshalWithExtra(itemWireBase{ID: it.ID, Type: it.Type, Status: it.Status}, it.Extra)
	}

	base := itemWireBase{ID: it.ID, Type: it.Type, Status: it.Status}
	var wire any
	switch it.Type {
	case ItemTypeMessage:
		w := wireMessageItem{itemWireBase: base}
		if it.Message != nil {
			w.Role = it.Message.Role
			w.Content = it.Message.Content
		}
		if w.Content == nil {
			w.Content = []ContentPart{}
		}
		wire = w
	case ItemTypeFunctionCall:
		w := wireFunctionCallItem{itemWireBase: base}
		if it.FunctionCall != nil {
			w.CallID = it.FunctionCall.CallID
			w.Name = it.FunctionCall.Name
			w.Arguments = it.FunctionCall.Arguments
		}
		wire = w
	case ItemTypeFunctionCallOutput:
		w := wireFunctionCallOutputItem{itemWireBase: base}
		if it.FunctionCallOutput != nil {
			w.CallID = it.FunctionCallOutput.CallID
			out, err := marshalCallOutput(it.FunctionCallOutput)
			if err != nil {
				return nil, err
			}
			w.Output = out
		} else {
			w.Output = json.RawMessage(`""`)
		}
		wire = w
	case ItemTypeReasoning:
		w := wireReasoningItem{itemWireBase: base}
		if it.Reasoning != nil {
			w.Summary = it.Reasoning.Summary
			w.Content = it.Reasoning.Content
			w.EncryptedContent = it.Reasoning.EncryptedContent
		}
		if w.Summary == nil {
			w.Summary = []ContentPart{}
		}
		wire = w
	case ItemTypeItemReference:
		w := wireItemReference{itemWireBase: base}
		if it.Reference != nil {
			w.ID = it.Reference.ID
		}
		w.Status = ""
		wire = w
	}
	return marshalWithExtra(wire, it.Extra)
}

// marshalCallOutput encodes the output field of a function_call_output
// item, preferring structured parts when present.
func marshalCallOutput(d *FunctionCallOutputData) (json.RawMessage, error) {
	if len(d.OutputParts) > 0 {
		return json.Marshal(d.OutputParts)
	}
	return json.Marshal(d.Output)
}

// UnmarshalJSON dispatches on the type discriminator. An unrecognized type
// keeps the raw payload; a recognized type with a missing or mistyped
// required field returns a SchemaError.
func (it *Item) UnmarshalJSON(data []byte) error {
	t := ItemType(wireType(data))
	if t == "" {
		return missingField("type")
	}

	if !KnownItemType(t) {
		*it = Item{Type: t, Raw: append(json.RawMessage(nil), data...)}
		it.ID = gjsonString(data, "id")
		it.Status = ItemStatus(gjsonString(data, "status"))
		return nil
	}

	var base itemWireBase
	if err := json.Unmarshal(data, &base); err != nil {
		return itemSchemaError(err)
	}
	*it = Item{ID: base.ID, Type: t, Status: base.Status}

	switch t {
	case ItemTypeMessage:
		if err := requireString(data, "role"); err != nil {
			return err
		}
		var w wireMessageItem
		if err := json.Unmarshal(data, &w); err != nil {
			return itemSchemaError(err)
		}
		it.Message = &MessageData{Role: w.Role, Content: w.Content}
		it.Extra = extraFields(data, &w)

	case ItemTypeFunctionCall:
		for _, f := range []string{"call_id", "name", "arguments"} {
			if err := requireString(data, f); err != nil {
				return err
			}
		}
		var w wireFunctionCallItem
		if err := json.Unmarshal(data, &w); err != nil {
			return itemSchemaError(err)
		}
		it.FunctionCall = &FunctionCallData{CallID: w.CallID, Name: w.Name, Arguments: w.Arguments}
		it.Extra = extraFields(data, &w)

	case ItemTypeFunctionCallOutput:
		if err := requireString(data, "call_id"); err != nil {
			return err
		}
		var w wireFunctionCallOutputItem
		if err := json.Unmarshal(data, &w); err != nil {
			return itemSchemaError(err)
		}
		d := &FunctionCallOutputData{CallID: w.CallID}
		if err := unmarshalCallOutput(w.Output, d); err != nil {
			return err
		}
		it.FunctionCallOutput = d
		it.Extra = extraFields(data, &w)

	case ItemTypeReasoning:
		var w wireReasoningItem
		if err := json.Unmarshal(data, &w); err != nil {
			return itemSchemaError(err)
		}
		it.Reasoning = &ReasoningData{
			Summary:          w.Summary,
			Content:          w.Content,
			EncryptedContent: w.EncryptedContent,
		}
		it.Extra = extraFields(data, &w)

	case ItemTypeItemReference:
		if err := requireString(data, "id"); err != nil {
			return err
		}
		var w wireItemReference
		if err := json.Unmarshal(data, &w); err != nil {
			return itemSchemaError(err)
		}
		it.Reference = &ItemReference{ID: w.ID}
		it.Extra = extraFields(data, &w)
	}

	return nil
}

// unmarshalCallOutput decodes the output field of a function_call_output
// item, which is either a plain string or an array of content parts.
func unmarshalCallOutput(raw json.RawMessage, d *FunctionCallOutputData) error {
	if len(raw) == 0 || string(raw) == "null" {
		return missingField("output")
	}
	switch raw[0] {
	case '"':
		return json.Unmarshal(raw, &d.Output)
	case '[':
		return json.Unmarshal(raw, &d.OutputParts)
	default:
		return wrongType("output", "string or array")
	}
}

func itemSchemaError(err error) error {
	return contentSchemaError(err)
}
