package api

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// wireType returns the discriminator string of a raw JSON object, or ""
// when the field is absent or not a string.
func wireType(data []byte) string {
	t := gjson.GetBytes(data, "type")
	if t.Type != gjson.String {
		return ""
	}
	return t.String()
}

// extraFields returns the fields of data that the wire struct does not
// claim. wire must already hold the decoded representation of data; its
// marshaled key set defines which fields are known.
func extraFields(data []byte, wire any) map[string]json.RawMessage {
	base, err := json.Marshal(wire)
	if err != nil {
		return nil
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(base, &known); err != nil {
		return nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}

	var extra map[string]json.RawMessage
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

// marshalWithExtra encodes the wire struct and merges retained unknown
// fields back in. Known fields win on key collision.
func marshalWithExtra(wire any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// gjsonExists reports whether data carries a non-null value at the given
// gjson path.
func gjsonExists(data []byte, path string) bool {
	r := gjson.GetBytes(data, path)
	return r.Exists() && r.Type != gjson.Null
}

// gjsonString returns the string at the given gjson path, or "" when the
// field is absent or not a string.
func gjsonString(data []byte, path string) string {
	r := gjson.GetBytes(data, path)
	if r.Type != gjson.String {
		return ""
	}
	return r.String()
}

// requireString checks that data carries a string at the given gjson
// path. It returns error, not *SchemaError, so callers can propagate the
// result directly without producing a non-nil interface around a nil
// pointer.
func requireString(data []byte, path string) error {
	r := gjson.GetBytes(data, path)
	if !r.Exists() {
		return missingField(path)
	}
	if r.Type != gjson.String {
		return wrongType(path, "string")
	}
	return nil
}
