package api

import "encoding/json"

// Opt is a tri-state optional: a field can be absent from the wire, present
// as an explicit JSON null, or present with a value. The distinction matters
// for request fields where the API treats null as "reset to default" rather
// than "unset".
//
// Use with the omitzero struct tag so that absent values are dropped on
// encode:
//
//	Temperature Opt[float64] `json:"temperature,omitzero"`
type Opt[T any] struct {
	value   T
	present bool
	null    bool
}

// Some returns an Opt carrying the given value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, present: true}
}

// Null returns an Opt that encodes as an explicit JSON null.
func Null[T any]() Opt[T] {
	return Opt[T]{present: true, null: true}
}

// Value returns the contained value and whether one is present.
// A null Opt reports false.
func (o Opt[T]) Value() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Or returns the contained value, or fallback when absent or null.
func (o Opt[T]) Or(fallback T) T {
	if v, ok := o.Value(); ok {
		return v
	}
	return fallback
}

// Present reports whether the field appears on the wire, as either a value
// or an explicit null.
func (o Opt[T]) Present() bool { return o.present }

// Null reports whether the field is an explicit JSON null.
func (o Opt[T]) Null() bool { return o.present && o.null }

// IsZero reports whether the field is absent. encoding/json uses this for
// the omitzero tag.
func (o Opt[T]) IsZero() bool { return !o.present }

// MarshalJSON implements json.Marshaler.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if o.null || !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler. It is only called for fields
// present on the wire, so the absent state survives a round-trip.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if string(data) == "null" {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}
