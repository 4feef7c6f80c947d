// Package wscutils carries forward the one piece of the teacher's web
// service utility package this worker actually needs: Optional[T], the
// tri-state type that distinguishes an absent JSON field from an explicit
// null from a present value. The teacher's Request/Response envelope,
// WscValidate, and the Send*Response helpers are dropped — this worker has
// no authenticated HTTP request/response surface for them to serve (see
// DESIGN.md).
package wscutils

import "encoding/json"

// Optional is a generic type that can distinguish between non-existent JSON fields and null values.
// It can be used in struct fields where you need to know if a field was:
// 1. Present in the JSON and had a value (Present = true, Null = false)
// 2. Present in the JSON but was null (Present = true, Null = true)
// 3. Not present in the JSON at all (Present = false)
type Optional[T any] struct {
	Value   T
	Present bool
	Null    bool
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// This allows Optional to detect both missing fields and explicit nulls during JSON unmarshaling.
// When a field is omitted completely from JSON:
// - UnmarshalJSON is never called for that field
// - The field retains its zero values (Present=false, Null=false)
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	// Check for null value
	if string(data) == "null" {
		o.Present = true
		o.Null = true
		return nil
	}

	// Not null, try to unmarshal into Value
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	o.Value = value
	o.Present = true
	o.Null = false
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
// A field that was never Present still marshals (as null) when this method
// is invoked directly; callers that need true omission of absent optional
// fields do so by hand-rolling the containing struct's MarshalJSON, the way
// model.PayloadProfile does for dob.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Present || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Get returns the Value and true if the Optional has a defined value,
// or the zero value of T and false if it doesn't have a value or is null.
func (o Optional[T]) Get() (T, bool) {
	if o.Present && !o.Null {
		return o.Value, true
	}
	var zero T
	return zero, false
}

// ValidatorValue implements the ValidatorValuer interface for validator v10.
// This allows validator to correctly validate the underlying value when validating structs that contain Optional fields.
// If the Optional has a value (Present=true and Null=false), it returns the Value.
// Otherwise, it returns the zero value of type T.
func (o Optional[T]) ValidatorValue() any {
	if o.Present && !o.Null {
		return o.Value
	}
	var zero T
	return zero
}
