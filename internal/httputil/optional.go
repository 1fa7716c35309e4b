package httputil

import (
	"bytes"
	"encoding/json"
)

// Optional tracks presence and value of a JSON field so a partial update can
// tell "leave alone" from "clear":
//   - Present=false: field absent from the body
//   - Present=true, Value=nil: field is JSON null
//   - Present=true, Value!=nil: field carries a value
type Optional[T any] struct {
	Present bool
	Value   *T
}

// OptionalString is the common case of Optional
type OptionalString = Optional[string]

// UnmarshalJSON only runs when the key exists, which is what sets Present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Set reports whether the field was sent with a non-null value
func (o Optional[T]) Set() bool {
	return o.Present && o.Value != nil
}
