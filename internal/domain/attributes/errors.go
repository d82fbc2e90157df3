package attributes

import (
	"errors"
	"fmt"
)

// ErrSchema marks a record that is missing a field, names an unknown field or
// carries a value of the wrong type.
var ErrSchema = errors.New("schema error")

// FieldError describes which field broke the schema.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrSchema, e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrSchema).
func (e *FieldError) Unwrap() error { return ErrSchema }

func schemaError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
