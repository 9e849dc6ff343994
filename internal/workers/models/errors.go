package models

import (
	"errors"
	"fmt"
)

// Reason is the rejection code sent back to the submitting connection.
type Reason string

const (
	ReasonInvalid   Reason = "invalid"
	ReasonLimit     Reason = "limit"
	ReasonDuplicate Reason = "duplicate"
)

// ErrInvalidRecord is the root of every validation failure.
var ErrInvalidRecord = errors.New("invalid record")

// FieldError reports which field failed validation and why.
type FieldError struct {
	Field  string
	Detail string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRecord, e.Field, e.Detail)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidRecord
}

// Invalid builds a FieldError for the given field.
func Invalid(field, detail string) error {
	return &FieldError{Field: field, Detail: detail}
}
