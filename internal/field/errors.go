// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"errors"
	"strings"

	"github.com/customfields/customfields/internal/validate"
)

// ErrNotFound is returned when a definition or value does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a write hits one of the
// uniqueness constraints on definitions or values.
var ErrDuplicate = errors.New("duplicate")

// FieldError is one validation failure addressed to an attribute. For
// definitions the attribute is a column such as "name" or "options"; for
// bound values it is the custom field's name.
type FieldError struct {
	Field   string
	Code    validate.Code
	Context map[string]any
}

func (e FieldError) String() string {
	return e.Field + ": " + validate.Error{Code: e.Code, Context: e.Context}.String()
}

// ValidationError aggregates recoverable field-level errors. Nothing is
// persisted when a ValidationError is returned.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records an error on field.
func (e *ValidationError) Add(field string, code validate.Code, ctx map[string]any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Code: code, Context: ctx})
}

// HasErrors reports whether any error was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

// On returns the errors recorded for field.
func (e *ValidationError) On(field string) []FieldError {
	var out []FieldError
	for _, fe := range e.Errors {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// Codes returns the codes recorded for field in order.
func (e *ValidationError) Codes(field string) []validate.Code {
	var out []validate.Code
	for _, fe := range e.On(field) {
		out = append(out, fe.Code)
	}
	return out
}

// orNil returns e as an error, or nil when it is empty.
func (e *ValidationError) orNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

func taken(field string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Code: validate.CodeTaken}}}
}
