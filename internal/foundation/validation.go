// Package foundation holds small generic helpers shared across packages.
package foundation

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (fe FieldError) Error() string {
	if fe.Field != "" {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fe.Message
}

// Check inspects a value and reports zero or more field errors.
type Check[T any] func(T) []FieldError

// Validator runs a list of checks and collects every failure.
type Validator[T any] struct {
	checks []Check[T]
}

// NewValidator creates a validator over checks.
func NewValidator[T any](checks ...Check[T]) *Validator[T] {
	return &Validator[T]{checks: checks}
}

// With appends a check.
func (v *Validator[T]) With(check Check[T]) *Validator[T] {
	v.checks = append(v.checks, check)
	return v
}

// Collect runs every check and returns all field errors in check order.
func (v *Validator[T]) Collect(value T) []FieldError {
	var out []FieldError
	for _, check := range v.checks {
		out = append(out, check(value)...)
	}
	return out
}

// Validate runs every check and folds failures into one validation error.
// The first failing field is recorded as the "field" context key.
func (v *Validator[T]) Validate(value T) error {
	return ToError(v.Collect(value))
}

// ToError converts field errors to a classified validation error, or nil.
func ToError(fieldErrors []FieldError) error {
	if len(fieldErrors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(fieldErrors))
	fields := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fe.Error())
		fields = append(fields, fe.Field)
	}
	return errors.ValidationError(strings.Join(messages, "; ")).
		WithContext("field", fieldErrors[0].Field).
		WithContext("fields", fields).
		Build()
}

// Required fails when value is blank.
func Required(field, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return []FieldError{{Field: field, Code: "required", Message: "is required"}}
	}
	return nil
}

// AtLeast fails when value is below limit.
func AtLeast(field string, value, limit int) []FieldError {
	if value < limit {
		return []FieldError{{
			Field:   field,
			Code:    "min",
			Message: fmt.Sprintf("must be at least %d", limit),
			Value:   value,
		}}
	}
	return nil
}

// OneOf fails when value is not in allowed.
func OneOf[T comparable](field string, value T, allowed ...T) []FieldError {
	if slices.Contains(allowed, value) {
		return nil
	}
	return []FieldError{{
		Field:   field,
		Code:    "one_of",
		Message: fmt.Sprintf("must be one of %v", allowed),
		Value:   value,
	}}
}

// Invalid builds a single field error from an arbitrary cause.
func Invalid(field, code string, err error) []FieldError {
	if err == nil {
		return nil
	}
	return []FieldError{{Field: field, Code: code, Message: err.Error()}}
}
