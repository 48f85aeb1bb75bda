package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream failure")
	ErrConflict     = errors.New("conflict")
)

// ValidationError carries a user-facing message plus optional per-field details.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// FieldErrors builds a ValidationError from field messages. The top-level message
// is the first field message in key order.
func FieldErrors(fields map[string][]string) *ValidationError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msg := "invalid input"
	for _, k := range keys {
		if len(fields[k]) > 0 {
			msg = fields[k][0]
			break
		}
	}
	return &ValidationError{Message: msg, Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if strings.TrimSpace(e.Message) == "" {
		return ErrValidation.Error()
	}
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthError is an authentication failure with the message returned to the client.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// UpstreamError wraps a failure reported by Supabase or OpenAI.
type UpstreamError struct {
	Service string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Service + " request failed"
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
