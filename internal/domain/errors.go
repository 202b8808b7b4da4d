package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSyncUnavailable = errors.New("sync unavailable")
)

// ValidationError is a user-correctable input problem
type ValidationError struct {
	Fields map[string]string
	msg    string
}

// NewValidationError builds an error with a single message
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

// FieldError records message for one field
func (e *ValidationError) FieldError(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
}

// Empty reports whether no problem was recorded
func (e *ValidationError) Empty() bool {
	return e.msg == "" && len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range sortedKeys(e.Fields) {
		parts = append(parts, e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// NotFoundError names what could not be resolved
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
