// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a violated constraint on input or collaborator
// output. It is never retried.
type ValidationError struct {
	// Field names the offending field (e.g. "sections[2].word_count_target").
	Field string

	// Constraint describes what the field failed to satisfy.
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Constraint
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Constraint)
}

// ErrorKind classifies collaborator failures.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// CollaboratorError wraps a failure from a search, generation, or publishing
// backend.
type CollaboratorError struct {
	// Service names the backend, e.g. "openai", "claude", "graph", "corpus".
	Service string

	// Op is the operation that failed, e.g. "generate", "search".
	Op string

	// Kind tells retry logic whether another attempt can succeed.
	Kind ErrorKind

	// StatusCode is the HTTP status when the failure came from an HTTP response.
	StatusCode int

	Err error
}

func (e *CollaboratorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (%s, HTTP %d): %v", e.Service, e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Service, e.Op, e.Kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a collaborator failure worth retrying.
func IsTransient(err error) bool {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Kind == KindTransient
	}
	return false
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}
