// Package errs defines the client-side error taxonomy shared by the API client,
// the session managers and the UI.
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误分类。
type Kind string

const (
	KindAuth       Kind = "auth"       // bad credentials, missing or rejected token
	KindNetwork    Kind = "network"    // transport failure, timeout
	KindProtocol   Kind = "protocol"   // unexpected status or response shape
	KindValidation Kind = "validation" // empty input, not authenticated
)

// Error is the typed error surfaced to callers. Message is user-facing.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Auth builds an AuthError.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// AuthStatus builds an AuthError that carries the HTTP status it came from.
func AuthStatus(status int, message string) *Error {
	return &Error{Kind: KindAuth, Message: message, Status: status}
}

// Network wraps a transport failure.
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf("network error: %v", err), Err: err}
}

// Protocol reports an unexpected status or body.
func Protocol(status int, message string) *Error {
	return &Error{Kind: KindProtocol, Message: message, Status: status}
}

// Validation reports bad local input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Is reports whether err (or anything it wraps) is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusOf returns the HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// ErrAuthRequired is returned when an operation needs an authenticated session.
var ErrAuthRequired = Validation("authentication required: please sign in first")
