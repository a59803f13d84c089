package wazzap

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when the connection is not open.
	ErrNotConnected = errors.New("not connected")
	// ErrNotAuthenticated is returned when an operation needs a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrClientClosed is returned once Close has been called.
	ErrClientClosed = errors.New("client closed")
	// ErrMalformedFrame marks inbound frames that are not JSON or lack a type.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrTimeout matches APIErrors of kind ErrKindTimeout.
	ErrTimeout = errors.New("request timed out")
	// ErrUnreachable matches APIErrors of kind ErrKindUnreachable.
	ErrUnreachable = errors.New("server unreachable")
)

// APIErrorKind classifies a failed REST call.
type APIErrorKind int

const (
	ErrKindServer APIErrorKind = iota
	ErrKindTimeout
	ErrKindUnreachable
)

func (k APIErrorKind) String() string {
	switch k {
	case ErrKindTimeout:
		return "timeout"
	case ErrKindUnreachable:
		return "unreachable"
	default:
		return "server"
	}
}

// APIError represents a failed REST request.
type APIError struct {
	Kind    APIErrorKind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets callers test the kind with errors.Is(err, ErrTimeout).
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == ErrKindTimeout
	case ErrUnreachable:
		return e.Kind == ErrKindUnreachable
	}
	return false
}
