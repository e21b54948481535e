package searxng

import (
	"errors"
	"fmt"
)

// Kind classifies a search failure for retry and breaker decisions.
type Kind int

const (
	KindConnection Kind = iota
	KindTimeout
	KindRateLimit
	KindInvalidQuery
	KindServer
	KindParsing
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidQuery:
		return "invalid_query"
	case KindServer:
		return "server"
	case KindParsing:
		return "parsing"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a typed search transport failure. Connection, timeout, rate-limit
// and server failures are retryable; invalid-query, parsing and
// configuration failures are not.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("searxng %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("searxng %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConnection, KindTimeout, KindRateLimit, KindServer:
		return true
	default:
		return false
	}
}

// NewError builds a typed transport error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from err, or -1 if err is not a transport error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Kind(-1)
}
