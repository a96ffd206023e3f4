package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why a single fetch attempt failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindNotFound
	KindRateLimited
	KindClient
	KindServer
	KindConnection
	KindTimeout
	KindMalformedResponse
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindClient:
		return "client_error"
	case KindServer:
		return "server_error"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindMalformedResponse:
		return "malformed_response"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServer, KindConnection, KindTimeout:
		return true
	case KindAuth, KindNotFound, KindClient, KindMalformedResponse, KindSchema, KindUnknown:
		return false
	default:
		return false
	}
}

// ErrRetriesExhausted matches (via errors.Is) an *Error returned after every
// attempt failed with a retryable kind.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Error is the classified failure of a city fetch.
type Error struct {
	City       string
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	Attempts   int
	Exhausted  bool
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %q: %s", e.City, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Exhausted {
		msg += fmt.Sprintf(": %s after %d attempts", ErrRetriesExhausted, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrRetriesExhausted && e.Exhausted
}

// KindOf returns the Kind carried by err, or KindUnknown when err is not a
// classified fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
