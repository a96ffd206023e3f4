package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/sony/gobreaker"
)

// Decision is what the retry loop does after an attempt.
type Decision int

const (
	DecisionSuccess Decision = iota
	DecisionRetry
	DecisionTerminal
)

func (d Decision) String() string {
	switch d {
	case DecisionSuccess:
		return "success"
	case DecisionRetry:
		return "retry"
	default:
		return "terminal"
	}
}

// decide maps an attempt outcome to the loop decision. A nil error is success.
func decide(err *Error) Decision {
	if err == nil {
		return DecisionSuccess
	}
	if err.Kind.Retryable() {
		return DecisionRetry
	}
	return DecisionTerminal
}

// classifyStatus maps a non-2xx HTTP status to a Kind.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return KindAuth
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 400 && code < 500:
		return KindClient
	case code >= 500 && code < 600:
		return KindServer
	default:
		return KindUnknown
	}
}

// classifyTransport maps an error from sending the request or reading the
// body to a Kind. Callers must rule out cancellation of the parent context first.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return KindConnection
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return KindConnection
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnection
	}
	return KindUnknown
}

// classifyPayload maps a domain extraction error to a Kind.
func classifyPayload(err error) Kind {
	var missing *domain.MissingFieldError
	switch {
	case errors.As(err, &missing):
		return KindSchema
	case errors.Is(err, domain.ErrMalformedPayload):
		return KindMalformedResponse
	default:
		return KindUnknown
	}
}
