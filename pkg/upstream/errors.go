package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies the outcome of a failed upstream call.
type Kind string

const (
	// KindNetwork covers connection refused, DNS failures and resets.
	KindNetwork Kind = "network"

	// KindTimeout is returned when the per-call deadline expires.
	KindTimeout Kind = "timeout"

	// KindMalformed means the upstream body was not the JSON we expected.
	KindMalformed Kind = "malformed"

	// KindUpstreamStatus means upstream answered with an unexpected status.
	KindUpstreamStatus Kind = "upstream_status"
)

// Error is returned for every failed upstream call.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("upstream %s error", e.Kind)
	if e.StatusCode != 0 {
		prefix = fmt.Sprintf("%s (status %d)", prefix, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	return ""
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var upErr *Error
	return errors.As(err, &upErr) &&
		upErr.Kind == KindUpstreamStatus &&
		upErr.StatusCode == http.StatusNotFound
}

// classifyTransport turns an error from http.Client.Do or a body read into
// a timeout or network error.
func classifyTransport(err error, message string) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func statusError(status int) *Error {
	text := http.StatusText(status)
	if text == "" {
		text = "unexpected status"
	}
	return &Error{Kind: KindUpstreamStatus, StatusCode: status, Message: text}
}
