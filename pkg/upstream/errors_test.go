package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "status error",
			err:      &Error{Kind: KindUpstreamStatus, StatusCode: 503, Message: "Service Unavailable"},
			expected: "upstream upstream_status error (status 503): Service Unavailable",
		},
		{
			name:     "wrapped transport error",
			err:      &Error{Kind: KindNetwork, Message: "request failed", Err: io.EOF},
			expected: "upstream network error: request failed: EOF",
		},
		{
			name:     "malformed with status",
			err:      &Error{Kind: KindMalformed, StatusCode: 200, Message: "invalid JSON response"},
			expected: "upstream malformed error (status 200): invalid JSON response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Kind: KindTimeout, Message: "request failed", Err: context.DeadlineExceeded}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should see the wrapped deadline error")
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch 12: %w", &Error{Kind: KindMalformed})

	if got := KindOf(wrapped); got != KindMalformed {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindMalformed)
	}
	if got := KindOf(io.EOF); got != "" {
		t.Errorf("KindOf(io.EOF) = %q, want empty", got)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"404", statusError(http.StatusNotFound), true},
		{"wrapped 404", fmt.Errorf("lookup: %w", statusError(http.StatusNotFound)), true},
		{"500", statusError(http.StatusInternalServerError), false},
		{"network", &Error{Kind: KindNetwork, StatusCode: 404}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	if got := classifyTransport(fmt.Errorf("get: %w", context.DeadlineExceeded), "x").Kind; got != KindTimeout {
		t.Errorf("deadline exceeded classified as %q, want %q", got, KindTimeout)
	}
	if got := classifyTransport(io.ErrUnexpectedEOF, "x").Kind; got != KindNetwork {
		t.Errorf("unexpected EOF classified as %q, want %q", got, KindNetwork)
	}
}

func TestStatusError_UnknownStatus(t *testing.T) {
	err := statusError(599)
	if err.Message != "unexpected status" {
		t.Errorf("Message = %q, want %q", err.Message, "unexpected status")
	}
}
