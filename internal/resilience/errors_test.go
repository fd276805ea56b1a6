package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("rate limited"), 429)
	if !IsTransient(err) {
		t.Error("TransientError should be transient")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_Syscall(t *testing.T) {
	if !IsTransient(syscall.ECONNRESET) {
		t.Error("ECONNRESET should be transient")
	}
	if !IsTransient(syscall.ECONNREFUSED) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	transient := []string{
		"read tcp: connection reset by peer",
		"write: broken pipe",
		"dial tcp: i/o timeout",
		"lookup api.example.com: no such host",
	}
	for _, msg := range transient {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("%q should be transient", msg)
		}
	}

	if IsTransient(errors.New("invalid request body")) {
		t.Error("plain error should not be transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewTransientError(inner, 500)
	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the inner error")
	}
}
