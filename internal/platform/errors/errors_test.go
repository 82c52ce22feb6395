package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindConfig, "load", "failed to load config",
				errors.New("file not found")),
			contains: []string{"[config:load]", "failed to load config", "file not found"},
		},
		{
			name:     "error without cause",
			err:      New(KindAggregate, "transcription.run", "all 3 units failed"),
			contains: []string{"[aggregate:transcription.run]", "all 3 units failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindBackend, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsExistingKind(t *testing.T) {
	inner := New(KindTransientIO, "stage", "file busy")
	outer := Wrap(KindBackend, "recognize", "failed", fmt.Errorf("unit 2: %w", inner))

	if outer.Kind != KindTransientIO {
		t.Fatalf("expected existing kind to win, got %s", outer.Kind)
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindConfig, "test", "message"),
			kind:     KindConfig,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      Wrap(KindBackend, "test", "message", errors.New("cause")),
			kind:     KindBackend,
			expected: true,
		},
		{
			name:     "fmt wrapped typed error",
			err:      fmt.Errorf("unit 1: %w", New(KindTransientIO, "stage", "locked")),
			kind:     KindTransientIO,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, expected %s", got, KindUnknown)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %s, expected %s", got, KindUnknown)
	}
	if got := KindOf(New(KindAggregate, "op", "msg")); got != KindAggregate {
		t.Errorf("KindOf(aggregate) = %s", got)
	}
}

func TestRetryable(t *testing.T) {
	transient := Wrap(KindTransientIO, "asr.recognize", "timeout", errors.New("deadline"))
	if !Retryable(fmt.Errorf("unit 3: %w", transient)) {
		t.Error("wrapped transient error should be retryable")
	}
	if Retryable(New(KindBackend, "asr.recognize", "bad request")) {
		t.Error("backend error should not be retryable")
	}
	if Retryable(nil) {
		t.Error("nil should not be retryable")
	}
}
