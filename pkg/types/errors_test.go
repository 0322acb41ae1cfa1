package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrPoolClosed", ErrPoolClosed},
		{"ErrNilJob", ErrNilJob},
		{"ErrInvalidBatchSize", ErrInvalidBatchSize},
		{"ErrAllocatorExhausted", ErrAllocatorExhausted},
		{"ErrForeignHandle", ErrForeignHandle},
		{"ErrStaleHandle", ErrStaleHandle},
		{"ErrUnsupported", ErrUnsupported},
		{"ErrNotCurrentThread", ErrNotCurrentThread},
		{"ErrThreadStarted", ErrThreadStarted},
		{"ErrShutdownFromJob", ErrShutdownFromJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error, got nil")
			}
			if tt.err.Error() == "" {
				t.Errorf("expected non-empty error message")
			}
		})
	}
}

func TestJobError(t *testing.T) {
	t.Run("Error Message", func(t *testing.T) {
		originalErr := errors.New("original error")
		jobErr := NewJobError("execute", 12, 3, originalErr)

		expectedMsg := "job 12 failed in execute on worker 3: original error"
		if jobErr.Error() != expectedMsg {
			t.Errorf("expected message %q, got %q", expectedMsg, jobErr.Error())
		}

		unassigned := NewJobError("submit", 5, 0, originalErr)
		expectedMsg = "job 5 failed in submit: original error"
		if unassigned.Error() != expectedMsg {
			t.Errorf("expected message %q, got %q", expectedMsg, unassigned.Error())
		}
	})

	t.Run("Unwrap And Is", func(t *testing.T) {
		wrapped := fmt.Errorf("allocating: %w", ErrAllocatorExhausted)
		jobErr := NewJobError("execute", 1, 1, wrapped)

		if !errors.Is(jobErr, ErrAllocatorExhausted) {
			t.Error("expected errors.Is to find the wrapped sentinel")
		}
		if errors.Is(jobErr, ErrPoolClosed) {
			t.Error("expected errors.Is to reject an unrelated sentinel")
		}
		if errors.Unwrap(jobErr) != wrapped {
			t.Error("expected Unwrap to return the cause")
		}

		var target *JobError
		outer := fmt.Errorf("batch: %w", jobErr)
		if !errors.As(outer, &target) || target != jobErr {
			t.Error("expected errors.As to recover the job error")
		}
	})

	t.Run("With Context", func(t *testing.T) {
		jobErr := NewJobError("execute", 1, 2, errors.New("x")).
			WithContext("cpu", 4).
			WithContext("stack_trace", "goroutine 1")

		if jobErr.Context["cpu"] != 4 {
			t.Errorf("expected cpu 4, got %v", jobErr.Context["cpu"])
		}
		if jobErr.Context["stack_trace"] != "goroutine 1" {
			t.Errorf("unexpected stack trace %v", jobErr.Context["stack_trace"])
		}

		bare := &JobError{Operation: "execute"}
		bare.WithContext("key", "value")
		if bare.Context["key"] != "value" {
			t.Error("expected WithContext to initialise a nil map")
		}
	})
}

func TestPanicError(t *testing.T) {
	t.Run("String Value", func(t *testing.T) {
		jobErr := NewJobError("execute", 1, 1, &PanicError{Value: "boom"})

		if !IsPanic(jobErr) {
			t.Error("expected IsPanic to detect the panic")
		}
		if !strings.Contains(jobErr.Error(), "panic: boom") {
			t.Errorf("unexpected message %q", jobErr.Error())
		}
		if errors.Unwrap(&PanicError{Value: "boom"}) != nil {
			t.Error("expected no unwrap target for a non-error panic value")
		}
	})

	t.Run("Error Value", func(t *testing.T) {
		inner := errors.New("inner")
		jobErr := NewJobError("execute", 1, 1, &PanicError{Value: inner})

		if !errors.Is(jobErr, inner) {
			t.Error("expected the panic value to be reachable with errors.Is")
		}
	})

	t.Run("Not A Panic", func(t *testing.T) {
		if IsPanic(errors.New("plain")) {
			t.Error("expected IsPanic to be false for a plain error")
		}
		if IsPanic(nil) {
			t.Error("expected IsPanic to be false for nil")
		}
	})
}
