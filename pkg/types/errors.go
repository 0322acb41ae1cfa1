// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrPoolClosed indicates the pool has been shut down
	ErrPoolClosed = errors.New("thread pool is closed")

	// ErrNilJob indicates a nil callable was submitted
	ErrNilJob = errors.New("job function cannot be nil")

	// ErrInvalidBatchSize indicates a non-positive or inverted batch bound
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrAllocatorExhausted indicates the job allocator cannot add another page
	ErrAllocatorExhausted = errors.New("job allocator exhausted")

	// ErrForeignHandle indicates a handle that was not issued by this allocator
	ErrForeignHandle = errors.New("handle not owned by allocator")

	// ErrStaleHandle indicates a handle whose slot was already released
	ErrStaleHandle = errors.New("handle already released")

	// ErrUnsupported indicates a thread capability the platform does not offer
	ErrUnsupported = errors.New("operation not supported on this platform")

	// ErrNotCurrentThread indicates a thread-local operation invoked from another thread
	ErrNotCurrentThread = errors.New("operation must run on the target thread")

	// ErrThreadStarted indicates Start was called on a thread that already ran
	ErrThreadStarted = errors.New("thread already started")

	// ErrShutdownFromJob indicates a job tried to shut down its own pool
	ErrShutdownFromJob = errors.New("pool cannot be shut down from one of its jobs")
)

// JobError represents a failure raised while executing a job
type JobError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// JobID identifies the failed job within its pool
	JobID uint64

	// WorkerID is the worker that executed the job (0 if not executed)
	WorkerID int

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *JobError) Error() string {
	if e.WorkerID > 0 {
		return fmt.Sprintf("job %d failed in %s on worker %d: %v", e.JobID, e.Operation, e.WorkerID, e.Cause)
	}
	return fmt.Sprintf("job %d failed in %s: %v", e.JobID, e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e *JobError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *JobError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewJobError creates a new job error
func NewJobError(operation string, jobID uint64, workerID int, cause error) *JobError {
	return &JobError{
		Operation: operation,
		JobID:     jobID,
		WorkerID:  workerID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *JobError) WithContext(key string, value interface{}) *JobError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// PanicError wraps a value recovered from a panicking job
type PanicError struct {
	// Value is the recovered panic value
	Value interface{}
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic reports whether err originated from a recovered panic
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
