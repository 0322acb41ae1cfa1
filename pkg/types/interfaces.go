// Package types defines core interfaces and types shared by the jobpool packages
package types

import (
	"context"
	"time"
)

// Scheduler defines the job submission interface of a thread pool
type Scheduler interface {
	// Submit enqueues a fire-and-forget job
	Submit(fn func()) error

	// SubmitErr enqueues a job whose returned error is reported to the error sink
	SubmitErr(fn func() error) error

	// Shutdown stops the workers and waits for in-flight jobs
	Shutdown(ctx context.Context) error

	// Close shuts down and waits without a deadline
	Close() error

	// Size returns the number of workers
	Size() int

	// Stats returns pool statistics
	Stats() PoolStats
}

// ErrorSink receives failures of executed jobs
type ErrorSink interface {
	// HandleJobError is called once per failed job, on the worker thread that ran it
	HandleJobError(ctx context.Context, err *JobError)
}

// AllocatorStats describes the state of a pooled block allocator
type AllocatorStats struct {
	// Pages is the number of pages carved so far
	Pages int

	// PageSize is the number of slots per page
	PageSize int

	// Capacity is Pages * PageSize
	Capacity int

	// Live is the number of slots currently handed out
	Live int

	// TotalAllocs counts successful allocations
	TotalAllocs uint64

	// TotalFrees counts successful releases
	TotalFrees uint64
}

// PoolStats defines statistics for a thread pool
type PoolStats struct {
	// PoolSize is the number of workers
	PoolSize int

	// ActiveWorkers is the number of workers currently executing a job
	ActiveWorkers int

	// PinnedWorkers is the number of workers bound to their CPU
	PinnedWorkers int

	// QueueLength is the number of jobs waiting to be dequeued
	QueueLength int

	// Submitted counts accepted jobs
	Submitted int64

	// Completed counts jobs that ran without error
	Completed int64

	// Failed counts jobs that returned an error or panicked
	Failed int64

	// Discarded counts queued jobs dropped by shutdown
	Discarded int64

	// Allocator reports the job allocator state
	Allocator AllocatorStats

	// AverageExecutionTime is the mean job duration across all workers
	AverageExecutionTime time.Duration
}
