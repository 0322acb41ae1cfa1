// Package sink provides error sinks for failed pool jobs
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jzx17/jobpool/pkg/types"
)

// LogSink writes job failures to a structured logger
type LogSink struct {
	logger *slog.Logger
	stacks bool
}

// NewLogSink creates a sink that logs at error level.
// A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// WithStacks makes the sink include recovered panic stacks in its records
func (s *LogSink) WithStacks() *LogSink {
	return &LogSink{logger: s.logger, stacks: true}
}

// HandleJobError implements types.ErrorSink
func (s *LogSink) HandleJobError(ctx context.Context, err *types.JobError) {
	attrs := []slog.Attr{
		slog.Uint64("job_id", err.JobID),
		slog.Int("worker_id", err.WorkerID),
		slog.String("operation", err.Operation),
		slog.Any("error", err.Cause),
	}
	if cpu, ok := err.Context["cpu"]; ok {
		attrs = append(attrs, slog.Any("cpu", cpu))
	}
	if s.stacks {
		if stack, ok := err.Context["stack_trace"].(string); ok {
			attrs = append(attrs, slog.String("stack", stack))
		}
	}
	s.logger.LogAttrs(ctx, slog.LevelError, "job failed", attrs...)
}

// CollectSink keeps the most recent failures in memory
type CollectSink struct {
	mu       sync.Mutex
	limit    int
	total    int64
	failures []*types.JobError
}

// NewCollectSink creates a sink retaining at most limit failures.
// A non-positive limit keeps everything.
func NewCollectSink(limit int) *CollectSink {
	return &CollectSink{limit: limit}
}

// HandleJobError implements types.ErrorSink
func (s *CollectSink) HandleJobError(ctx context.Context, err *types.JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.failures = append(s.failures, err)
	if s.limit > 0 && len(s.failures) > s.limit {
		s.failures = s.failures[len(s.failures)-s.limit:]
	}
}

// Failures returns a copy of the retained failures, oldest first
func (s *CollectSink) Failures() []*types.JobError {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.JobError, len(s.failures))
	copy(out, s.failures)
	return out
}

// Total returns the number of failures ever reported
func (s *CollectSink) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Reset drops retained failures and the total
func (s *CollectSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = nil
	s.total = 0
}

// Func adapts a function to types.ErrorSink
type Func func(ctx context.Context, err *types.JobError)

// HandleJobError implements types.ErrorSink
func (f Func) HandleJobError(ctx context.Context, err *types.JobError) {
	f(ctx, err)
}

// Multi fans a failure out to several sinks in order.
// A panicking sink does not prevent the remaining sinks from running.
type Multi []types.ErrorSink

// HandleJobError implements types.ErrorSink
func (m Multi) HandleJobError(ctx context.Context, err *types.JobError) {
	for _, s := range m {
		if s == nil {
			continue
		}
		Safe(ctx, s, err)
	}
}

// Safe delivers err to s, converting a panic inside the sink into an error
// return instead of unwinding the caller.
func Safe(ctx context.Context, s types.ErrorSink, err *types.JobError) (sinkErr error) {
	defer func() {
		if r := recover(); r != nil {
			sinkErr = fmt.Errorf("error sink panicked: %v", r)
		}
	}()
	s.HandleJobError(ctx, err)
	return nil
}

type discard struct{}

func (discard) HandleJobError(context.Context, *types.JobError) {}

// Discard ignores every failure
var Discard types.ErrorSink = discard{}
