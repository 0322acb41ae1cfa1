package worker

import (
	"fmt"
	"log/slog"

	"github.com/jzx17/jobpool/pkg/alloc"
	"github.com/jzx17/jobpool/pkg/sink"
	"github.com/jzx17/jobpool/pkg/thread"
	"github.com/jzx17/jobpool/pkg/types"
)

// PoolConfig defines configuration for the thread pool
type PoolConfig struct {
	// Workers is the number of worker threads; 0 uses the hardware thread count
	Workers int

	// PageSize is the number of job slots per allocator page
	PageSize int

	// MaxPages bounds allocator growth; 0 means unbounded
	MaxPages int

	// PinWorkers binds each worker thread to its CPU (best-effort)
	PinWorkers bool

	// NameThreads applies an OS-visible name to each worker thread (best-effort)
	NameThreads bool

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives lifecycle records (optional, defaults to slog.Default())
	Logger *slog.Logger

	// ErrorSink receives failed jobs (optional, defaults to a LogSink on Logger)
	ErrorSink types.ErrorSink
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:     thread.MaxHardwareThreads(),
		PageSize:    alloc.DefaultPageSize,
		PinWorkers:  true,
		NameThreads: true,
		Clock:       types.NewRealClock(),
	}
}

// normalize validates c and returns a copy with defaults filled in.
// hardware is the thread count read once at pool construction.
func (c *PoolConfig) normalize(hardware int) (*PoolConfig, error) {
	if c.Workers < 0 {
		return nil, fmt.Errorf("worker count cannot be negative, got %d", c.Workers)
	}
	if c.PageSize < 0 {
		return nil, fmt.Errorf("page size cannot be negative, got %d", c.PageSize)
	}
	if c.MaxPages < 0 {
		return nil, fmt.Errorf("max pages cannot be negative, got %d", c.MaxPages)
	}

	out := *c
	if out.Workers == 0 {
		out.Workers = hardware
	}
	if out.PageSize == 0 {
		out.PageSize = alloc.DefaultPageSize
	}
	if out.Clock == nil {
		out.Clock = types.NewRealClock()
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.ErrorSink == nil {
		out.ErrorSink = sink.NewLogSink(out.Logger)
	}
	return &out, nil
}
