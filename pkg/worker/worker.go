package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/jzx17/jobpool/pkg/thread"
	"github.com/jzx17/jobpool/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateCreated represents a worker whose thread has not started
	WorkerStateCreated WorkerState = iota
	// WorkerStateRunning represents a worker draining the queue
	WorkerStateRunning
	// WorkerStateStopping represents a worker told to stop but not yet joined
	WorkerStateStopping
	// WorkerStateTerminated represents a worker whose thread has been joined
	WorkerStateTerminated
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateCreated:
		return "created"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStopping:
		return "stopping"
	case WorkerStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Worker is one OS thread bound to one CPU, draining the pool's queue
type Worker struct {
	id     int
	cpu    int
	pool   *Pool
	thread *thread.Thread

	state   int32 // atomic WorkerState
	working int32 // atomic, 1 while executing a job
	pinned  int32 // atomic, 1 once affinity was applied

	// guarded by pool.mu
	stop bool

	// statistics
	totalProcessed int64
	totalFailed    int64
	busyNanos      int64
	lastJobTime    int64 // Unix nanosecond timestamp
}

func newWorker(id, cpu int, pool *Pool) *Worker {
	return &Worker{
		id:     id,
		cpu:    cpu,
		pool:   pool,
		thread: thread.New(),
		state:  int32(WorkerStateCreated),
	}
}

// ID returns the worker id (1-based)
func (w *Worker) ID() int {
	return w.id
}

// CPU returns the CPU index the worker is assigned to
func (w *Worker) CPU() int {
	return w.cpu
}

// State returns the current worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// start launches the worker thread and its run loop
func (w *Worker) start() error {
	atomic.StoreInt32(&w.state, int32(WorkerStateRunning))
	if err := w.thread.Start(w.main); err != nil {
		return fmt.Errorf("start worker %d: %w", w.id, err)
	}
	return nil
}

func (w *Worker) main() {
	p := w.pool

	if p.config.PinWorkers {
		if err := w.thread.SetAffinity(w.cpu); err != nil {
			p.logger.Warn("worker affinity failed, running unpinned",
				"worker_id", w.id, "cpu", w.cpu, "error", err)
		} else {
			atomic.StoreInt32(&w.pinned, 1)
		}
	}
	if p.config.NameThreads {
		if err := w.thread.SetName(fmt.Sprintf("jobpool-w%d", w.id)); err != nil {
			p.logger.Debug("worker naming failed", "worker_id", w.id, "error", err)
		}
	}

	cpu, _ := thread.CurrentCPUIndex()
	p.logger.Debug("worker running", "worker_id", w.id, "cpu", cpu, "tid", int64(w.thread.ID()))

	for {
		job := p.nextJob(w)
		if job == nil {
			break
		}
		w.processJob(job)
	}

	p.logger.Debug("worker terminated", "worker_id", w.id, "cpu", w.cpu)
}

// processJob executes a dequeued job and hands its slot back
func (w *Worker) processJob(job *Job) {
	atomic.StoreInt32(&w.working, 1)
	defer atomic.StoreInt32(&w.working, 0)

	clock := w.pool.clock
	startTime := clock.Now()
	atomic.StoreInt64(&w.lastJobTime, startTime.UnixNano())

	batch := job.batch
	err := w.executeJob(job)

	atomic.AddInt64(&w.busyNanos, int64(clock.Since(startTime)))

	// the slot is zeroed by release, nothing reads job past this point
	w.pool.release(job)

	if err != nil {
		atomic.AddInt64(&w.totalFailed, 1)
		w.pool.reportFailure(err)
	} else {
		atomic.AddInt64(&w.totalProcessed, 1)
		atomic.AddInt64(&w.pool.completed, 1)
	}

	if batch != nil {
		batch.finish(err)
	}
}

// executeJob runs a job with panic recovery
func (w *Worker) executeJob(job *Job) (jobErr *types.JobError) {
	defer func() {
		if r := recover(); r != nil {
			// record panic information
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			jobErr = types.NewJobError("execute", job.id, w.id, &types.PanicError{Value: r}).
				WithContext("stack_trace", string(buf[:n])).
				WithContext("cpu", w.cpu)
		}
	}()

	if err := job.run(); err != nil {
		return types.NewJobError("execute", job.id, w.id, err).WithContext("cpu", w.cpu)
	}
	return nil
}

// requestStop marks the worker stopping; the caller holds pool.mu
func (w *Worker) requestStop() {
	w.stop = true
	atomic.CompareAndSwapInt32(&w.state, int32(WorkerStateRunning), int32(WorkerStateStopping))
}

// join waits for the worker thread to exit
func (w *Worker) join(ctx context.Context) error {
	if err := w.thread.JoinContext(ctx); err != nil {
		return err
	}
	atomic.StoreInt32(&w.state, int32(WorkerStateTerminated))
	return nil
}

// Stats gets worker statistics
func (w *Worker) Stats() WorkerStats {
	var last time.Time
	if ns := atomic.LoadInt64(&w.lastJobTime); ns != 0 {
		last = time.Unix(0, ns)
	}
	return WorkerStats{
		ID:             w.id,
		CPU:            w.cpu,
		ThreadID:       w.thread.ID(),
		State:          w.State(),
		Working:        atomic.LoadInt32(&w.working) == 1,
		Pinned:         atomic.LoadInt32(&w.pinned) == 1,
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalFailed:    atomic.LoadInt64(&w.totalFailed),
		BusyTime:       time.Duration(atomic.LoadInt64(&w.busyNanos)),
		LastJobTime:    last,
	}
}

// WorkerStats defines worker statistics
type WorkerStats struct {
	ID             int
	CPU            int
	ThreadID       thread.ID
	State          WorkerState
	Working        bool
	Pinned         bool
	TotalProcessed int64
	TotalFailed    int64
	BusyTime       time.Duration
	LastJobTime    time.Time
}

// GetSuccessRate gets the success rate
func (ws WorkerStats) GetSuccessRate() float64 {
	total := ws.TotalProcessed + ws.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(ws.TotalProcessed) / float64(total)
}

// GetErrorRate gets the error rate
func (ws WorkerStats) GetErrorRate() float64 {
	total := ws.TotalProcessed + ws.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(ws.TotalFailed) / float64(total)
}
