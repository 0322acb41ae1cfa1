package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/jzx17/jobpool/pkg/alloc"
	"github.com/jzx17/jobpool/pkg/sink"
	"github.com/jzx17/jobpool/pkg/thread"
	"github.com/jzx17/jobpool/pkg/types"
)

var _ types.Scheduler = (*Pool)(nil)

// Pool is a fixed set of CPU-bound worker threads draining one FIFO queue.
// Job records come from a paged allocator, so steady-state submission does
// not allocate a job on the heap.
type Pool struct {
	config *PoolConfig
	logger *slog.Logger
	clock  types.Clock
	sink   types.ErrorSink

	workers  []*Worker
	hardware int

	// mu guards the queue, the allocator, closed, nextJobID and every worker's stop flag
	mu        sync.Mutex
	cond      *sync.Cond
	pending   *queue.Queue
	jobs      *alloc.Allocator[Job]
	closed    bool
	nextJobID uint64

	// statistics
	submitted int64
	completed int64
	failed    int64
	discarded int64

	stopLogOnce sync.Once
}

// NewPool creates a pool and starts its workers.
// A nil config uses DefaultPoolConfig.
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	// read once, never re-queried
	hardware := thread.MaxHardwareThreads()
	cpus := workerCPUs(hardware)

	cfg, err := config.normalize(hardware)
	if err != nil {
		return nil, err
	}

	jobs, err := alloc.New[Job](cfg.PageSize, cfg.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("create job allocator: %w", err)
	}

	p := &Pool{
		config:   cfg,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		sink:     cfg.ErrorSink,
		hardware: hardware,
		pending:  queue.New(),
		jobs:     jobs,
	}
	p.cond = sync.NewCond(&p.mu)

	p.workers = make([]*Worker, cfg.Workers)
	for i := range p.workers {
		p.workers[i] = newWorker(i+1, cpus[i%len(cpus)], p)
	}

	for _, w := range p.workers {
		if err := w.start(); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	p.logger.Info("thread pool started",
		"workers", cfg.Workers,
		"hardware_threads", hardware,
		"page_size", cfg.PageSize,
		"pinned", cfg.PinWorkers)

	return p, nil
}

// workerCPUs lists the CPUs workers are assigned to in order. Under a
// restricted affinity mask these are the allowed CPUs, not 0..hardware-1.
func workerCPUs(hardware int) []int {
	if cpus, err := thread.AllowedCPUs(); err == nil && len(cpus) > 0 {
		return cpus
	}
	cpus := make([]int, hardware)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}

// Submit enqueues fn for execution by one worker
func (p *Pool) Submit(fn func()) error {
	if fn == nil {
		return types.ErrNilJob
	}

	p.mu.Lock()
	job, err := p.allocJobLocked()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	job.kind = jobFunc
	job.fn = fn
	p.pending.Add(job)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// SubmitErr enqueues fn; a non-nil return is reported to the error sink
func (p *Pool) SubmitErr(fn func() error) error {
	if fn == nil {
		return types.ErrNilJob
	}

	p.mu.Lock()
	job, err := p.allocJobLocked()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	job.kind = jobErrFunc
	job.errFn = fn
	p.pending.Add(job)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// submitChunks enqueues one job per chunk of part inside a single critical
// section, so other submitters never interleave with the batch.
func (p *Pool) submitChunks(part Partition, fn func(start, end int)) (*Batch, error) {
	count := part.Len()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.ErrPoolClosed
	}
	if count == 0 {
		p.mu.Unlock()
		return newBatch(0), nil
	}
	if avail := p.jobs.Available(); avail < count {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: batch of %d chunks, %d slots available",
			types.ErrAllocatorExhausted, count, avail)
	}

	batch := newBatch(count)
	for i := 0; i < count; i++ {
		job, err := p.allocJobLocked()
		if err != nil {
			// unreachable after the capacity check
			p.mu.Unlock()
			return nil, err
		}
		job.kind = jobChunk
		job.chunkFn = fn
		job.start, job.end = part.Chunk(i)
		job.batch = batch
		p.pending.Add(job)
	}
	p.mu.Unlock()

	if count == 1 {
		p.cond.Signal()
	} else {
		p.cond.Broadcast()
	}
	return batch, nil
}

// allocJobLocked takes a zeroed job slot; the caller holds p.mu
func (p *Pool) allocJobLocked() (*Job, error) {
	if p.closed {
		return nil, types.ErrPoolClosed
	}

	h, job, err := p.jobs.Allocate()
	if err != nil {
		return nil, err
	}

	p.nextJobID++
	job.handle = h
	job.id = p.nextJobID
	atomic.AddInt64(&p.submitted, 1)
	return job, nil
}

// nextJob blocks until a job is available or w is told to stop.
// It returns nil once w must exit, even if jobs remain queued.
func (p *Pool) nextJob(w *Worker) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !w.stop && p.pending.Length() == 0 {
		p.cond.Wait()
	}
	if w.stop {
		return nil
	}
	return p.pending.Remove().(*Job)
}

// release returns a job slot to the allocator
func (p *Pool) release(job *Job) {
	p.mu.Lock()
	err := p.jobs.Free(job.handle)
	p.mu.Unlock()

	if err != nil {
		// a job reachable by a worker must be live; anything else is a pool bug
		p.logger.Error("job release failed", "job_id", job.id, "error", err)
	}
}

// reportFailure hands a failed job to the error sink
func (p *Pool) reportFailure(err *types.JobError) {
	atomic.AddInt64(&p.failed, 1)
	if sinkErr := sink.Safe(context.Background(), p.sink, err); sinkErr != nil {
		p.logger.Error("error sink failed", "job_id", err.JobID, "error", sinkErr)
	}
}

// discardPendingLocked drops every queued job; the caller holds p.mu
func (p *Pool) discardPendingLocked() int {
	n := 0
	for p.pending.Length() > 0 {
		job := p.pending.Remove().(*Job)
		batch := job.batch
		if err := p.jobs.Free(job.handle); err != nil {
			p.logger.Error("job release failed", "job_id", job.id, "error", err)
		}
		if batch != nil {
			batch.discard()
		}
		n++
	}
	atomic.AddInt64(&p.discarded, int64(n))
	return n
}

// Shutdown stops every worker and waits for them to exit. Jobs already
// executing run to completion; jobs still queued are discarded. Calling
// Shutdown again waits for the same workers.
//
// A job must not shut down its own pool: the worker would wait for itself.
// Where thread ids are available this returns types.ErrShutdownFromJob and
// leaves the pool running.
func (p *Pool) Shutdown(ctx context.Context) error {
	if w := p.currentWorker(); w != nil {
		return fmt.Errorf("worker %d: %w", w.id, types.ErrShutdownFromJob)
	}

	p.mu.Lock()
	first := !p.closed
	if first {
		p.closed = true
		for _, w := range p.workers {
			w.requestStop()
		}
		if n := p.discardPendingLocked(); n > 0 {
			p.logger.Warn("discarded queued jobs at shutdown", "jobs", n)
		}
	}
	p.mu.Unlock()

	if first {
		p.cond.Broadcast()
	}

	for _, w := range p.workers {
		if err := w.join(ctx); err != nil {
			return fmt.Errorf("waiting for worker %d: %w", w.id, err)
		}
	}

	p.stopLogOnce.Do(func() {
		p.logger.Info("thread pool stopped",
			"completed", atomic.LoadInt64(&p.completed),
			"failed", atomic.LoadInt64(&p.failed),
			"discarded", atomic.LoadInt64(&p.discarded))
	})
	return nil
}

// currentWorker returns the worker whose thread is the caller, if any.
// Worker goroutines stay locked to their thread, so a matching id can only
// come from that worker.
func (p *Pool) currentWorker() *Worker {
	tid := thread.CurrentID()
	if tid == 0 {
		return nil
	}
	for _, w := range p.workers {
		if w.thread.IsRunning() && w.thread.ID() == tid {
			return w
		}
	}
	return nil
}

// Close shuts the pool down without a deadline
func (p *Pool) Close() error {
	return p.Shutdown(context.Background())
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// HardwareThreads returns the hardware thread count read at construction
func (p *Pool) HardwareThreads() int {
	return p.hardware
}

// IsClosed checks if the pool has been shut down
func (p *Pool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// QueueLength gets the number of jobs waiting to be dequeued
func (p *Pool) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Length()
}

// Stats gets pool statistics
func (p *Pool) Stats() types.PoolStats {
	p.mu.Lock()
	queueLen := p.pending.Length()
	allocStats := p.jobs.Stats()
	p.mu.Unlock()

	var active, pinned int
	var busy int64
	for _, w := range p.workers {
		if atomic.LoadInt32(&w.working) == 1 {
			active++
		}
		if atomic.LoadInt32(&w.pinned) == 1 {
			pinned++
		}
		busy += atomic.LoadInt64(&w.busyNanos)
	}

	completed := atomic.LoadInt64(&p.completed)
	failed := atomic.LoadInt64(&p.failed)

	var avg time.Duration
	if done := completed + failed; done > 0 {
		avg = time.Duration(busy / done)
	}

	return types.PoolStats{
		PoolSize:             len(p.workers),
		ActiveWorkers:        active,
		PinnedWorkers:        pinned,
		QueueLength:          queueLen,
		Submitted:            atomic.LoadInt64(&p.submitted),
		Completed:            completed,
		Failed:               failed,
		Discarded:            atomic.LoadInt64(&p.discarded),
		Allocator:            allocStats,
		AverageExecutionTime: avg,
	}
}

// GetWorkerStats gets statistics of all workers
func (p *Pool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}
