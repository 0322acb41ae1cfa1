/*
Package worker provides a fixed-size thread pool with CPU-pinned workers and pooled job storage.

# Overview

This package implements a scheduler for short-lived units of work:
- One worker per hardware thread, each on its own locked OS thread
- Best-effort pinning of worker N to CPU N-1
- A single FIFO queue shared by all workers
- Job records carved from a paged allocator instead of the heap
- Batched parallel iteration over ranges and slices
- Per-job failure containment with a pluggable error sink

# Core Components

## Pool

The scheduler. It owns the workers, the pending queue, the job allocator and
the mutex/condition-variable pair that guards them. Submission allocates a job
slot and enqueues it under the lock, then signals one waiting worker.

## Worker

A loop on a dedicated OS thread:
- Wait on the condition variable until the queue is non-empty or a stop is requested
- Pop the front job under the lock
- Execute it outside the lock, recovering panics
- Return the slot to the allocator

Workers move through created, running, stopping and terminated.

## Batch

ProcessRange, ProcessRangeBounded, ProcessArray and ProcessArrayBounded split
their input into contiguous chunks and submit one job per chunk. The returned
Batch counts chunks down and can be waited on.

# Ordering

Jobs are dequeued in submission order. With more than one worker, completion
order is not guaranteed.

# Shutdown

Shutdown stops workers from taking new jobs, discards whatever is still
queued and joins every worker thread. A job that is already executing runs to
completion; there is no per-job cancellation.

# Usage Examples

Basic usage:

	pool, err := worker.NewPool(worker.DefaultPoolConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := pool.Submit(func() {
		// Execute work
	}); err != nil {
		log.Printf("Failed to submit job: %v", err)
	}

Parallel iteration with a completion handle:

	batch, err := worker.ProcessArrayBounded(pool, particles, 64, 1024, func(i int, p *Particle) {
		p.Integrate(dt)
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := batch.Wait(ctx); err != nil {
		log.Printf("batch failed: %v", err)
	}

# Configuration Options

PoolConfig supports the following configurations:
- Workers: Number of worker threads (defaults to the hardware thread count)
- PageSize: Job slots per allocator page
- MaxPages: Upper bound on allocator pages, 0 for unbounded
- PinWorkers: Whether to bind workers to CPUs
- NameThreads: Whether to name worker threads
- ErrorSink: Destination for failed jobs
- Logger: slog logger for lifecycle records
*/
package worker
