package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jzx17/jobpool/pkg/types"
)

// Batch is the completion handle for the chunk jobs emitted by one
// ProcessRange or ProcessArray call. It counts down as chunks finish.
type Batch struct {
	chunks    int
	remaining int64 // atomic
	discarded int64 // atomic
	done      chan struct{}

	mu   sync.Mutex
	errs []error
}

func newBatch(chunks int) *Batch {
	b := &Batch{
		chunks:    chunks,
		remaining: int64(chunks),
		done:      make(chan struct{}),
	}
	if chunks == 0 {
		close(b.done)
	}
	return b
}

// finish records the outcome of one chunk
func (b *Batch) finish(err *types.JobError) {
	if err != nil {
		b.mu.Lock()
		b.errs = append(b.errs, err)
		b.mu.Unlock()
	}
	if atomic.AddInt64(&b.remaining, -1) == 0 {
		close(b.done)
	}
}

// discard accounts for a chunk dropped by shutdown before it ran
func (b *Batch) discard() {
	atomic.AddInt64(&b.discarded, 1)
	b.finish(nil)
}

// Chunks returns the number of chunk jobs in the batch
func (b *Batch) Chunks() int {
	return b.chunks
}

// Remaining returns the number of chunks not yet finished
func (b *Batch) Remaining() int {
	return int(atomic.LoadInt64(&b.remaining))
}

// Done returns a channel closed once every chunk has finished or been discarded
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch is done or ctx ends.
// It returns Err once done, ctx.Err() otherwise.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the chunk failures of a finished batch joined together, with
// types.ErrPoolClosed when shutdown discarded chunks. It is nil while chunks
// are still pending.
func (b *Batch) Err() error {
	select {
	case <-b.done:
	default:
		return nil
	}

	b.mu.Lock()
	errs := make([]error, 0, len(b.errs)+1)
	errs = append(errs, b.errs...)
	b.mu.Unlock()

	if n := atomic.LoadInt64(&b.discarded); n > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d chunks discarded", types.ErrPoolClosed, n, b.chunks))
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}
