package worker

import (
	"github.com/jzx17/jobpool/pkg/alloc"
)

type jobKind uint8

const (
	jobFunc jobKind = iota + 1
	jobErrFunc
	jobChunk
)

// Job is one pooled unit of deferred work. Jobs live in allocator slots and
// are only reachable from the pending queue or the worker executing them.
type Job struct {
	handle alloc.Handle
	id     uint64
	kind   jobKind

	fn      func()
	errFn   func() error
	chunkFn func(start, end int)
	start   int
	end     int

	batch *Batch
}

// run invokes the job's callable exactly once
func (j *Job) run() error {
	switch j.kind {
	case jobFunc:
		j.fn()
	case jobErrFunc:
		return j.errFn()
	case jobChunk:
		j.chunkFn(j.start, j.end)
	}
	return nil
}
