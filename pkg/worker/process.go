package worker

import (
	"github.com/jzx17/jobpool/pkg/types"
)

// ProcessRange splits [0, n) into ceil(n/batchSize) chunks and submits one
// job per chunk. fn receives the chunk bounds [start, end). The call does
// not wait; use the returned Batch for completion.
func (p *Pool) ProcessRange(n, batchSize int, fn func(start, end int)) (*Batch, error) {
	if fn == nil {
		return nil, types.ErrNilJob
	}
	part, err := FixedPartition(n, batchSize)
	if err != nil {
		return nil, err
	}
	return p.submitChunks(part, fn)
}

// ProcessRangeBounded splits [0, n) into at most one chunk per worker, each
// holding between minBatch and maxBatch items (see BoundedPartition).
func (p *Pool) ProcessRangeBounded(n, minBatch, maxBatch int, fn func(start, end int)) (*Batch, error) {
	if fn == nil {
		return nil, types.ErrNilJob
	}
	part, err := BoundedPartition(n, len(p.workers), minBatch, maxBatch)
	if err != nil {
		return nil, err
	}
	return p.submitChunks(part, fn)
}

// ProcessArray calls fn once for every element of items, batchSize elements
// per job. Each element is visited by exactly one job.
func ProcessArray[T any](p *Pool, items []T, batchSize int, fn func(i int, item *T)) (*Batch, error) {
	if fn == nil {
		return nil, types.ErrNilJob
	}
	return p.ProcessRange(len(items), batchSize, arrayChunk(items, fn))
}

// ProcessArrayBounded is ProcessArray with a chunk size chosen within
// [minBatch, maxBatch] so the pool is not over-fragmented.
func ProcessArrayBounded[T any](p *Pool, items []T, minBatch, maxBatch int, fn func(i int, item *T)) (*Batch, error) {
	if fn == nil {
		return nil, types.ErrNilJob
	}
	return p.ProcessRangeBounded(len(items), minBatch, maxBatch, arrayChunk(items, fn))
}

func arrayChunk[T any](items []T, fn func(i int, item *T)) func(start, end int) {
	return func(start, end int) {
		for i := start; i < end; i++ {
			fn(i, &items[i])
		}
	}
}
