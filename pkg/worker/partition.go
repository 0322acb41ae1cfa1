package worker

import (
	"fmt"

	"github.com/jzx17/jobpool/pkg/types"
)

// Partition splits the index range [0, n) into contiguous chunks
type Partition struct {
	n        int
	count    int
	base     int
	rem      int
	balanced bool
}

// FixedPartition splits n items into ceil(n/batchSize) chunks of batchSize,
// the last one holding the remainder.
func FixedPartition(n, batchSize int) (Partition, error) {
	if n < 0 {
		return Partition{}, fmt.Errorf("item count cannot be negative, got %d", n)
	}
	if batchSize <= 0 {
		return Partition{}, fmt.Errorf("%w: batch size must be positive, got %d", types.ErrInvalidBatchSize, batchSize)
	}
	// n + batchSize - 1 can overflow for huge batch sizes
	count := n / batchSize
	if n%batchSize != 0 {
		count++
	}
	return Partition{
		n:     n,
		count: count,
		base:  batchSize,
	}, nil
}

// BoundedPartition splits n items into chunks sized within
// [minBatch, maxBatch], aiming for one chunk per worker.
//
// The chunk count is workers clamped to [ceil(n/maxBatch), floor(n/minBatch)];
// when both bounds cannot hold, the minimum wins. Chunk sizes differ by at
// most one. If n < minBatch the whole range is a single chunk.
func BoundedPartition(n, workers, minBatch, maxBatch int) (Partition, error) {
	if n < 0 {
		return Partition{}, fmt.Errorf("item count cannot be negative, got %d", n)
	}
	if minBatch <= 0 || maxBatch < minBatch {
		return Partition{}, fmt.Errorf("%w: need 0 < min <= max, got min=%d max=%d",
			types.ErrInvalidBatchSize, minBatch, maxBatch)
	}
	if workers < 1 {
		workers = 1
	}
	if n == 0 {
		return Partition{balanced: true}, nil
	}

	count := 1
	if n >= minBatch {
		lo := n / maxBatch
		if n%maxBatch != 0 {
			lo++
		}
		hi := n / minBatch

		count = workers
		if count < lo {
			count = lo
		}
		if count > hi {
			count = hi
		}
	}

	return Partition{
		n:        n,
		count:    count,
		base:     n / count,
		rem:      n % count,
		balanced: true,
	}, nil
}

// Len returns the number of chunks
func (p Partition) Len() int {
	return p.count
}

// Items returns the total number of items covered
func (p Partition) Items() int {
	return p.n
}

// Chunk returns the bounds [start, end) of chunk i
func (p Partition) Chunk(i int) (start, end int) {
	if !p.balanced {
		start = i * p.base
		end = p.n
		if p.n-start > p.base {
			end = start + p.base
		}
		return start, end
	}

	start = i*p.base + min(i, p.rem)
	end = start + p.base
	if i < p.rem {
		end++
	}
	return start, end
}
