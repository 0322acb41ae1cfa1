package worker

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/jobpool/internal/testutils"
	"github.com/jzx17/jobpool/pkg/sink"
	"github.com/jzx17/jobpool/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitBatch(t *testing.T, b *Batch) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := b.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "batch did not finish")
	return err
}

type chunkRecorder struct {
	mu     sync.Mutex
	chunks [][2]int
}

func (r *chunkRecorder) record(start, end int) {
	r.mu.Lock()
	r.chunks = append(r.chunks, [2]int{start, end})
	r.mu.Unlock()
}

func (r *chunkRecorder) sorted() [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([][2]int(nil), r.chunks...)
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func TestProcessArray_VisitsEveryElementOnce(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		batchSize int
		workers   int
	}{
		{name: "even split", n: 1000, batchSize: 100, workers: 4},
		{name: "uneven split", n: 1003, batchSize: 64, workers: 3},
		{name: "one big batch", n: 50, batchSize: 1000, workers: 2},
		{name: "single item batches", n: 200, batchSize: 1, workers: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newTestPool(t, &PoolConfig{Workers: tt.workers, PageSize: 32})

			items := make([]int, tt.n)
			visits := make([]int32, tt.n)
			batch, err := ProcessArray(pool, items, tt.batchSize, func(i int, item *int) {
				atomic.AddInt32(&visits[i], 1)
				*item = i * 2
			})
			require.NoError(t, err)
			require.NoError(t, waitBatch(t, batch))

			assert.Equal(t, (tt.n+tt.batchSize-1)/tt.batchSize, batch.Chunks())
			assert.Equal(t, 0, batch.Remaining())
			for i := range items {
				assert.Equal(t, int32(1), visits[i], "element %d", i)
				assert.Equal(t, i*2, items[i])
			}
		})
	}
}

func TestProcessArray_HugeBatchSize(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 2})

	items := make([]int, 10)
	batch, err := ProcessArray(pool, items, math.MaxInt, func(_ int, item *int) { *item = 1 })
	require.NoError(t, err)
	require.NoError(t, waitBatch(t, batch))

	assert.Equal(t, 1, batch.Chunks())
	for i, v := range items {
		assert.Equal(t, 1, v, "element %d", i)
	}
}

func TestProcessRange_ChunkBounds(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 3})

	var rec chunkRecorder
	batch, err := pool.ProcessRange(10, 4, rec.record)
	require.NoError(t, err)
	require.NoError(t, waitBatch(t, batch))

	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, rec.sorted())
}

func TestProcessArrayBounded(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 4})

	items := make([]float64, 1000)
	for i := range items {
		items[i] = float64(i)
	}

	var chunks int32
	var mu sync.Mutex
	sizes := map[int]int{}
	batch, err := ProcessArrayBounded(pool, items, 10, 500, func(i int, item *float64) {
		*item *= 2
	})
	require.NoError(t, err)
	require.NoError(t, waitBatch(t, batch))
	assert.LessOrEqual(t, batch.Chunks(), pool.Size())
	for i, v := range items {
		assert.Equal(t, float64(2*i), v)
	}

	// chunk sizes via the range form
	rb, err := pool.ProcessRangeBounded(1000, 10, 500, func(start, end int) {
		atomic.AddInt32(&chunks, 1)
		mu.Lock()
		sizes[end-start]++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, waitBatch(t, rb))
	assert.Equal(t, int32(4), atomic.LoadInt32(&chunks))
	assert.Equal(t, map[int]int{250: 4}, sizes)
}

func TestProcessArrayBounded_SmallInputIsOneChunk(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 4})

	items := []string{"a", "b", "c"}
	var rec chunkRecorder
	batch, err := pool.ProcessRangeBounded(len(items), 10, 100, rec.record)
	require.NoError(t, err)
	require.NoError(t, waitBatch(t, batch))

	assert.Equal(t, 1, batch.Chunks())
	assert.Equal(t, [][2]int{{0, 3}}, rec.sorted())
}

func TestProcessArray_Empty(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 2})

	batch, err := ProcessArray(pool, []int{}, 8, func(int, *int) {
		t.Error("callback must not run for an empty input")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Chunks())
	assert.NoError(t, waitBatch(t, batch))
	assert.Equal(t, int64(0), pool.Stats().Submitted)
}

func TestProcessArray_InvalidArguments(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 1})
	items := make([]int, 10)

	_, err := ProcessArray(pool, items, 0, func(int, *int) {})
	assert.ErrorIs(t, err, types.ErrInvalidBatchSize)

	_, err = ProcessArray[int](pool, items, 4, nil)
	assert.ErrorIs(t, err, types.ErrNilJob)

	_, err = ProcessArrayBounded(pool, items, 5, 2, func(int, *int) {})
	assert.ErrorIs(t, err, types.ErrInvalidBatchSize)

	_, err = pool.ProcessRange(10, 2, nil)
	assert.ErrorIs(t, err, types.ErrNilJob)

	assert.Equal(t, int64(0), pool.Stats().Submitted)
}

func TestProcessArray_ChunkFailureIsReported(t *testing.T) {
	collected := sink.NewCollectSink(0)
	pool := newTestPool(t, &PoolConfig{Workers: 2, ErrorSink: collected})

	items := make([]int, 100)
	var visited int32
	batch, err := ProcessArray(pool, items, 10, func(i int, _ *int) {
		if i == 42 {
			panic("bad element")
		}
		atomic.AddInt32(&visited, 1)
	})
	require.NoError(t, err)

	err = waitBatch(t, batch)
	require.Error(t, err)
	assert.True(t, types.IsPanic(err))
	assert.Contains(t, err.Error(), "bad element")

	// the panicking chunk stops at element 42; the other nine chunks complete
	assert.Equal(t, int32(92), atomic.LoadInt32(&visited))
	assert.Equal(t, int64(1), collected.Total())

	var jobErr *types.JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, "execute", jobErr.Operation)
}

func TestBatch_DiscardedByShutdown(t *testing.T) {
	pool, err := NewPool(&PoolConfig{Workers: 1, Logger: testutils.DiscardLogger()})
	require.NoError(t, err)

	started := make(chan struct{})
	gate := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-gate
	}))
	<-started

	batch, err := pool.ProcessRange(30, 10, func(int, int) {
		t.Error("discarded chunk must not run")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Remaining())
	assert.NoError(t, batch.Err(), "pending batch has no error yet")

	closed := make(chan error, 1)
	go func() { closed <- pool.Close() }()
	require.Eventually(t, pool.IsClosed, 5*time.Second, time.Millisecond)

	err = waitBatch(t, batch)
	assert.ErrorIs(t, err, types.ErrPoolClosed)
	assert.Contains(t, err.Error(), "3 of 3 chunks discarded")

	close(gate)
	require.NoError(t, <-closed)
}

func TestBatch_WaitHonoursContext(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 1})

	gate := make(chan struct{})
	defer close(gate)

	batch, err := pool.ProcessRange(2, 1, func(int, int) { <-gate })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, batch.Wait(ctx), context.DeadlineExceeded)

	select {
	case <-batch.Done():
		t.Fatal("batch finished while chunks were blocked")
	default:
	}
}

func TestBatch_AllocatorDrainedAfterWait(t *testing.T) {
	pool := newTestPool(t, &PoolConfig{Workers: 4, PageSize: 16})

	items := make([]int, 4096)
	batch, err := ProcessArray(pool, items, 8, func(i int, item *int) { *item = i })
	require.NoError(t, err)
	require.NoError(t, waitBatch(t, batch))

	// slots are released before a chunk counts down
	assert.Equal(t, 0, pool.Stats().Allocator.Live)
	assert.Equal(t, int64(512), pool.Stats().Submitted)
}

func TestBatch_Errors(t *testing.T) {
	b := newBatch(3)
	assert.Equal(t, 3, b.Chunks())

	errA := types.NewJobError("execute", 1, 1, errors.New("a"))
	errB := types.NewJobError("execute", 2, 2, errors.New("b"))
	b.finish(errA)
	b.finish(nil)
	assert.NoError(t, b.Err())
	b.finish(errB)

	err := b.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.NotErrorIs(t, err, types.ErrPoolClosed)

	single := newBatch(1)
	single.finish(errA)
	assert.Same(t, errA, single.Err())

	mixed := newBatch(2)
	mixed.finish(errA)
	mixed.discard()
	assert.ErrorIs(t, mixed.Err(), errA)
	assert.ErrorIs(t, mixed.Err(), types.ErrPoolClosed)
}
