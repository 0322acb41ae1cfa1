// Package thread wraps an OS thread for the worker pool.
//
// A Thread runs its entry function on a goroutine locked to one OS thread for
// the whole of its life. The lock is never released, so when the entry
// returns the runtime discards the thread together with any affinity or name
// applied to it.
//
// Affinity and naming are platform capabilities. Query AffinitySupported and
// NamingSupported, or inspect the error returned by SetAffinity and SetName.
package thread

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/jobpool/pkg/types"
)

// ID identifies an OS thread
type ID int64

// Thread is a single OS thread executing one entry function
type Thread struct {
	id      int64 // atomic, set once the thread is running
	running int32 // atomic
	started int32 // atomic

	ready chan struct{}
	done  chan struct{}

	mu   sync.Mutex
	name string
}

// New creates an idle thread. Call Start to run it.
func New() *Thread {
	return &Thread{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs entry on a new OS thread and returns once the thread is live.
// A Thread can only be started once.
func (t *Thread) Start(entry func()) error {
	if !atomic.CompareAndSwapInt32(&t.started, 0, 1) {
		return types.ErrThreadStarted
	}

	go func() {
		runtime.LockOSThread()
		defer close(t.done)

		atomic.StoreInt64(&t.id, int64(CurrentID()))
		atomic.StoreInt32(&t.running, 1)
		close(t.ready)

		entry()

		atomic.StoreInt32(&t.running, 0)
	}()

	<-t.ready
	return nil
}

// ID returns the OS thread id, or 0 before Start
func (t *Thread) ID() ID {
	return ID(atomic.LoadInt64(&t.id))
}

// IsRunning reports whether the entry function is executing
func (t *Thread) IsRunning() bool {
	return atomic.LoadInt32(&t.running) == 1
}

// Name returns the name last applied with SetName
func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// Join blocks until the entry function has returned.
// Joining a thread that was never started returns immediately.
func (t *Thread) Join() {
	if atomic.LoadInt32(&t.started) == 0 {
		return
	}
	<-t.done
}

// JoinContext is Join bounded by ctx
func (t *Thread) JoinContext(ctx context.Context) error {
	if atomic.LoadInt32(&t.started) == 0 {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetAffinity pins the thread to cpu. It must be called from the thread itself.
func (t *Thread) SetAffinity(cpu int) error {
	if !affinitySupported {
		return types.ErrUnsupported
	}
	if !t.isCurrent() {
		return types.ErrNotCurrentThread
	}
	return setAffinity(cpu)
}

// SetName sets the OS-visible thread name. It must be called from the thread itself.
func (t *Thread) SetName(name string) error {
	if !namingSupported {
		return types.ErrUnsupported
	}
	if !t.isCurrent() {
		return types.ErrNotCurrentThread
	}
	if err := setName(name); err != nil {
		return err
	}
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
	return nil
}

func (t *Thread) isCurrent() bool {
	if !t.IsRunning() {
		return false
	}
	return CurrentID() == t.ID()
}

// CurrentID returns the id of the calling OS thread, or 0 where the
// platform has no thread id. Only meaningful while the calling goroutine
// is locked to its thread.
func CurrentID() ID {
	return currentID()
}

// Sleep suspends the calling thread for ms milliseconds
func Sleep(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// MaxHardwareThreads returns the number of logical CPUs usable by the process
func MaxHardwareThreads() int {
	return runtime.NumCPU()
}

// AllowedCPUs returns the indices of the CPUs the calling thread may run on,
// in ascending order
func AllowedCPUs() ([]int, error) {
	return allowedCPUs()
}

// CurrentCPUIndex returns the CPU the calling thread is running on
func CurrentCPUIndex() (int, error) {
	return currentCPU()
}

// AffinitySupported reports whether SetAffinity can succeed on this platform
func AffinitySupported() bool {
	return affinitySupported
}

// NamingSupported reports whether SetName can succeed on this platform
func NamingSupported() bool {
	return namingSupported
}
