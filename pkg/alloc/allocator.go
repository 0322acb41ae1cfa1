// Package alloc implements a paged, fixed-size block allocator.
//
// Blocks are carved in pages of PageSize slots. Pages are never returned to
// the runtime, so steady-state allocation reuses existing slots instead of
// touching the heap. Every slot carries a generation counter; a Handle is
// only valid for the generation it was issued at, which turns double frees
// and use-after-free into reported errors.
//
// An Allocator is not safe for concurrent use. Callers serialize access with
// their own lock.
package alloc

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jzx17/jobpool/pkg/types"
)

// DefaultPageSize is the number of slots per page used when none is given
const DefaultPageSize = 512

// allocatorIDCounter hands out owner ids embedded in handles
var allocatorIDCounter uint32

// Handle is an opaque reference to an allocated slot
type Handle struct {
	owner uint32
	page  uint32
	slot  uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle (never issued)
func (h Handle) IsZero() bool {
	return h.owner == 0
}

// String returns a debug representation of the handle
func (h Handle) String() string {
	return fmt.Sprintf("handle(%d:%d.%d@%d)", h.owner, h.page, h.slot, h.gen)
}

type page[T any] struct {
	slots []T
	gens  []uint32
	live  []bool
	free  []uint32 // stack of free slot indexes
}

func newPage[T any](size int) *page[T] {
	p := &page[T]{
		slots: make([]T, size),
		gens:  make([]uint32, size),
		live:  make([]bool, size),
		free:  make([]uint32, size),
	}
	// pop order hands out slot 0 first
	for i := 0; i < size; i++ {
		p.free[i] = uint32(size - 1 - i)
	}
	return p
}

// Allocator issues fixed-size blocks of T from a growing list of pages
type Allocator[T any] struct {
	id       uint32
	pageSize int
	maxPages int
	pages    []*page[T]
	live     int

	totalAllocs uint64
	totalFrees  uint64
}

// New creates an allocator with pageSize slots per page.
// maxPages bounds growth; zero means unbounded.
func New[T any](pageSize, maxPages int) (*Allocator[T], error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if maxPages < 0 {
		return nil, fmt.Errorf("max pages cannot be negative, got %d", maxPages)
	}

	a := &Allocator[T]{
		id:       atomic.AddUint32(&allocatorIDCounter, 1),
		pageSize: pageSize,
		maxPages: maxPages,
	}
	a.pages = append(a.pages, newPage[T](pageSize))
	return a, nil
}

// Allocate returns a handle and a pointer to a zeroed slot.
// The pointer stays valid until the handle is freed.
func (a *Allocator[T]) Allocate() (Handle, *T, error) {
	// most recent page first
	pi := -1
	for i := len(a.pages) - 1; i >= 0; i-- {
		if len(a.pages[i].free) > 0 {
			pi = i
			break
		}
	}

	if pi < 0 {
		if a.maxPages > 0 && len(a.pages) >= a.maxPages {
			return Handle{}, nil, fmt.Errorf("%w: %d pages of %d slots in use",
				types.ErrAllocatorExhausted, len(a.pages), a.pageSize)
		}
		a.pages = append(a.pages, newPage[T](a.pageSize))
		pi = len(a.pages) - 1
	}

	p := a.pages[pi]
	last := len(p.free) - 1
	slot := p.free[last]
	p.free = p.free[:last]
	p.live[slot] = true

	a.live++
	a.totalAllocs++

	h := Handle{
		owner: a.id,
		page:  uint32(pi),
		slot:  slot,
		gen:   p.gens[slot],
	}
	return h, &p.slots[slot], nil
}

// Get resolves a live handle to its slot
func (a *Allocator[T]) Get(h Handle) (*T, error) {
	p, err := a.resolve(h)
	if err != nil {
		return nil, err
	}
	return &p.slots[h.slot], nil
}

// Free releases the slot behind h. Freeing a handle from another allocator,
// or one that was already freed, returns an error and leaves state untouched.
func (a *Allocator[T]) Free(h Handle) error {
	p, err := a.resolve(h)
	if err != nil {
		return err
	}

	var zero T
	p.slots[h.slot] = zero
	p.live[h.slot] = false
	p.gens[h.slot]++
	p.free = append(p.free, h.slot)

	a.live--
	a.totalFrees++
	return nil
}

func (a *Allocator[T]) resolve(h Handle) (*page[T], error) {
	if h.owner != a.id {
		return nil, fmt.Errorf("%w: %s", types.ErrForeignHandle, h)
	}
	if int(h.page) >= len(a.pages) || int(h.slot) >= a.pageSize {
		return nil, fmt.Errorf("%w: %s out of range", types.ErrForeignHandle, h)
	}

	p := a.pages[h.page]
	if !p.live[h.slot] || p.gens[h.slot] != h.gen {
		return nil, fmt.Errorf("%w: %s", types.ErrStaleHandle, h)
	}
	return p, nil
}

// Available returns how many more slots can be allocated before
// ErrAllocatorExhausted, counting pages not yet carved.
func (a *Allocator[T]) Available() int {
	if a.maxPages == 0 {
		return math.MaxInt
	}
	n := 0
	for _, p := range a.pages {
		n += len(p.free)
	}
	return n + (a.maxPages-len(a.pages))*a.pageSize
}

// Pages returns the number of pages carved so far
func (a *Allocator[T]) Pages() int {
	return len(a.pages)
}

// Live returns the number of outstanding handles
func (a *Allocator[T]) Live() int {
	return a.live
}

// Stats returns allocator statistics
func (a *Allocator[T]) Stats() types.AllocatorStats {
	return types.AllocatorStats{
		Pages:       len(a.pages),
		PageSize:    a.pageSize,
		Capacity:    len(a.pages) * a.pageSize,
		Live:        a.live,
		TotalAllocs: a.totalAllocs,
		TotalFrees:  a.totalFrees,
	}
}
