package taskpool

import (
	"context"
	"sync/atomic"
	"unsafe"

	"github.com/klauspost/cpuid/v2"
)

// CacheLineSize returns the platform's detected cache line size via
// klauspost/cpuid, falling back to the conservative default of 64 bytes
// the spec calls for when detection is unavailable (spec §4.8, §6).
func CacheLineSize() int {
	if cpuid.CPU.Cache.Line > 0 {
		return cpuid.CPU.Cache.Line
	}
	return 64
}

type wlsSlot[T any] struct {
	value T
}

// WorkerLocalStorage gives each worker goroutine of a pool, plus one
// shared slot (index 0) for non-worker callers, its own value of T to
// accumulate into during a parallel phase without synchronization, and a
// sequential view of all of them afterward (spec §3, §4.8).
//
// Go's allocator gives no direct control over an individual slice
// element's alignment, so false-sharing protection is approximated by
// padding the backing array with guard slots at both ends (sized from
// the platform cache-line size) rather than cache-line-aligning each
// live slot individually — see DESIGN.md.
type WorkerLocalStorage[T any] struct {
	pool       *TaskPool
	guard      int
	slots      []wlsSlot[T]
	stillLocal atomic.Bool
}

// NewWorkerLocalStorage allocates pool.Size()+1 live slots, flanked by
// guard slots on both ends of the backing array so the first and last
// live slots don't fall on the same cache line as whatever the Go
// allocator places next to this object.
func NewWorkerLocalStorage[T any](pool *TaskPool) *WorkerLocalStorage[T] {
	var zero T
	guard := 1
	if sz := int(unsafe.Sizeof(zero)); sz > 0 {
		if n := (CacheLineSize() + sz - 1) / sz; n > guard {
			guard = n
		}
	}
	w := &WorkerLocalStorage[T]{
		pool:  pool,
		guard: guard,
		slots: make([]wlsSlot[T], pool.Size()+1+2*guard),
	}
	w.stillLocal.Store(true)
	return w
}

func (w *WorkerLocalStorage[T]) slotIndex(ctx context.Context) int {
	idx := WorkerIndexFromContext(ctx)
	if idx < 0 || idx > w.pool.Size() {
		idx = 0
	}
	return w.guard + idx
}

// Get returns the calling goroutine's slot value: ctx must be the context
// a pool worker received for its task body (or any context, for the
// shared index-0 slot used by non-worker callers). Panics with
// ErrWorkerLocalStorageFinalized once ToRange has been called (spec §4.8).
func (w *WorkerLocalStorage[T]) Get(ctx context.Context) T {
	if !w.stillLocal.Load() {
		panic(ErrWorkerLocalStorageFinalized)
	}
	return w.slots[w.slotIndex(ctx)].value
}

// Set stores v into the calling goroutine's slot. See Get for the
// finalization rule.
func (w *WorkerLocalStorage[T]) Set(ctx context.Context, v T) {
	if !w.stillLocal.Load() {
		panic(ErrWorkerLocalStorageFinalized)
	}
	w.slots[w.slotIndex(ctx)].value = v
}

// ToRange ends the parallel phase: Get/Set are forbidden afterward, and
// the values of every slot (shared slot first, then each worker's slot in
// index order) are returned as a plain, randomly-accessible slice (spec
// §4.8: "a random-access finite range view of all slots").
func (w *WorkerLocalStorage[T]) ToRange() []T {
	w.stillLocal.Store(false)
	out := make([]T, len(w.slots)-2*w.guard)
	for i := range out {
		out[i] = w.slots[w.guard+i].value
	}
	return out
}
