package taskpool

import (
	"errors"
	"strings"
)

// Sentinel errors for the invariant violations listed in spec §7.
var (
	// ErrNotSubmitted is the panic value raised when a force primitive is
	// called on a task that was never submitted to a pool nor executed via
	// ExecuteInNewThread.
	ErrNotSubmitted = errors.New("taskpool: force called on a task that was never submitted")

	// ErrNilTask is the panic value raised by TaskPool.Put when handed a
	// nil task.
	ErrNilTask = errors.New("taskpool: cannot submit a nil task")

	// ErrPoolClosed is returned by Put once the pool has transitioned to
	// Finishing or StopNow and can no longer accept new work.
	ErrPoolClosed = errors.New("taskpool: pool is no longer accepting tasks")

	// ErrWorkerLocalStorageFinalized is the panic value raised by Get/Set
	// once ToRange has been called on a WorkerLocalStorage.
	ErrWorkerLocalStorageFinalized = errors.New("taskpool: worker-local storage accessed after ToRange")

	// ErrReduceEmptyNoSeed is returned by Reduce/ReduceMulti when the
	// input range is empty and no explicit seed was supplied, so there is
	// no value to return (spec §4.7).
	ErrReduceEmptyNoSeed = errors.New("taskpool: reduce of an empty range requires an explicit seed")
)

// ChainedError aggregates exceptions raised by independent work units of
// a parallel combinator (§4.5, §4.7, §7 item 4). The first exception
// observed becomes the head; later ones are appended via Next, forming an
// explicit linked list rather than relying on a generic multi-error
// library's string-joined representation (see DESIGN.md).
type ChainedError struct {
	Err  error
	Next *ChainedError
}

func (c *ChainedError) Error() string {
	var b strings.Builder
	for cur, i := c, 0; cur != nil; cur, i = cur.Next, i+1 {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(cur.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the head error so errors.Is/errors.As can match against
// it without walking the chain manually.
func (c *ChainedError) Unwrap() error {
	return c.Err
}

// Errors flattens the chain into a slice in the order the exceptions were
// observed.
func (c *ChainedError) Errors() []error {
	if c == nil {
		return nil
	}
	out := make([]error, 0, 4)
	for cur := c; cur != nil; cur = cur.Next {
		out = append(out, cur.Err)
	}
	return out
}

// appendChain adds err to the tail of the chain rooted at head, creating a
// new chain if head is nil. It returns the (possibly new) head.
func appendChain(head *ChainedError, err error) *ChainedError {
	if err == nil {
		return head
	}
	node := &ChainedError{Err: err}
	if head == nil {
		return node
	}
	tail := head
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = node
	return head
}

// ParallelForeachError is returned when a ForEach body attempts to break
// out of the iteration via Break, which parallel for-each cannot honor
// because loop state is sharded across workers and cannot be rolled back
// (spec §4.5).
type ParallelForeachError struct {
	// Index is the element index whose body attempted the break, or -1
	// if Break was called from a task body outside of ForEach (where no
	// element index applies). ForEach itself always sets this to the
	// real index of the element that panicked (see callForEachBody in
	// foreach.go).
	Index int
}

func (e *ParallelForeachError) Error() string {
	return "taskpool: illegal break from parallel for-each body"
}

// breakSignal is the panic value Break raises. It carries no data of
// its own: ForEach's callForEachBody already knows which element it is
// currently invoking when it recovers one, so the index is attached
// there rather than inside the signal.
type breakSignal struct{}

// Break aborts the calling ForEach body element via a non-local
// control-flow mechanism. Because element visitation is sharded across
// worker goroutines, ForEach cannot honor it the way a sequential loop
// would; calling it always surfaces a *ParallelForeachError to the
// caller of ForEach. It exists so callers migrating a sequential loop
// get a clear, typed failure instead of a silent goroutine panic.
func Break() {
	panic(breakSignal{})
}
