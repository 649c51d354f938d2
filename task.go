package taskpool

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Task. Transitions are monotonic:
// NotStarted -> InProgress -> Done.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NotStarted"
	case StatusInProgress:
		return "InProgress"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

type workerIndexKey struct{}

// contextWithWorkerIndex tags ctx with the worker slot that will execute a
// task body, so WorkerLocalStorage.Get/Set can find the right slot without
// Go's nonexistent thread-locals (see SPEC_FULL.md, "TaskPool.Size()/
// WorkerIndexFromContext() accessors").
func contextWithWorkerIndex(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, workerIndexKey{}, idx)
}

// WorkerIndexFromContext returns the worker slot executing the current
// task body, or 0 if ctx was not produced by a pool worker (the shared
// slot reserved for non-worker callers, per spec §3).
func WorkerIndexFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(workerIndexKey{}).(int); ok {
		return v
	}
	return 0
}

// header is the type-erased portion of a task that TaskQueue and Worker
// manipulate. Every concrete Task[T] embeds header as its first field;
// runFn is the monomorphized entry point that knows how to invoke the
// bound callable and store its result back into the concrete task
// (spec §9, "dynamic dispatch / type erasure").
type header struct {
	id            string
	status        atomic.Int32
	pool          *TaskPool
	prev, next    *header
	shouldSetDone bool
	isScoped      bool
	exception     error
	runFn         func(ctx context.Context)
}

func newHeader() header {
	return header{id: uuid.NewString(), shouldSetDone: true}
}

func (h *header) loadStatus() Status {
	return Status(h.status.Load())
}

// taskLike is satisfied by every *Task[T] via the embedded header, giving
// TaskQueue and TaskPool a common, type-erased view of any task.
type taskLike interface {
	hdr() *header
}

// Task is a unit of work bound to a callable returning T. Construct one
// with New or NewVoid; submit it with (*TaskPool).Put, or run it on a
// dedicated goroutine with ExecuteInNewThread. A Task must not be reused
// after it has been submitted or executed once (spec §3: "a task with
// status != NotStarted has both links null").
type Task[T any] struct {
	header
	fn     func(ctx context.Context) (T, error)
	result T
}

func (t *Task[T]) hdr() *header {
	if t == nil {
		return nil
	}
	return &t.header
}

// New constructs a heap-resident task bound to fn. The task is inert
// until submitted to a pool or executed in a new thread.
func New[T any](fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{header: newHeader(), fn: fn}
	t.runFn = t.run
	return t
}

// NewVoid constructs a task whose callable has no meaningful return
// value, matching spec §3's "absent [result] when the callable returns
// nothing".
func NewVoid(fn func(ctx context.Context) error) *Task[struct{}] {
	return New(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

func (t *Task[T]) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(breakSignal); ok {
				// Break called from a task body that isn't one of
				// ForEach's own elements (ForEach recovers and attaches
				// the real element index itself before a panic ever
				// reaches here, via callForEachBody) has no applicable
				// index to report.
				t.exception = &ParallelForeachError{Index: -1}
				return
			}
			t.exception = fmt.Errorf("taskpool: task panicked: %v", r)
		}
	}()
	res, err := t.fn(ctx)
	if err != nil {
		t.exception = err
		return
	}
	t.result = res
}

// ExecuteInNewThread spawns a dedicated single-worker pool holding only
// this task and starts it immediately, returning without waiting for
// completion (spec §4.1). priority is forwarded to the pool's worker the
// way TaskPool's own ThreadPriority option is (best-effort, see
// SPEC_FULL.md).
func (t *Task[T]) ExecuteInNewThread(priority int) {
	p := newPool(poolOptions{
		PoolOptions: PoolOptions{
			NWorkers:       1,
			IsDaemon:       true,
			ThreadPriority: priority,
		},
		singleTask: true,
	})
	p.Start()
	if err := p.put(&t.header); err != nil {
		panic(err)
	}
}

// Done reports whether the task has finished. If it finished with an
// exception, Done returns (true, exception) so every caller that
// observes completion also observes the failure (spec §4.1, §7 item 3).
func (t *Task[T]) Done() (bool, error) {
	if t.loadStatus() != StatusDone {
		return false, nil
	}
	return true, t.exception
}

func (t *Task[T]) requireSubmitted() {
	if t.pool == nil {
		panic(ErrNotSubmitted)
	}
}

// SpinForce busy-waits for the task's result, stealing it out of its
// queue to run inline if it has not started yet (spec §4.1).
func (t *Task[T]) SpinForce() (T, error) { return t.SpinForceContext(context.Background()) }

// SpinForceContext is SpinForce with an explicit context, used to carry a
// worker index when called from within another task body.
func (t *Task[T]) SpinForceContext(ctx context.Context) (T, error) {
	t.requireSubmitted()
	start := time.Now()
	if t.pool.trySteal(&t.header) {
		t.pool.runInline(ctx, &t.header)
	} else {
		for t.loadStatus() != StatusDone {
			runtime.Gosched()
		}
	}
	t.pool.metrics.forceLatency.Observe(time.Since(start).Seconds())
	return t.result, t.exception
}

// YieldForce waits for the task's result, blocking on the owning pool's
// waiter condition variable rather than spinning when the task is already
// running elsewhere (spec §4.1).
func (t *Task[T]) YieldForce() (T, error) { return t.YieldForceContext(context.Background()) }

// YieldForceContext is YieldForce with an explicit context.
func (t *Task[T]) YieldForceContext(ctx context.Context) (T, error) {
	t.requireSubmitted()
	start := time.Now()
	if t.pool.trySteal(&t.header) {
		t.pool.runInline(ctx, &t.header)
	} else {
		t.pool.waitForDone(&t.header)
	}
	t.pool.metrics.forceLatency.Observe(time.Since(start).Seconds())
	return t.result, t.exception
}

// WorkForce waits for the task's result. If the task is already
// InProgress elsewhere, it first tries to pop and run another queued
// task from the same pool so the calling worker makes forward progress
// instead of blocking a thread that might be needed to finish this very
// task (spec §4.1, scenario 6). It falls back to YieldForce once the
// queue has nothing left to help with.
func (t *Task[T]) WorkForce() (T, error) { return t.WorkForceContext(context.Background()) }

// WorkForceContext is WorkForce with an explicit context.
func (t *Task[T]) WorkForceContext(ctx context.Context) (T, error) {
	t.requireSubmitted()
	start := time.Now()
	if t.pool.trySteal(&t.header) {
		t.pool.runInline(ctx, &t.header)
		t.pool.metrics.forceLatency.Observe(time.Since(start).Seconds())
		return t.result, t.exception
	}

	for t.loadStatus() != StatusDone {
		other := t.pool.tryPopAny()
		if other == nil {
			break
		}
		t.pool.runInline(ctx, other)
	}
	if t.loadStatus() != StatusDone {
		t.pool.waitForDone(&t.header)
	}
	t.pool.metrics.forceLatency.Observe(time.Since(start).Seconds())
	return t.result, t.exception
}

// ScopedTask is the stack-lifetime variant of Task: it must be closed
// (ideally via defer) before the enclosing scope returns, which blocks
// until the task is Done. Go has no destructors, so, unlike the source
// system, the blocking-on-scope-exit guarantee is opt-in: nothing stops
// a caller from leaking a ScopedTask without calling Close, which is why
// NewScoped documents the defer requirement instead of enforcing it.
type ScopedTask[T any] struct {
	*Task[T]
}

// NewScoped constructs a task, marks it scoped, and submits it to pool.
// Callers must defer Close to guarantee the task completes before the
// scope exits (spec §3, §5: "the destructor cannot be skipped").
func NewScoped[T any](pool *TaskPool, fn func(ctx context.Context) (T, error)) *ScopedTask[T] {
	t := New(fn)
	t.isScoped = true
	if err := pool.Put(t); err != nil {
		panic(err)
	}
	return &ScopedTask[T]{t}
}

// Close blocks until the task is Done, discarding any exception; inspect
// it beforehand via Done or one of the Force methods if you need it.
func (s *ScopedTask[T]) Close() {
	_, _ = s.YieldForce()
}
