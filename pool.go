package taskpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type lifecycleState int32

const (
	stateRunning lifecycleState = iota
	stateFinishing
	stateStopNow
)

// TaskPool owns a queue, a fixed set of worker goroutines, and the two
// synchronization domains described in spec §3/§5: the queue mutex (with
// its "work available" condition variable) and the waiter mutex (with
// its "task finished" condition variable).
type TaskPool struct {
	id       string
	opts     PoolOptions
	logger   *logrus.Logger
	metrics  *poolMetrics
	nWorkers int

	queueMu   sync.Mutex
	queueCond *sync.Cond
	q         taskQueue

	waiterMu   sync.Mutex
	waiterCond *sync.Cond

	state atomic.Int32
	wg    sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	closed      bool

	singleTask bool
}

// poolOptions is the internal superset of PoolOptions used by both the
// public constructors and ExecuteInNewThread's degenerate single-task
// pool.
type poolOptions struct {
	PoolOptions
	singleTask bool
}

// New constructs a TaskPool per opts but does not start its workers;
// the first Put starts it lazily, the way the teacher's WorkerPool.Submit
// calls startLocked.
func New(opts PoolOptions) *TaskPool {
	return newPool(poolOptions{PoolOptions: opts})
}

func newPool(opts poolOptions) *TaskPool {
	o := opts.PoolOptions.withDefaults()
	p := &TaskPool{
		id:         uuid.NewString(),
		opts:       o,
		logger:     o.Logger,
		nWorkers:   o.NWorkers,
		singleTask: opts.singleTask,
	}
	p.metrics = newPoolMetrics(p.id)
	p.queueCond = sync.NewCond(&p.queueMu)
	p.waiterCond = sync.NewCond(&p.waiterMu)
	return p
}

func (p *TaskPool) loadState() lifecycleState { return lifecycleState(p.state.Load()) }
func (p *TaskPool) setState(s lifecycleState) { p.state.Store(int32(s)) }

// Size returns the number of worker goroutines bound to this pool. A
// size-zero pool is legal (spec §3).
func (p *TaskPool) Size() int { return p.nWorkers }

// ID identifies the pool in logs and metric labels.
func (p *TaskPool) ID() string { return p.id }

// Start launches the pool's worker goroutines. Calling it more than once,
// or after Finish/Stop, is a no-op.
func (p *TaskPool) Start() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	p.startLocked()
}

func (p *TaskPool) startLocked() {
	if p.started || p.closed {
		return
	}
	p.started = true
	p.logger.WithFields(logrus.Fields{"pool": p.id, "workers": p.nWorkers}).Debug("taskpool: starting workers")
	for i := 0; i < p.nWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Put enqueues t at the tail of the queue and wakes a worker. It starts
// the pool on first use, matching the teacher's Submit/startLocked
// convention. Submitting a nil task or a task already bound to a
// different pool is an invariant violation and panics.
func (p *TaskPool) Put(t taskLike) error {
	if t == nil {
		panic(ErrNilTask)
	}
	h := t.hdr()
	if h == nil {
		panic(ErrNilTask)
	}
	return p.put(h)
}

func (p *TaskPool) put(h *header) error {
	if h.pool != nil && h.pool != p {
		panic("taskpool: task already submitted to a different pool")
	}

	p.lifecycleMu.Lock()
	if p.closed {
		p.lifecycleMu.Unlock()
		return ErrPoolClosed
	}
	if !p.started {
		p.startLocked()
	}
	p.lifecycleMu.Unlock()

	h.pool = p
	p.queueMu.Lock()
	p.q.pushBack(h)
	p.metrics.queuedTasks.Set(float64(p.q.len()))
	p.queueMu.Unlock()
	p.queueCond.Signal()
	return nil
}

// PutBatch enqueues every task in ts at the tail, in order, under a
// single lock acquisition — the "group-put" FIFO guarantee relied on by
// ParallelForEach's resubmitter (spec §4.5, §5).
func (p *TaskPool) PutBatch(ts []taskLike) error {
	p.lifecycleMu.Lock()
	if p.closed {
		p.lifecycleMu.Unlock()
		return ErrPoolClosed
	}
	if !p.started {
		p.startLocked()
	}
	p.lifecycleMu.Unlock()

	p.queueMu.Lock()
	for _, t := range ts {
		h := t.hdr()
		h.pool = p
		p.q.pushBack(h)
	}
	p.metrics.queuedTasks.Set(float64(p.q.len()))
	p.queueMu.Unlock()
	p.queueCond.Broadcast()
	return nil
}

// Finish sets the pool to Finishing and wakes every worker; queued tasks
// drain normally and workers exit once the queue is empty. Finish does
// not block (spec §4.3).
func (p *TaskPool) Finish() {
	p.setState(stateFinishing)
	p.queueMu.Lock()
	p.queueCond.Broadcast()
	p.queueMu.Unlock()
	p.lifecycleMu.Lock()
	p.closed = true
	p.lifecycleMu.Unlock()
}

// Stop sets the pool to StopNow and wakes every worker; in-flight tasks
// finish but queued tasks are abandoned (their eventual Force falls back
// to synchronous execution via steal-from-middle, since nothing will
// ever pop them). Stop does not block (spec §4.3).
func (p *TaskPool) Stop() {
	p.setState(stateStopNow)
	p.queueMu.Lock()
	p.queueCond.Broadcast()
	p.queueMu.Unlock()
	p.lifecycleMu.Lock()
	p.closed = true
	p.lifecycleMu.Unlock()
}

// Wait blocks until every worker goroutine has exited. Call it after
// Finish or Stop.
func (p *TaskPool) Wait() {
	p.wg.Wait()
}

// trySteal is the steal-from-middle fast path (spec §4.4): under the
// queue mutex, unlink h if it is still NotStarted and flip it to
// InProgress. It returns false if a worker already popped h or it has
// already finished.
func (p *TaskPool) trySteal(h *header) bool {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if Status(h.status.Load()) != StatusNotStarted {
		return false
	}
	p.q.remove(h)
	h.status.Store(int32(StatusInProgress))
	p.metrics.queuedTasks.Set(float64(p.q.len()))
	p.metrics.stolenFromQueue.Inc()
	return true
}

// tryPopAny pops the queue head, the same way a worker would, for
// WorkForce's "help the pool finish other work" path (spec §4.1). It
// returns nil if the queue is empty.
func (p *TaskPool) tryPopAny() *header {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	h := p.q.popFront()
	if h == nil {
		return nil
	}
	h.status.Store(int32(StatusInProgress))
	p.metrics.queuedTasks.Set(float64(p.q.len()))
	return h
}

// runInline executes h on the calling goroutine and performs the same
// finish protocol a worker would (release-store Done, wake waiters). It
// backs the synchronous path taken by Force calls that win the
// steal-from-middle race (the only way a task queued on a size-zero pool
// ever runs; Put itself never executes anything) and WorkForce's path
// that runs other queued tasks while it waits.
func (p *TaskPool) runInline(ctx context.Context, h *header) {
	p.runAndFinish(ctx, h)
}

func (p *TaskPool) waitForDone(h *header) {
	p.waiterMu.Lock()
	for Status(h.status.Load()) != StatusDone {
		p.waiterCond.Wait()
	}
	p.waiterMu.Unlock()
}

func (p *TaskPool) notifyFinished() {
	p.waiterMu.Lock()
	p.waiterCond.Broadcast()
	p.waiterMu.Unlock()
}
