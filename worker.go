package taskpool

import (
	"context"

	"github.com/sirupsen/logrus"
)

// worker is the goroutine-bound loop described in spec §4.2. Each worker
// owns no task state between iterations; all state lives on the pool's
// queue and on the header of whatever task it is currently executing.
func (p *TaskPool) worker(index int) {
	ctx := contextWithWorkerIndex(context.Background(), index+1)
	p.setThreadPriority(index)
	defer p.wg.Done()

	for {
		p.queueMu.Lock()
		for p.q.empty() && p.loadState() == stateRunning {
			p.queueCond.Wait()
		}

		if p.loadState() == stateFinishing && p.q.empty() {
			p.setState(stateStopNow)
			p.queueMu.Unlock()
			return
		}
		if p.loadState() == stateStopNow {
			p.queueMu.Unlock()
			return
		}

		h := p.q.popFront()
		h.status.Store(int32(StatusInProgress))
		p.metrics.queuedTasks.Set(float64(p.q.len()))
		p.queueMu.Unlock()

		p.metrics.activeWorkers.Inc()
		p.runAndFinish(ctx, h)
		p.metrics.activeWorkers.Dec()
	}
}

// runAndFinish executes h's callable on the calling goroutine, then
// performs the release-store of status=Done and wakes every waiter, the
// shared tail shared by the worker loop, steal-from-middle, and
// ExecuteInNewThread (spec §4.1: "all three force primitives act as full
// memory barriers").
func (p *TaskPool) runAndFinish(ctx context.Context, h *header) {
	h.runFn(ctx)
	if h.shouldSetDone {
		h.status.Store(int32(StatusDone))
	}
	p.metrics.recordFinish(h.exception)
	if h.exception != nil {
		p.logger.WithFields(logrus.Fields{"pool": p.id, "task": h.id}).
			WithError(h.exception).Debug("taskpool: task finished with a captured exception")
	}
	p.notifyFinished()
}
