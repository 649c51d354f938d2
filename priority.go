package taskpool

import "github.com/sirupsen/logrus"

// setThreadPriority is the best-effort priority hook referenced by
// PoolOptions.ThreadPriority (spec §6, §9 Open Question b: "Priority
// handling is best-effort across platforms ... setting and retrieving a
// priority never fails loudly when unsupported"). Go exposes no portable
// API for OS thread priority without platform-specific syscalls or cgo,
// which fall outside the "two narrow external capabilities" boundary in
// spec §1, so this always succeeds and only logs.
func (p *TaskPool) setThreadPriority(workerIndex int) {
	if p.opts.ThreadPriority == 0 {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"pool":     p.id,
		"worker":   workerIndex,
		"priority": p.opts.ThreadPriority,
	}).Debug("taskpool: thread priority requested but not settable on this platform")
}
