package taskpool

import "sync"

var (
	defaultPoolOnce sync.Once
	defaultPool     *TaskPool
)

// Default returns the lazily-constructed, process-wide pool of size
// DefaultPoolThreads (normally totalCPUs-1), whose workers are daemons
// (spec §4.3, §6). It is safe to call concurrently from multiple
// goroutines; only the first call's size (read from
// TASKPOOL_DEFAULT_THREADS, or derived from runtime.NumCPU()) takes
// effect — later SetDefaultPoolThreads calls do not resize it.
func Default() *TaskPool {
	defaultPoolOnce.Do(func() {
		defaultPool = New(PoolOptions{
			NWorkers: DefaultPoolThreads(),
			IsDaemon: true,
		})
		defaultPool.Start()
	})
	return defaultPool
}
