package taskpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// PoolOptions configures a TaskPool (spec §6: n_workers, is_daemon,
// thread_priority). It mirrors the teacher's PoolConfig shape but trims
// the fields that belonged to the channel-based convenience pool
// (QueueSize, TaskTimeout) which have no equivalent in the explicit
// queue/condvar design this spec requires.
type PoolOptions struct {
	// NWorkers is the number of worker goroutines. Zero is legal and
	// degrades every force call to synchronous execution on the calling
	// goroutine (spec §3, §4.4).
	NWorkers int

	// IsDaemon records whether worker goroutines are tied to process
	// lifetime. Go has no OS-level daemon-thread attribute to set; the
	// value is stored with the pool's options for parity with the source
	// system, and the pool does not act on it.
	IsDaemon bool

	// ThreadPriority is forwarded, best-effort, to setThreadPriority for
	// each worker. Go exposes no portable API to set OS thread priority
	// without cgo, so this is a logged no-op (spec §9, Open Question b).
	ThreadPriority int

	// Logger receives the pool's debug-level events (workers starting,
	// thread priority requests, tasks that finish with a captured
	// exception). Defaults
	// to logrus.New() when nil, matching the teacher's
	// NewInMemoryPromptRegistry convention.
	Logger *logrus.Logger
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	return o
}

// envTunables is populated once from the environment via envconfig, the
// way aipilotbyjd-linkflow-ai's internal/platform/config loads service
// config (github.com/kelseyhightower/envconfig, struct tags + defaults).
type envTunables struct {
	DefaultThreads int `envconfig:"TASKPOOL_DEFAULT_THREADS" default:"0"`
}

var defaultPoolThreads atomic.Int64

var envTunablesOnce sync.Once

func loadEnvTunables() {
	envTunablesOnce.Do(func() {
		var cfg envTunables
		// Errors here mean a malformed env var; fall back to the
		// runtime-derived default rather than failing pool construction.
		_ = envconfig.Process("", &cfg)
		if cfg.DefaultThreads > 0 {
			defaultPoolThreads.Store(int64(cfg.DefaultThreads))
			return
		}
		defaultPoolThreads.Store(int64(defaultWorkerCount()))
	})
}

func defaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 0 {
		n = 0
	}
	return n
}

// DefaultPoolThreads returns the process-wide tunable controlling how
// many workers the lazily-constructed default pool is created with
// (spec §6). It is read once from TASKPOOL_DEFAULT_THREADS on first use.
func DefaultPoolThreads() int {
	loadEnvTunables()
	return int(defaultPoolThreads.Load())
}

// SetDefaultPoolThreads overrides the tunable. Changing it after the
// default pool has already been instantiated has no effect on that pool
// (spec §6).
func SetDefaultPoolThreads(n int) {
	loadEnvTunables()
	defaultPoolThreads.Store(int64(n))
}
