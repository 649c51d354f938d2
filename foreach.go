package taskpool

import "context"

// ForEachOptions configures ForEach (spec §4.5).
type ForEachOptions struct {
	// WorkUnitSize is the number of elements each work unit covers. Zero
	// selects a size that yields roughly 4x the pool's worker count work
	// units, matching the ratio the resubmitter's slot array uses.
	WorkUnitSize int
}

func workUnitSizeFor(total, workers, requested int) int {
	if requested > 0 {
		return requested
	}
	if workers <= 0 {
		workers = 1
	}
	units := workers * 4
	size := total / units
	if size < 1 {
		size = 1
	}
	return size
}

func resubmitterSlotCount(pool *TaskPool) int {
	n := pool.Size() * 4
	if n < 1 {
		n = 1
	}
	return n
}

// ForEach applies body to every element of items, sharded into
// contiguous work units executed on pool (spec §4.5). body receives each
// element's index and a pointer so it can mutate in place — random-access
// Go slices are always addressable, so this is always "by reference"
// (spec: "element access is by reference when the source range exposes
// lvalue elements"). Visitation order across work units is unspecified
// (spec §1 Non-goals).
//
// A work unit whose body fails for one element still visits the rest of
// its elements. The first error returned by any work unit is captured;
// once observed, no further work units are submitted, but units already
// enqueued run to completion. All captured errors are returned chained in a *ChainedError
// rooted at the first one observed (spec §4.5, §7 item 4).
//
// Calling Break from body surfaces a *ParallelForeachError instead of
// unwinding the loop, since iteration state is sharded across goroutines
// and cannot be rolled back (spec §4.5).
func ForEach[T any](pool *TaskPool, items []T, opts *ForEachOptions, body func(ctx context.Context, index int, item *T) error) error {
	n := len(items)
	if n == 0 {
		return nil
	}
	requested := 0
	if opts != nil {
		requested = opts.WorkUnitSize
	}
	unitSize := workUnitSizeFor(n, pool.Size(), requested)

	units := make([]func(ctx context.Context) error, 0, (n+unitSize-1)/unitSize)
	for lo := 0; lo < n; lo += unitSize {
		hi := lo + unitSize
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		units = append(units, func(ctx context.Context) error {
			var chain *ChainedError
			for i := lo; i < hi; i++ {
				if err := callForEachBody(ctx, i, &items[i], body); err != nil {
					chain = appendChain(chain, err)
				}
			}
			if chain == nil {
				return nil
			}
			if chain.Next == nil {
				return chain.Err
			}
			return chain
		})
	}

	// runUnits synchronizes with every unit's completion via YieldForce's
	// acquire-load of status==Done before returning, which is the full
	// memory barrier spec §4.5 requires ("all worker writes are visible
	// to the caller").
	return runUnits(pool, units, resubmitterSlotCount(pool))
}

// callForEachBody invokes body for element i, turning a Break() call
// into a *ParallelForeachError carrying i itself — the exact index whose
// body attempted the break — rather than losing that information to
// task.run's generic top-level recover, which has no way to know which
// element of a multi-element work unit was executing when it panicked.
func callForEachBody[T any](ctx context.Context, i int, item *T, body func(ctx context.Context, index int, item *T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(breakSignal); ok {
				err = &ParallelForeachError{Index: i}
				return
			}
			panic(r)
		}
	}()
	return body(ctx, i, item)
}

// runUnits is the resubmitter described in spec §4.5/§5/glossary: it
// keeps a fixed-size array of up to slotCount work units in flight, and
// the instant any one slot finishes, refills that single slot with the
// next unit and resubmits it immediately — rather than waiting for every
// other live slot to finish first. This matters once the total unit
// count exceeds slotCount: submission only ever stops once an exception
// has actually been observed, so every unit that would have been queued
// before that point (which, with slots refilled individually, is usually
// most of the range, not just the first slotCount-sized batch) still
// runs (spec §4.5: "already-enqueued work units run to completion").
func runUnits(pool *TaskPool, units []func(ctx context.Context) error, slotCount int) error {
	if len(units) == 0 {
		return nil
	}
	if slotCount > len(units) {
		slotCount = len(units)
	}
	if slotCount < 1 {
		slotCount = 1
	}

	live := make([]*Task[struct{}], slotCount)
	batch := make([]taskLike, 0, slotCount)
	next := 0
	for i := 0; i < slotCount; i++ {
		t := NewVoid(units[next])
		next++
		live[i] = t
		batch = append(batch, t)
	}
	if err := pool.PutBatch(batch); err != nil {
		return err
	}

	var chain *ChainedError
	stopped := false
	remaining := slotCount
	for remaining > 0 {
		for i := range live {
			if live[i] == nil {
				continue
			}
			if _, err := live[i].YieldForce(); err != nil {
				chain = appendChain(chain, err)
				stopped = true
			}
			if stopped || next >= len(units) {
				live[i] = nil
				remaining--
				continue
			}
			t := NewVoid(units[next])
			next++
			live[i] = t
			if err := pool.Put(t); err != nil {
				return err
			}
		}
	}

	if chain != nil {
		return chain
	}
	return nil
}
