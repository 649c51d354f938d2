package taskpool

import "context"

// MapOptions configures Map (spec §4.6, eager form).
type MapOptions struct {
	// WorkUnitSize is the number of input elements each work unit
	// transforms. Zero picks the same default ForEach uses.
	WorkUnitSize int
}

// Map applies fn to every element of in and returns the results in a
// freshly allocated slice of the same length, in input order (spec §4.6
// eager form: "writes into disjoint, pre-determined slices of the output
// so no synchronization between work units is needed"). Each work unit
// writes only the output slots covering its own input range, so no two
// work units ever touch the same output element.
//
// The first error observed stops submission of further work units (units
// already enqueued still run); it is returned chained through every
// other error observed before the drain completed (spec §4.6, §7 item
// 4).
func Map[In, Out any](pool *TaskPool, in []In, opts *MapOptions, fn func(ctx context.Context, index int, item In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(in))
	if err := MapInto(pool, in, out, opts, fn); err != nil {
		return nil, err
	}
	return out, nil
}

// MapInto is Map with a caller-supplied, pre-allocated output slice (spec
// §4.6: "an optional pre-allocated output buffer"). len(out) must equal
// len(in).
func MapInto[In, Out any](pool *TaskPool, in []In, out []Out, opts *MapOptions, fn func(ctx context.Context, index int, item In) (Out, error)) error {
	n := len(in)
	if n == 0 {
		return nil
	}
	if len(out) != n {
		panic("taskpool: Map output buffer length must equal input length")
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
			for i := lo; i < hi; i++ {
				v, err := fn(ctx, i, in[i])
				if err != nil {
					return err
				}
				out[i] = v
			}
			return nil
		})
	}

	return runUnits(pool, units, resubmitterSlotCount(pool))
}
