package taskpool

import "context"

// ReduceOptions configures Reduce / ReduceMulti (spec §4.7).
type ReduceOptions struct {
	// WorkUnitSize is the chunk size each reduce task covers. Zero picks
	// the same default ForEach/Map use.
	WorkUnitSize int
}

// reduceILPWidth is the number of parallel accumulators used inside a
// single chunk's reduction, breaking the serial dependency chain between
// successive combine calls so the compiler and CPU have independent
// work to pipeline (spec §4.7: "N is a small compile-time constant,
// typically 6"). It only regroups combine calls within a chunk; elements
// and chunks are still combined strictly in range order.
const reduceILPWidth = 6

func reduceChunkILP[T any](ctx context.Context, items []T, combine func(ctx context.Context, a, b T) (T, error)) (T, error) {
	var zero T
	n := len(items)
	k := reduceILPWidth
	if k > n {
		k = n
	}
	// Accumulator j folds the contiguous segment starting at j*seg (the
	// last one also takes the remainder), so range order is preserved.
	seg := n / k
	acc := make([]T, k)
	for j := range acc {
		acc[j] = items[j*seg]
	}
	for s := 1; s < n-(k-1)*seg; s++ {
		for j := range acc {
			if s >= seg && j < k-1 {
				continue
			}
			v, err := combine(ctx, acc[j], items[j*seg+s])
			if err != nil {
				return zero, err
			}
			acc[j] = v
		}
	}
	result := acc[0]
	for i := 1; i < k; i++ {
		v, err := combine(ctx, result, acc[i])
		if err != nil {
			return zero, err
		}
		result = v
	}
	return result, nil
}

// Reduce folds items with combine, using seed as the starting value if
// non-nil, or the first chunk's own reduction as the starting point
// otherwise (spec §4.7). combine must be associative; it need not be
// commutative, since chunk results are always combined in range order.
func Reduce[T any](pool *TaskPool, items []T, seed *T, opts *ReduceOptions, combine func(ctx context.Context, a, b T) (T, error)) (T, error) {
	var zero T
	out, err := ReduceMulti(pool, items, []*T{seed}, opts, []func(ctx context.Context, a, b T) (T, error){combine})
	if err != nil {
		return zero, err
	}
	return out[0], nil
}

// ReduceMulti reduces the same range with several independent associative
// functions in one pass over the chunking and resubmitter machinery
// (spec §4.7: "one or more associative binary functions"). seeds and
// combines must have the same length; a nil entry in seeds means that
// function has no explicit seed.
func ReduceMulti[T any](pool *TaskPool, items []T, seeds []*T, opts *ReduceOptions, combines []func(ctx context.Context, a, b T) (T, error)) ([]T, error) {
	m := len(combines)
	if m == 0 {
		panic("taskpool: Reduce requires at least one reduction function")
	}
	if len(seeds) != m {
		panic("taskpool: Reduce requires one seed slot (nil for none) per reduction function")
	}

	n := len(items)
	if n == 0 {
		out := make([]T, m)
		for i, s := range seeds {
			if s == nil {
				return nil, ErrReduceEmptyNoSeed
			}
			out[i] = *s
		}
		return out, nil
	}

	requested := 0
	if opts != nil {
		requested = opts.WorkUnitSize
	}
	unitSize := workUnitSizeFor(n, pool.Size(), requested)

	type bounds struct{ lo, hi int }
	var chunks []bounds
	for lo := 0; lo < n; lo += unitSize {
		hi := lo + unitSize
		if hi > n {
			hi = n
		}
		chunks = append(chunks, bounds{lo, hi})
	}

	// Task objects for each chunk come from runUnits' bounded slot pool
	// rather than one allocation per chunk up front, the practical
	// equivalent here of the scratch-buffer allocation spec §4.7
	// describes (see DESIGN.md).
	results := make([][]T, len(chunks))
	units := make([]func(ctx context.Context) error, len(chunks))
	for ci, c := range chunks {
		ci, c := ci, c
		units[ci] = func(ctx context.Context) error {
			row := make([]T, m)
			var chain *ChainedError
			for fi, combine := range combines {
				v, err := reduceChunkILP(ctx, items[c.lo:c.hi], combine)
				if err != nil {
					chain = appendChain(chain, err)
					continue
				}
				row[fi] = v
			}
			results[ci] = row
			if chain != nil {
				return chain
			}
			return nil
		}
	}

	if err := runUnits(pool, units, resubmitterSlotCount(pool)); err != nil {
		return nil, err
	}

	out := make([]T, m)
	for fi, combine := range combines {
		var acc T
		start := 1
		if seeds[fi] != nil {
			acc = *seeds[fi]
			start = 0
		} else {
			acc = results[0][fi]
		}
		for ci := start; ci < len(results); ci++ {
			v, err := combine(context.Background(), acc, results[ci][fi])
			if err != nil {
				return nil, err
			}
			acc = v
		}
		out[fi] = acc
	}
	return out, nil
}
