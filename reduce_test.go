package taskpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumFn(ctx context.Context, a, b int) (int, error) { return a + b, nil }

func TestReduce_AssociativeSumNoSeed(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 3})
	defer pool.Stop()

	items := make([]int, 1000)
	for i := range items {
		items[i] = i + 1
	}

	sum, err := Reduce(pool, items, nil, nil, sumFn)
	require.NoError(t, err)
	assert.Equal(t, 500500, sum)
}

func TestReduce_WithExplicitSeed(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 3})
	defer pool.Stop()

	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}
	seed := 0

	sum, err := Reduce(pool, items, &seed, nil, sumFn)
	require.NoError(t, err)

	want := 0
	for _, v := range items {
		want += v
	}
	assert.Equal(t, want, sum)
}

func TestReduceMulti_MinAndMax(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	items := []int{1, 2, 3, 4}
	minFn := func(ctx context.Context, a, b int) (int, error) {
		if b < a {
			return b, nil
		}
		return a, nil
	}
	maxFn := func(ctx context.Context, a, b int) (int, error) {
		if b > a {
			return b, nil
		}
		return a, nil
	}

	out, err := ReduceMulti(pool, items, []*int{nil, nil}, nil, []func(context.Context, int, int) (int, error){minFn, maxFn})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0])
	assert.Equal(t, 4, out[1])
}

func TestReduce_EmptyRangeWithoutSeedIsAnError(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	_, err := Reduce(pool, []int{}, nil, nil, sumFn)
	assert.ErrorIs(t, err, ErrReduceEmptyNoSeed)
}

func TestReduce_EmptyRangeWithSeedReturnsSeed(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	seed := 42
	v, err := Reduce(pool, []int{}, &seed, nil, sumFn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestReduce_SingleElementRange(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	v, err := Reduce(pool, []int{5}, nil, nil, sumFn)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestReduce_RespectsOrderForNonCommutativeFunction(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	// string concatenation is associative but not commutative; chunk
	// results must still combine in range order.
	items := []string{"a", "b", "c", "d", "e", "f"}
	concat := func(ctx context.Context, a, b string) (string, error) { return a + b, nil }

	out, err := Reduce(pool, items, nil, &ReduceOptions{WorkUnitSize: 2}, concat)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", out)
}
