package taskpool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_SquaresEachElement(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	in := []int{1, 2, 3, 4, 5}
	out, err := Map(pool, in, nil, func(ctx context.Context, i int, v int) (int, error) {
		return v * v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, out)
}

func TestMapInto_PreallocatedBuffer(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	in := []int{1, 2, 3, 4, 5}
	out := make([]int, 5)
	err := MapInto(pool, in, out, nil, func(ctx context.Context, i int, v int) (int, error) {
		return v * v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, out)
}

func TestMapInto_MismatchedLengthPanics(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	assert.Panics(t, func() {
		_ = MapInto(pool, []int{1, 2}, make([]int, 3), nil, func(ctx context.Context, i int, v int) (int, error) {
			return v, nil
		})
	})
}

func TestMap_EmptyInput(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	out, err := Map[int, int](pool, nil, nil, func(ctx context.Context, i int, v int) (int, error) {
		return v, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMap_ErrorStopsFurtherUnitsButReportsIt(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	wantErr := errors.New("bad element")
	in := make([]int, 10)
	_, err := Map(pool, in, &MapOptions{WorkUnitSize: 1}, func(ctx context.Context, i int, v int) (int, error) {
		if i == 3 {
			return 0, wantErr
		}
		return v, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}
