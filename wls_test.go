package taskpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerLocalStorage_EachWorkerAccumulatesIndependently(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 4})
	defer pool.Stop()

	wls := NewWorkerLocalStorage[int](pool)

	items := make([]int, 4000)
	err := ForEach(pool, items, nil, func(ctx context.Context, i int, v *int) error {
		wls.Set(ctx, wls.Get(ctx)+1)
		return nil
	})
	require.NoError(t, err)

	totals := wls.ToRange()
	require.Len(t, totals, pool.Size()+1)

	sum := 0
	for _, v := range totals {
		sum += v
	}
	assert.Equal(t, len(items), sum)
}

func TestWorkerLocalStorage_SharedSlotForNonWorkerCallers(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	wls := NewWorkerLocalStorage[string](pool)
	wls.Set(context.Background(), "outside")
	assert.Equal(t, "outside", wls.Get(context.Background()))
}

func TestWorkerLocalStorage_PanicsAfterToRange(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	wls := NewWorkerLocalStorage[int](pool)
	_ = wls.ToRange()

	assert.PanicsWithValue(t, ErrWorkerLocalStorageFinalized, func() {
		wls.Get(context.Background())
	})
}

func TestCacheLineSize_ReturnsAPositiveSize(t *testing.T) {
	assert.Greater(t, CacheLineSize(), 0)
}
