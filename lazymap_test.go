package taskpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainLazyMap[In, Out any](lm *LazyMap[In, Out]) []Out {
	var out []Out
	for {
		v, ok := lm.Front()
		if !ok {
			break
		}
		out = append(out, v)
		lm.PopFront()
	}
	return out
}

func TestLazyMap_ProducesEveryElementInOrder(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	src := NewSliceSource([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	lm := NewLazyMap[int, int](pool, src, 3, func(ctx context.Context, v int) (int, error) {
		return v * 2, nil
	})

	got := drainLazyMap[int, int](lm)
	require.NoError(t, lm.Err())
	assert.Equal(t, []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}, got)
	assert.True(t, lm.Empty())
}

func TestLazyMap_EmptySource(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	src := NewSliceSource([]int{})
	lm := NewLazyMap[int, int](pool, src, 4, func(ctx context.Context, v int) (int, error) {
		return v, nil
	})
	assert.True(t, lm.Empty())
	_, ok := lm.Front()
	assert.False(t, ok)
}

func TestAsyncBuffer_IsIdentityLookAhead(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	src := NewSliceSource([]string{"a", "b", "c", "d", "e"})
	ab := NewAsyncBuffer[string](pool, src, 2)

	got := drainLazyMap[string, string](ab.LazyMap)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestLazyMap_TakeBufExposesUnderlyingBuffer(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	defer pool.Stop()

	src := NewSliceSource([]int{1, 2, 3, 4})
	lm := NewLazyMap[int, int](pool, src, 2, func(ctx context.Context, v int) (int, error) {
		return v, nil
	})

	first := lm.Buf()
	assert.Equal(t, []int{1, 2}, first)

	second := lm.TakeBuf()
	assert.Equal(t, []int{3, 4}, second)
}
