package taskpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPool_Put_NilTaskPanics(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	assert.PanicsWithValue(t, ErrNilTask, func() {
		_ = pool.Put(nil)
	})

	var nilTask *Task[int]
	assert.PanicsWithValue(t, ErrNilTask, func() {
		_ = pool.Put(nilTask)
	})
}

func TestTaskPool_Put_ClosedPool(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	pool.Stop()

	tsk := New(func(ctx context.Context) (int, error) { return 1, nil })
	err := pool.Put(tsk)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestTaskPool_SizeZero_RunsSynchronouslyOnForcingThread(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 0})
	defer pool.Stop()

	ran := false
	tsk := NewVoid(func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, pool.Put(tsk))
	assert.False(t, ran, "a size-zero pool has no workers, so nothing runs until a Force call steals it")

	_, err := tsk.YieldForce()
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestTaskPool_PutBatch_PreservesOrder(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 1})
	defer pool.Stop()

	var order []int
	tasks := make([]taskLike, 0, 5)
	results := make([]*Task[struct{}], 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		tk := NewVoid(func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
		tasks = append(tasks, tk)
		results = append(results, tk)
	}
	require.NoError(t, pool.PutBatch(tasks))
	pool.Finish()
	pool.Wait()

	for _, tk := range results {
		_, err := tk.YieldForce()
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestTaskPool_Finish_DrainsQueueBeforeStopping(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})

	tsk := New(func(ctx context.Context) (int, error) { return 9, nil })
	require.NoError(t, pool.Put(tsk))

	pool.Finish()
	pool.Wait()

	v, err := tsk.Done()
	assert.True(t, v)
	assert.NoError(t, err)
}

func TestTaskPool_Stop_StopsWorkersPromptly(t *testing.T) {
	pool := New(PoolOptions{NWorkers: 2})
	pool.Start()
	pool.Stop()
	pool.Wait()
}

func TestTaskPool_DefaultPool_IsUsable(t *testing.T) {
	d := Default()
	require.NotNil(t, d)
	assert.GreaterOrEqual(t, d.Size(), 0)

	tsk := New(func(ctx context.Context) (int, error) { return 3, nil })
	require.NoError(t, d.Put(tsk))
	v, err := tsk.YieldForce()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
