package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_AllowsWithinBudget(t *testing.T) {
	l := New(100, time.Second, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(ctx, 1))
	}

	admitted, denied := l.Stats()
	assert.Equal(t, int64(10), admitted)
	assert.Equal(t, int64(0), denied)
}

func TestWait_WeightConsumesBudget(t *testing.T) {
	l := New(10, time.Second, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, 10))

	// Budget exhausted; the next wait cannot complete before the deadline.
	err := l.Wait(ctx, 10)
	assert.Error(t, err)
}

func TestWait_ZeroWeightCountsAsOne(t *testing.T) {
	l := New(100, time.Second, 0)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, 0))
}

func TestWaitOrder_UsesOrderBucket(t *testing.T) {
	l := New(100, time.Second, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.WaitOrder(ctx, 1))

	// The order bucket holds a single token per second, so the second order
	// is denied even though the request budget has plenty left.
	err := l.WaitOrder(ctx, 1)
	assert.Error(t, err)
	assert.True(t, l.Allow())
}

func TestWaitOrder_NoOrderBucket(t *testing.T) {
	l := New(100, time.Second, 0)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.WaitOrder(ctx, 1))
	}
}

func TestSetLimit(t *testing.T) {
	l := New(1, time.Second, 0)
	l.SetLimit(1000, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx, 1))
	}
}

func TestWait_CancelledContext(t *testing.T) {
	l := New(1, time.Minute, 0)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, 1))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(cancelled, 1)
	assert.Error(t, err)

	_, denied := l.Stats()
	assert.Equal(t, int64(1), denied)
}
