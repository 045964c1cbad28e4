package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterEnforcesMinimumSpacing(t *testing.T) {
	l := New(100, 50*time.Millisecond) // bucket wide open, spacing is the binding constraint
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond, "three waits with 50ms spacing should take at least 100ms")
}

func TestLimiterRespectsBucketCap(t *testing.T) {
	l := New(2, time.Millisecond) // spacing negligible, bucket cap is the binding constraint
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "four requests at 2/s should take at least ~1s")
}

func TestLimiterRespectsCancellation(t *testing.T) {
	l := New(1, time.Second)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(cancelCtx)
	assert.Error(t, err)
}
