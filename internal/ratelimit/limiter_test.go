package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitDelaysAfterBurst(t *testing.T) {
	t.Parallel()

	// 10 RPS, burst 1: second acquisition waits ~100ms.
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "site-a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "site-a"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_SitesAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "site-a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "site-b"))
	require.Less(t, time.Since(start), 100*time.Millisecond, "site-b must not be blocked by site-a")
}

func TestLimiter_ConcurrentCallersRespectRate(t *testing.T) {
	t.Parallel()

	// 20 RPS, burst 1, 5 concurrent callers: the last token cannot arrive
	// before 4 refill intervals (~200ms).
	l := New(Config{RPS: 20, Burst: 1})
	ctx := context.Background()

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx, "shared"))
		}()
	}
	wg.Wait()
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLimiter_ThrottlePushesNextToken(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "site-a"))
	l.Throttle("site-a")

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "site-a"))
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "slow"))
	require.Error(t, l.Wait(ctx, "slow"), "second wait should fail once the context times out")
}

func TestLimiter_UnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "free"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
