package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(max int, window time.Duration) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(Options{MaxAttempts: max, Window: window})
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_DeniesAfterMax(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, "203.0.113.9")
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d must pass", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	clock.Advance(20 * time.Second)
	d, err := l.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)
	assert.Equal(t, 40, d.RetryAfterSeconds())
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "k")
	require.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "k")
	require.False(t, d.Allowed)

	clock.Advance(time.Minute)
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "a")
	require.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
}

func TestMemoryLimiter_SweepsExpiredWindows(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = l.Allow(ctx, fmt.Sprintf("ip-%d", i))
	}
	assert.Equal(t, 10, l.Len())

	clock.Advance(2 * time.Minute)
	_, _ = l.Allow(ctx, "fresh")
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_ConcurrentCallersShareBudget(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := l.Allow(ctx, "same")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxAttempts, o.MaxAttempts)
	assert.Equal(t, DefaultWindow, o.Window)
	assert.Equal(t, "k:5:60000", o.storeKey("k"))
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, Decision{Allowed: true}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{RetryAfter: 10 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 2, Decision{RetryAfter: 1500 * time.Millisecond}.RetryAfterSeconds())
}
