package ratelimit

import (
	"context"
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

func newTestMemory(t *testing.T) (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(Config{Limit: 5, Window: 15 * time.Minute, Prefix: "signin"}, WithClock(clock.Now))
	t.Cleanup(func() { _ = m.Close() })
	return m, clock
}

func TestMemoryAllowsFiveThenRejects(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := m.Allow(ctx, "a@b.com")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}
	d, err := m.Allow(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 15*time.Minute, d.RetryAfter)
}

func TestMemoryWindowResets(t *testing.T) {
	m, clock := newTestMemory(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _ = m.Allow(ctx, "a@b.com")
	}
	clock.Advance(10 * time.Minute)
	d, _ := m.Allow(ctx, "a@b.com")
	assert.False(t, d.Allowed)
	assert.Equal(t, 5*time.Minute, d.RetryAfter)

	clock.Advance(5 * time.Minute)
	d, _ = m.Allow(ctx, "a@b.com")
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _ = m.Allow(ctx, "a@b.com")
	}
	d, _ := m.Allow(ctx, "c@d.com")
	assert.True(t, d.Allowed)
}

func TestMemorySweepDropsClosedWindows(t *testing.T) {
	m, clock := newTestMemory(t)
	_, _ = m.Allow(context.Background(), "a@b.com")
	require.Equal(t, 1, m.size())

	clock.Advance(16 * time.Minute)
	m.sweep()
	assert.Equal(t, 0, m.size())
}

func TestMemoryConcurrentAttemptsNeverExceedLimit(t *testing.T) {
	m, _ := newTestMemory(t)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := m.Allow(context.Background(), "a@b.com")
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

func TestMemoryCloseIsIdempotent(t *testing.T) {
	m := NewMemory(Config{Limit: 1, Window: time.Second})
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
