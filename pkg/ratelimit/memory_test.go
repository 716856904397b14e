package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func admit(t *testing.T, g Gate, key string, limit int, window time.Duration) bool {
	t.Helper()
	ok, err := g.Admit(context.Background(), key, limit, window)
	require.NoError(t, err)
	return ok
}

func TestMemoryGate_LimitThenReject(t *testing.T) {
	clock := newFakeClock()
	g := NewMemoryGate(WithClock(clock.Now))

	for _, limit := range []int{1, 3, 10} {
		key := fmt.Sprintf("client:%d", limit)
		for i := 0; i < limit; i++ {
			assert.True(t, admit(t, g, key, limit, time.Minute), "hit %d of %d", i+1, limit)
		}
		assert.False(t, admit(t, g, key, limit, time.Minute))
		assert.False(t, admit(t, g, key, limit, time.Minute))
	}
}

func TestMemoryGate_FivePerMinuteScenario(t *testing.T) {
	clock := newFakeClock()
	g := NewMemoryGate(WithClock(clock.Now))
	const key = "203.0.113.7:auth"

	for i := 0; i < 5; i++ {
		require.True(t, admit(t, g, key, 5, 60*time.Second))
	}
	assert.False(t, admit(t, g, key, 5, 60*time.Second))

	clock.Advance(61 * time.Second)
	assert.True(t, admit(t, g, key, 5, 60*time.Second))
}

func TestMemoryGate_WindowIsFixed(t *testing.T) {
	clock := newFakeClock()
	g := NewMemoryGate(WithClock(clock.Now))

	require.True(t, admit(t, g, "k", 2, time.Minute))
	clock.Advance(50 * time.Second)
	require.True(t, admit(t, g, "k", 2, time.Minute))
	assert.False(t, admit(t, g, "k", 2, time.Minute))

	// The window started at the first hit, not the last one.
	clock.Advance(10 * time.Second)
	assert.True(t, admit(t, g, "k", 2, time.Minute))
}

func TestMemoryGate_KeysAreIndependent(t *testing.T) {
	g := NewMemoryGate()

	require.True(t, admit(t, g, "a:auth", 1, time.Minute))
	assert.False(t, admit(t, g, "a:auth", 1, time.Minute))
	assert.True(t, admit(t, g, "a:default", 1, time.Minute))
	assert.True(t, admit(t, g, "b:auth", 1, time.Minute))
}

func TestMemoryGate_ConcurrentHitsNeverExceedLimit(t *testing.T) {
	g := NewMemoryGate()
	const (
		limit   = 50
		workers = 16
		perWork = 20
	)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				if ok, _ := g.Admit(context.Background(), "shared", limit, time.Hour); ok {
					admitted.Add(1)
				}
				_, _ = g.Admit(context.Background(), fmt.Sprintf("own:%d:%d", w, i), 1, time.Hour)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, admitted.Load())
	assert.Equal(t, 1+workers*perWork, g.Len())
}

func TestMemoryGate_Sweep(t *testing.T) {
	clock := newFakeClock()
	g := NewMemoryGate(WithClock(clock.Now))

	admit(t, g, "short", 1, time.Second)
	admit(t, g, "long", 1, time.Hour)
	require.Equal(t, 2, g.Len())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, g.Sweep())
	assert.Equal(t, 1, g.Len())
}

func TestMemoryGate_CloseIsIdempotent(t *testing.T) {
	g := NewMemoryGate(WithJanitor(time.Millisecond))
	g.Close()
	g.Close()
}
