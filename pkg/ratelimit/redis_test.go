package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisGate(t *testing.T) (*RedisGate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisGate(rdb, ""), mr
}

func TestRedisGate_FivePerMinuteScenario(t *testing.T) {
	g, mr := newRedisGate(t)
	const key = "203.0.113.7:auth"

	for i := 0; i < 5; i++ {
		require.True(t, admit(t, g, key, 5, 60*time.Second))
	}
	assert.False(t, admit(t, g, key, 5, 60*time.Second))
	assert.True(t, mr.Exists("ratelimit:"+key))

	mr.FastForward(61 * time.Second)
	assert.True(t, admit(t, g, key, 5, 60*time.Second))
}

func TestRedisGate_KeysAreIndependent(t *testing.T) {
	g, _ := newRedisGate(t)

	require.True(t, admit(t, g, "a:auth", 1, time.Minute))
	assert.False(t, admit(t, g, "a:auth", 1, time.Minute))
	assert.True(t, admit(t, g, "a:ai", 1, time.Minute))
}

func TestRedisGate_BackendDown(t *testing.T) {
	g, mr := newRedisGate(t)
	mr.Close()

	_, err := g.Admit(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
