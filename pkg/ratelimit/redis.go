package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// The first INCR of a window sets its expiry, so the key vanishes exactly when
// the window elapses.
var admitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisGate shares counters between instances through Redis.
type RedisGate struct {
	rdb    redis.Scripter
	prefix string
}

func NewRedisGate(rdb redis.Scripter, prefix string) *RedisGate {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisGate{rdb: rdb, prefix: prefix}
}

func (g *RedisGate) Admit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := admitScript.Run(ctx, g.rdb, []string{g.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(limit), nil
}
