package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	type profile struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, r.Set(ctx, "user:1", profile{ID: 1, Email: "ada@example.com"}, time.Minute))

	var got profile
	require.True(t, r.Get(ctx, "user:1", &got))
	assert.Equal(t, "ada@example.com", got.Email)

	mr.FastForward(2 * time.Minute)
	assert.False(t, r.Get(ctx, "user:1", &got))
}

func TestGet_UndecodableIsMiss(t *testing.T) {
	r, mr := newTestRedis(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var v map[string]any
	assert.False(t, r.Get(context.Background(), "k", &v))
}

func TestProtoRoundTrip(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	msg, err := structpb.NewStruct(map[string]any{"kind": "summary", "count": 2.0})
	require.NoError(t, err)
	require.NoError(t, r.SetProto(ctx, "insight:1", msg, time.Minute))

	var got structpb.Struct
	require.True(t, r.GetProto(ctx, "insight:1", &got))
	assert.Equal(t, "summary", got.Fields["kind"].GetStringValue())
	assert.False(t, r.GetProto(ctx, "missing", &got))
}

func TestDelAndDelPattern(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("insight:7:%d", i), "x"))
	}
	require.NoError(t, mr.Set("insight:8:0", "x"))
	require.NoError(t, mr.Set("user:7", "x"))

	n, err := r.DelPattern(ctx, "insight:7:*")
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.True(t, mr.Exists("insight:8:0"))

	require.NoError(t, r.Del(ctx, "user:7", "missing"))
	assert.False(t, mr.Exists("user:7"))
}
