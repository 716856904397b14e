// Package cache wraps Redis for JSON and protobuf encoded values.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/proto"
)

// Connect parses url, sizes the pool and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 3

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type Redis struct {
	client *redis.Client
}

func New(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Client() *redis.Client { return r.client }

// Get decodes a JSON value into dest. A miss or an undecodable value reports false.
func (r *Redis) Get(ctx context.Context, key string, dest any) bool {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, dest) == nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) GetProto(ctx context.Context, key string, dest proto.Message) bool {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return proto.Unmarshal(val, dest) == nil
}

// SetProto stores msg in wire format, which is smaller than JSON.
func (r *Redis) SetProto(ctx context.Context, key string, msg proto.Message, ttl time.Duration) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	err := r.client.Del(ctx, keys...).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// DelPattern deletes keys matching pattern in batches of 100.
func (r *Redis) DelPattern(ctx context.Context, pattern string) (int, error) {
	const batchSize = 100

	iter := r.client.Scan(ctx, 0, pattern, batchSize).Iterator()
	pipe := r.client.Pipeline()
	queued, deleted := 0, 0

	flush := func() error {
		if queued == 0 {
			return nil
		}
		_, err := pipe.Exec(ctx)
		deleted += queued
		queued = 0
		return err
	}

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		queued++
		if queued >= batchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
