// Package broker fans notifications out to every server instance over Redis
// pub/sub.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"rapport/pkg/logging"
	"rapport/pkg/models"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "notifications"

type HandlerFunc func(models.Notification)

type Broker struct {
	rdb     *redis.Client
	channel string
	log     logging.Logger

	mu       sync.RWMutex
	handlers []HandlerFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(rdb *redis.Client, channel string, log logging.Logger) *Broker {
	if channel == "" {
		channel = DefaultChannel
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		rdb:     rdb,
		channel: channel,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (b *Broker) Publish(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// On registers fn for every notification received after Subscribe.
func (b *Broker) On(fn HandlerFunc) {
	b.mu.Lock()
	b.handlers = append(b.handlers, fn)
	b.mu.Unlock()
}

// Subscribe joins the channel and dispatches messages in the background until
// Close. It returns once the subscription is confirmed.
func (b *Broker) Subscribe(ctx context.Context) error {
	sub := b.rdb.Subscribe(b.ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer close(b.done)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.dispatch(msg.Payload)
			}
		}
	}()
	return nil
}

func (b *Broker) dispatch(payload string) {
	var n models.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		b.log.Warn(b.ctx, "dropping malformed notification", "error", err)
		return
	}
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(n)
	}
}

// Close stops the subscription loop. The Redis client is owned by the caller.
func (b *Broker) Close() {
	b.cancel()
}

// Done is closed when the subscription loop has exited.
func (b *Broker) Done() <-chan struct{} { return b.done }
