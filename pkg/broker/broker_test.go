package broker

import (
	"context"
	"testing"
	"time"

	"rapport/pkg/logging"
	"rapport/pkg/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroker(t *testing.T) (*Broker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := New(rdb, "", logging.Nop())
	t.Cleanup(func() {
		b.Close()
		rdb.Close()
	})
	return b, mr
}

func TestPublishSubscribe(t *testing.T) {
	b, _ := newBroker(t)
	ctx := context.Background()

	got := make(chan models.Notification, 1)
	b.On(func(n models.Notification) { got <- n })
	require.NoError(t, b.Subscribe(ctx))

	require.NoError(t, b.Publish(ctx, models.Notification{ID: "n1", UserID: 7, Type: models.NotifyNewSignIn, Title: "New sign-in"}))

	select {
	case n := <-got:
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, 7, n.UserID)
		assert.Equal(t, models.NotifyNewSignIn, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	b, mr := newBroker(t)
	ctx := context.Background()

	got := make(chan models.Notification, 2)
	b.On(func(n models.Notification) { got <- n })
	require.NoError(t, b.Subscribe(ctx))

	mr.Publish(DefaultChannel, "{broken")
	require.NoError(t, b.Publish(ctx, models.Notification{ID: "ok"}))

	select {
	case n := <-got:
		assert.Equal(t, "ok", n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestCloseStopsLoop(t *testing.T) {
	b, _ := newBroker(t)
	require.NoError(t, b.Subscribe(context.Background()))

	b.Close()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}
