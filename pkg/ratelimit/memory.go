package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type window struct {
	count int
	start time.Time
	span  time.Duration
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// MemoryGate keeps counters in process memory. Keys are spread over shards so
// that hits on unrelated keys rarely share a lock.
type MemoryGate struct {
	shards [shardCount]shard
	now    func() time.Time

	stop chan struct{}
	once sync.Once
}

type MemoryOption func(*MemoryGate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(g *MemoryGate) { g.now = now }
}

// WithJanitor evicts expired windows every interval until Close.
func WithJanitor(interval time.Duration) MemoryOption {
	return func(g *MemoryGate) {
		if interval > 0 {
			go g.janitor(interval)
		}
	}
}

func NewMemoryGate(opts ...MemoryOption) *MemoryGate {
	g := &MemoryGate{
		now:  time.Now,
		stop: make(chan struct{}),
	}
	for i := range g.shards {
		g.shards[i].windows = make(map[string]*window)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MemoryGate) shardFor(key string) *shard {
	return &g.shards[xxhash.Sum64String(key)%shardCount]
}

// Admit never fails; the error is part of the Gate contract.
func (g *MemoryGate) Admit(_ context.Context, key string, limit int, span time.Duration) (bool, error) {
	s := g.shardFor(key)
	now := g.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &window{start: now}
		s.windows[key] = w
	}
	w.span = span
	if now.Sub(w.start) >= span {
		w.count = 0
		w.start = now
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Len reports the number of tracked keys.
func (g *MemoryGate) Len() int {
	n := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// Sweep drops windows that have elapsed and returns how many were removed.
func (g *MemoryGate) Sweep() int {
	now := g.now()
	removed := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		for key, w := range s.windows {
			if now.Sub(w.start) >= w.span {
				delete(s.windows, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (g *MemoryGate) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

func (g *MemoryGate) Close() {
	g.once.Do(func() { close(g.stop) })
}
