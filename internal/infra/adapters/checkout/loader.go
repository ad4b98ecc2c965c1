// File: internal/infra/adapters/checkout/loader.go
package checkout

import (
	"context"
	"sync"
	"time"
)

const defaultBootstrapTimeout = 10 * time.Second

// flight is one in-progress load shared by every caller racing on it.
type flight[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// bootstrap lazily fetches a provider's externally hosted checkout capability
// and caches it for the process lifetime: absent -> loading -> loaded, never
// torn down. Concurrent callers share a single in-flight load. A failed load
// is not cached; the next attempt starts a fresh one.
type bootstrap[T any] struct {
	mu      sync.Mutex
	timeout time.Duration
	fetch   func(ctx context.Context) (T, error)
	loaded  bool
	val     T
	cur     *flight[T]
}

func newBootstrap[T any](timeout time.Duration, fetch func(ctx context.Context) (T, error)) *bootstrap[T] {
	if timeout <= 0 {
		timeout = defaultBootstrapTimeout
	}
	return &bootstrap[T]{timeout: timeout, fetch: fetch}
}

// Get returns the loaded capability, waiting on the shared in-flight load
// when one is running. The load itself is bounded by the bootstrap timeout
// regardless of the caller's ctx.
func (b *bootstrap[T]) Get(ctx context.Context) (T, error) {
	b.mu.Lock()
	if b.loaded {
		v := b.val
		b.mu.Unlock()
		return v, nil
	}
	fl := b.cur
	if fl == nil {
		fl = &flight[T]{done: make(chan struct{})}
		b.cur = fl
		go b.run(fl)
	}
	b.mu.Unlock()

	select {
	case <-fl.done:
		return fl.val, fl.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (b *bootstrap[T]) run(fl *flight[T]) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	fl.val, fl.err = b.fetch(ctx)

	b.mu.Lock()
	if fl.err == nil {
		b.val = fl.val
		b.loaded = true
	}
	b.cur = nil
	b.mu.Unlock()
	close(fl.done)
}
