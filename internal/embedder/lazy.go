package embedder

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lazy defers creating an embedder until first use. Concurrent first calls
// share one construction; a failed construction is retried on the next call.
type Lazy struct {
	factory func() (Embedder, error)
	group   singleflight.Group

	mu       sync.RWMutex
	embedder Embedder
}

// NewLazy wraps factory
func NewLazy(factory func() (Embedder, error)) *Lazy {
	return &Lazy{factory: factory}
}

// NewLazyFromConfig defers New(cfg)
func NewLazyFromConfig(cfg Config) *Lazy {
	return NewLazy(func() (Embedder, error) { return New(cfg) })
}

// Get returns the embedder, constructing it once
func (l *Lazy) Get(ctx context.Context) (Embedder, error) {
	l.mu.RLock()
	e := l.embedder
	l.mu.RUnlock()
	if e != nil {
		return e, nil
	}

	ch := l.group.DoChan("init", func() (any, error) {
		l.mu.RLock()
		existing := l.embedder
		l.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		created, err := l.factory()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.embedder = created
		l.mu.Unlock()
		return created, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Embedder), nil
	}
}

// Initialized reports whether the embedder has been created
func (l *Lazy) Initialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.embedder != nil
}

// Close closes the embedder if it was created
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder == nil {
		return nil
	}
	err := l.embedder.Close()
	l.embedder = nil
	return err
}
