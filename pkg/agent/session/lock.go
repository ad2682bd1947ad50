package session

import (
	"context"
	"slices"
	"sync"
)

// turnLock is a mutex that hands ownership to waiters in arrival order and lets a
// waiter give up when its context ends.
type turnLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func (l *turnLock) acquire(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		if i := slices.Index(l.waiters, ch); i >= 0 {
			l.waiters = slices.Delete(l.waiters, i, i+1)
			l.mu.Unlock()
			return ctx.Err()
		}
		l.mu.Unlock()
		// Ownership was handed over while we were cancelled; pass it on.
		l.release()
		return ctx.Err()
	}
}

func (l *turnLock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.waiters) == 0 {
		l.held = false
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	close(next)
}
