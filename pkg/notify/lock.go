package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Locker serializes notification delivery. Lock returns a context that
// records ownership; passing that context to Lock again re-enters the lock
// instead of deadlocking. Unlock must be called with the context Lock
// returned.
type Locker interface {
	Lock(ctx context.Context) context.Context
	Unlock(ctx context.Context)
}

type holderKey struct{ l *Lock }

// holder is one acquisition of a Lock; only the goroutine chain that
// carries it in its context touches depth.
type holder struct {
	depth int
}

// Lock is a re-entrant mutex whose ownership travels in a context.
type Lock struct {
	mu    sync.Mutex
	owner atomic.Pointer[holder]
}

var defaultLock Lock

// Default returns the process-wide notification lock shared by all hubs
// that are not given a lock of their own. It needs no initialization and
// is never torn down.
func Default() *Lock {
	return &defaultLock
}

// Lock acquires l, or re-enters it if ctx already holds it.
func (l *Lock) Lock(ctx context.Context) context.Context {
	if h, ok := ctx.Value(holderKey{l}).(*holder); ok && l.owner.Load() == h {
		h.depth++
		return ctx
	}

	l.mu.Lock()
	h := &holder{depth: 1}
	l.owner.Store(h)
	return context.WithValue(ctx, holderKey{l}, h)
}

// Unlock releases one level of l. It panics if ctx does not hold l.
func (l *Lock) Unlock(ctx context.Context) {
	h, ok := ctx.Value(holderKey{l}).(*holder)
	if !ok || l.owner.Load() != h {
		panic("notify: unlock of unheld lock")
	}

	h.depth--
	if h.depth == 0 {
		l.owner.Store(nil)
		l.mu.Unlock()
	}
}

// Held reports whether ctx currently holds l.
func (l *Lock) Held(ctx context.Context) bool {
	h, ok := ctx.Value(holderKey{l}).(*holder)
	return ok && l.owner.Load() == h
}
