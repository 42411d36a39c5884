// Package notify delivers completion and exception events of asynchronous
// I/O operations to the object that started them.
//
// A Hub owns at most one IOHandle, the delegate performing the I/O, and
// releases it when the hub is closed. All deliveries through any hub are
// serialized by a Locker, by default the process-wide Default() lock, so
// a handler never runs concurrently with another handler.
package notify

import (
	"context"
	"reflect"
	"runtime"
	"sync"

	"dominicbreuker/cas/pkg/log"
)

// IOHandle is the delegate attached to a hub. Release is called exactly
// once, by the hub that owns it.
type IOHandle interface {
	Release()
}

// Handler receives notifications. The context passed in holds the
// notification lock, so a handler may deliver further notifications
// through a hub sharing that lock without deadlocking.
type Handler interface {
	CompletionNotify(ctx context.Context)
	CompletionNotifyData(ctx context.Context, typ uint, count uint64, data []byte)
	ExceptionNotify(ctx context.Context, status log.Status, msg string)
	ExceptionNotifyData(ctx context.Context, status log.Status, msg string, typ uint, count uint64)
}

// Base implements Handler by logging every event. Embed it in a handler
// and override the events of interest.
type Base struct {
	Logger *log.Logger
}

var _ Handler = Base{}

func (b Base) CompletionNotify(ctx context.Context) {
	b.Logger.WarnMsg("IO completion with no handler installed?")
}

// CompletionNotifyData logs the payload by identity only; data is never
// retained.
func (b Base) CompletionNotifyData(ctx context.Context, typ uint, count uint64, data []byte) {
	b.Logger.WarnMsg("IO completion with no handler installed? type=%d count=%d data=%p", typ, count, data)
}

func (b Base) ExceptionNotify(ctx context.Context, status log.Status, msg string) {
	b.Logger.Signal(status, msg)
}

func (b Base) ExceptionNotifyData(ctx context.Context, status log.Status, msg string, typ uint, count uint64) {
	_, file, line, _ := runtime.Caller(0)
	b.Logger.SignalFormatted(status, file, line, "%s type=%d count=%d", msg, typ, count)
}

// Hub is the delivery point for one consumer of asynchronous I/O.
type Hub struct {
	lock    Locker
	handler Handler
	logger  *log.Logger

	mu sync.Mutex
	io IOHandle
}

var _ Locker = (*Lock)(nil)

// New creates a hub. A nil handler logs every event, a nil lock means the
// process-wide Default() lock.
func New(handler Handler, logger *log.Logger, lock Locker) *Hub {
	if handler == nil {
		handler = Base{Logger: logger}
	}
	if lock == nil {
		lock = Default()
	}

	return &Hub{
		lock:    lock,
		handler: handler,
		logger:  logger,
	}
}

// Attach gives ownership of io to the hub. A delegate that is already
// attached is released first.
func (h *Hub) Attach(io IOHandle) {
	h.mu.Lock()
	prev := h.io
	h.io = io
	h.mu.Unlock()

	if prev != nil && !sameHandle(prev, io) {
		h.logger.WarnMsg("Replacing attached IO handle %T", prev)
		prev.Release()
	}
}

// sameHandle reports whether a and b are the same delegate. Values of
// uncomparable types are never the same.
func sameHandle(a, b IOHandle) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// Detach takes the delegate back from the hub. The caller becomes
// responsible for releasing it.
func (h *Hub) Detach() IOHandle {
	h.mu.Lock()
	defer h.mu.Unlock()

	io := h.io
	h.io = nil
	return io
}

// Attached reports whether a delegate is attached.
func (h *Hub) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.io != nil
}

// Close releases the attached delegate, if any. The reference is cleared
// before Release runs, so the delegate never sees a hub that still points
// at it and a second Close is a no-op.
func (h *Hub) Close() {
	io := h.Detach()
	if io != nil {
		io.Release()
	}
}

// Lock acquires the notification lock. Use it only to group several
// notifications into one atomic sequence, passing the returned context to
// them and to Unlock.
func (h *Hub) Lock(ctx context.Context) context.Context {
	return h.lock.Lock(ctx)
}

// Unlock releases the notification lock acquired with Lock.
func (h *Hub) Unlock(ctx context.Context) {
	h.lock.Unlock(ctx)
}

// CompletionNotify delivers a completion without payload.
func (h *Hub) CompletionNotify(ctx context.Context) {
	ctx = h.lock.Lock(ctx)
	defer h.lock.Unlock(ctx)

	h.handler.CompletionNotify(ctx)
}

// CompletionNotifyData delivers a completion carrying count elements of
// type typ. data is only valid during the call.
func (h *Hub) CompletionNotifyData(ctx context.Context, typ uint, count uint64, data []byte) {
	ctx = h.lock.Lock(ctx)
	defer h.lock.Unlock(ctx)

	h.handler.CompletionNotifyData(ctx, typ, count, data)
}

// ExceptionNotify delivers a failed operation.
func (h *Hub) ExceptionNotify(ctx context.Context, status log.Status, msg string) {
	ctx = h.lock.Lock(ctx)
	defer h.lock.Unlock(ctx)

	h.handler.ExceptionNotify(ctx, status, msg)
}

// ExceptionNotifyData delivers a failed operation on count elements of
// type typ.
func (h *Hub) ExceptionNotifyData(ctx context.Context, status log.Status, msg string, typ uint, count uint64) {
	ctx = h.lock.Lock(ctx)
	defer h.lock.Unlock(ctx)

	h.handler.ExceptionNotifyData(ctx, status, msg, typ, count)
}
