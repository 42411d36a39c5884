// Package semaphore limits how many clients a server serves at once.
package semaphore

import (
	"context"
	"fmt"
	"time"
)

// ClientSlots hands out a fixed number of client slots. The reactor takes
// slots without waiting; shutdown waits for all of them to come back.
type ClientSlots struct {
	sem     chan struct{}
	timeout time.Duration
}

// New creates n free slots. timeout bounds Acquire and Drain.
func New(n int, timeout time.Duration) *ClientSlots {
	sem := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
	}
	return &ClientSlots{sem: sem, timeout: timeout}
}

// TryAcquire takes a slot if one is free. A nil ClientSlots always succeeds.
func (s *ClientSlots) TryAcquire() bool {
	if s == nil {
		return true
	}

	select {
	case <-s.sem:
		return true
	default:
		return false
	}
}

// Acquire waits for a slot until the timeout expires or ctx is cancelled.
func (s *ClientSlots) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case <-s.sem:
		return nil
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("timeout acquiring client slot after %v", s.timeout)
	}
}

// Release returns a slot.
func (s *ClientSlots) Release() {
	if s == nil {
		return
	}
	s.sem <- struct{}{}
}

// InUse returns the number of slots currently taken.
func (s *ClientSlots) InUse() int {
	if s == nil {
		return 0
	}
	return cap(s.sem) - len(s.sem)
}

// Drain waits until every slot is free and keeps them, so no new client
// can be admitted. It gives up after the timeout and returns the slots it
// collected.
func (s *ClientSlots) Drain(ctx context.Context) error {
	if s == nil {
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n := cap(s.sem)
	for i := 0; i < n; i++ {
		select {
		case <-s.sem:
		case <-timeoutCtx.Done():
			busy := n - i
			for ; i > 0; i-- {
				s.Release()
			}
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for %d clients: %w", busy, ctx.Err())
			}
			return fmt.Errorf("waiting for %d clients: timeout after %v", busy, s.timeout)
		}
	}
	return nil
}
