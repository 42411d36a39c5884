package semaphore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	s := New(5, 10*time.Second)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.timeout != 10*time.Second {
		t.Errorf("timeout = %v; want 10s", s.timeout)
	}
	if cap(s.sem) != 5 || len(s.sem) != 5 {
		t.Errorf("cap = %d, len = %d; want 5, 5", cap(s.sem), len(s.sem))
	}
	if s.InUse() != 0 {
		t.Errorf("InUse() = %d; want 0", s.InUse())
	}
}

func TestTryAcquire(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		capacity int
	}{
		{"capacity-1", 1},
		{"capacity-5", 5},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := New(tc.capacity, time.Second)
			for i := 0; i < tc.capacity; i++ {
				if !s.TryAcquire() {
					t.Fatalf("TryAcquire() %d failed", i)
				}
			}
			if s.TryAcquire() {
				t.Fatal("TryAcquire() succeeded on exhausted slots")
			}
			if s.InUse() != tc.capacity {
				t.Errorf("InUse() = %d; want %d", s.InUse(), tc.capacity)
			}

			s.Release()
			if !s.TryAcquire() {
				t.Error("TryAcquire() failed after Release()")
			}
		})
	}
}

func TestAcquire_Timeout(t *testing.T) {
	t.Parallel()

	s := New(1, 20*time.Millisecond)
	s.TryAcquire()

	start := time.Now()
	if err := s.Acquire(context.Background()); err == nil {
		t.Fatal("Acquire() succeeded on exhausted slots")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Acquire() returned before the timeout")
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	t.Parallel()

	s := New(1, time.Minute)
	s.TryAcquire()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Acquire(ctx); err != context.Canceled {
		t.Errorf("Acquire() error = %v; want context.Canceled", err)
	}
}

func TestDrain(t *testing.T) {
	t.Parallel()

	s := New(3, time.Second)
	s.TryAcquire()
	s.TryAcquire()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		s.Release()
		s.Release()
	}()

	if err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	wg.Wait()

	if s.TryAcquire() {
		t.Error("TryAcquire() succeeded after Drain()")
	}
}

func TestDrain_Timeout(t *testing.T) {
	t.Parallel()

	s := New(2, 10*time.Millisecond)
	s.TryAcquire()

	if err := s.Drain(context.Background()); err == nil {
		t.Fatal("Drain() succeeded with a slot still taken")
	}
	if s.InUse() != 1 {
		t.Errorf("InUse() after failed Drain() = %d; want 1", s.InUse())
	}
}

func TestNilSlots(t *testing.T) {
	t.Parallel()

	var s *ClientSlots
	if !s.TryAcquire() {
		t.Error("nil TryAcquire() = false")
	}
	if err := s.Acquire(context.Background()); err != nil {
		t.Errorf("nil Acquire() error = %v", err)
	}
	s.Release()
	if err := s.Drain(context.Background()); err != nil {
		t.Errorf("nil Drain() error = %v", err)
	}
}
