package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCountdownFiresOnExpire(t *testing.T) {
	var fired int32
	c := New(30*time.Millisecond, nil, func() { atomic.StoreInt32(&fired, 1) })
	c.Start()

	time.Sleep(80 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("expected onExpire to fire")
	}
	if c.Running() {
		t.Fatal("countdown should no longer be running after expiry")
	}
	if got := c.GetRemaining(); got != 0 {
		t.Fatalf("expected 0 remaining after expiry, got %d", got)
	}
}

func TestCountdownClearPreventsExpiry(t *testing.T) {
	var fired int32
	c := New(30*time.Millisecond, nil, func() { atomic.StoreInt32(&fired, 1) })
	c.Start()
	c.Clear()

	time.Sleep(80 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("onExpire should not fire after Clear")
	}
	if got := c.GetRemaining(); got != 0 {
		t.Fatalf("expected 0 remaining after Clear, got %d", got)
	}
}

func TestCountdownPauseResumePreservesRemaining(t *testing.T) {
	var fired int32
	c := New(2*time.Second, nil, func() { atomic.StoreInt32(&fired, 1) })
	c.Start()

	time.Sleep(100 * time.Millisecond)
	c.Pause()

	remaining := c.GetRemaining()
	if remaining <= 0 || remaining > 2 {
		t.Fatalf("unexpected remaining after pause: %d", remaining)
	}

	// While paused, expiry must not fire even past the original duration.
	time.Sleep(2100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("onExpire fired while paused")
	}

	c.Resume()
	time.Sleep(time.Duration(remaining)*time.Second + 200*time.Millisecond)

	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("expected onExpire to fire after resume")
	}
}

func TestCountdownResumeWithoutPauseIsNoop(t *testing.T) {
	c := New(50*time.Millisecond, nil, nil)
	c.Resume()
	if c.Running() {
		t.Fatal("Resume on a never-started countdown should not arm a timer")
	}
}

func TestCountdownRestartReplacesInFlightTimer(t *testing.T) {
	var fired int32
	c := New(40*time.Millisecond, nil, func() { atomic.AddInt32(&fired, 1) })
	c.Start()
	c.Start()

	time.Sleep(120 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected exactly one expiry, got %d", fired)
	}
}

func TestCountdownTickFiresImmediatelyAndMonotoneNonIncreasing(t *testing.T) {
	var ticks []int
	var mu chan struct{} = make(chan struct{}, 1)
	mu <- struct{}{}

	record := func(secs int) {
		<-mu
		ticks = append(ticks, secs)
		mu <- struct{}{}
	}

	c := New(2*time.Second, record, nil)
	c.Start()

	time.Sleep(2200 * time.Millisecond)

	<-mu
	defer func() { mu <- struct{}{} }()

	if len(ticks) == 0 {
		t.Fatal("expected at least one tick")
	}
	if ticks[0] != 2 {
		t.Fatalf("expected first tick to carry ceil(duration)=2, got %d", ticks[0])
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] > ticks[i-1] {
			t.Fatalf("tick values must be monotone non-increasing: %v", ticks)
		}
	}
}

func TestCountdownNoTickAfterClear(t *testing.T) {
	var calls int32
	c := New(1*time.Second, func(int) { atomic.AddInt32(&calls, 1) }, nil)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Clear()

	before := atomic.LoadInt32(&calls)
	time.Sleep(1200 * time.Millisecond)
	after := atomic.LoadInt32(&calls)

	if after != before {
		t.Fatalf("tick fired after Clear: before=%d after=%d", before, after)
	}
}
