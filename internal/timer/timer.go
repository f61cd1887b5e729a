// Package timer provides the single-shot, pausable countdown used to bound
// a player's time to act. It mirrors the turn-timer pattern of a live
// session: a single underlying time.Timer, a mutex guarding its
// start/remaining bookkeeping, and explicit Pause/Resume that preserve the
// time left rather than restarting the clock. On top of that it layers a
// one-second tick, since callers need to push a countdown display to
// clients without polling.
package timer

import (
	"math"
	"sync"
	"time"
)

const tickInterval = time.Second

// Countdown is a single cancellable, pausable, ticking timer. The zero
// value is not usable; construct one with New.
type Countdown struct {
	mu         sync.Mutex
	duration   time.Duration
	remaining  time.Duration
	startedAt  time.Time
	deadline   *time.Timer
	ticker     *time.Ticker
	generation uint64
	running    bool
	onTick     func(secondsLeft int)
	onExpire   func()
}

// New builds a Countdown of the given duration. onTick, if non-nil, is
// invoked with the integer ceiling of the time remaining once per second,
// starting immediately with ⌈duration⌉ when Start is called. onExpire, if
// non-nil, fires at most once, when the countdown reaches zero without
// having been paused or cleared first.
func New(duration time.Duration, onTick func(secondsLeft int), onExpire func()) *Countdown {
	return &Countdown{
		duration:  duration,
		remaining: duration,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start arms the countdown from its full duration, firing an immediate tick
// carrying ⌈duration⌉. Calling Start while already running replaces the
// in-flight timer.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = c.duration
	c.armLocked(c.remaining)
}

// Pause stops future ticks and the completion callback, reducing
// `remaining` to the integer ceiling of what was left.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.remaining = ceilSeconds(c.remainingLocked())
	c.stopLocked()
}

// Resume starts a fresh countdown of whatever time was remaining at the
// last Pause. Resuming a countdown that isn't paused, or that has no time
// left, is a no-op.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.remaining <= 0 || c.startedAt.IsZero() {
		return
	}
	c.armLocked(c.remaining)
}

// Clear cancels all future callbacks idempotently. No tick or expiry fires
// after Clear, even if already in flight.
func (c *Countdown) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = 0
}

// GetRemaining returns ⌈remaining⌉ whether paused or running; 0 after
// natural completion or Clear.
func (c *Countdown) GetRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(ceilSeconds(c.remainingLocked()) / time.Second)
}

// Running reports whether the countdown currently has an armed timer.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) remainingLocked() time.Duration {
	if !c.running {
		return c.remaining
	}
	left := c.remaining - time.Since(c.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// armLocked starts a fresh underlying deadline timer and tick ticker for d;
// callers must hold mu. generation guards against a stale goroutine from a
// prior arm firing after Clear/Start/Pause replaced it.
func (c *Countdown) armLocked(d time.Duration) {
	if d <= 0 {
		c.running = false
		return
	}
	c.startedAt = time.Now()
	c.running = true
	c.generation++
	gen := c.generation

	c.deadline = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.running = false
		c.remaining = 0
		expire := c.onExpire
		c.mu.Unlock()
		if expire != nil {
			expire()
		}
	})

	if c.onTick != nil {
		c.onTick(int(ceilSeconds(d) / time.Second))
		ticker := time.NewTicker(tickInterval)
		c.ticker = ticker
		go c.tickLoop(ticker, gen)
	}
}

func (c *Countdown) tickLoop(ticker *time.Ticker, gen uint64) {
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		if c.generation != gen || !c.running {
			c.mu.Unlock()
			return
		}
		left := c.remainingLocked()
		onTick := c.onTick
		c.mu.Unlock()

		secs := int(ceilSeconds(left) / time.Second)
		if onTick != nil {
			onTick(secs)
		}
		if secs <= 0 {
			return
		}
	}
}

// stopLocked stops any in-flight deadline timer and ticker and invalidates
// their generation so late-firing goroutines become no-ops; callers must
// hold mu.
func (c *Countdown) stopLocked() {
	c.generation++
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.running = false
}

// ceilSeconds rounds d up to the nearest whole second, never below zero.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	secs := math.Ceil(float64(d) / float64(time.Second))
	return time.Duration(secs) * time.Second
}
