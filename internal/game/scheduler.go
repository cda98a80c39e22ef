// internal/game/scheduler.go
package game

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback. It reports whether the callback was stopped
// before it ran.
type CancelFunc func() bool

// Scheduler runs deferred callbacks. Games use the wall clock by default; tests swap
// in a manual clock to expire counter-play windows deterministically.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) CancelFunc
}

type wallClock struct{}

// WallClock returns a Scheduler backed by time.AfterFunc.
func WallClock() Scheduler {
	return wallClock{}
}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) AfterFunc(d time.Duration, f func()) CancelFunc {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// ManualClock is a Scheduler whose time only moves when Advance is called. Due
// callbacks run synchronously on the caller's goroutine, earliest first.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTask
}

type manualTask struct {
	at   time.Time
	f    func()
	done bool
}

// NewManualClock returns a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTask{at: c.now.Add(d), f: f}
	c.tasks = append(c.tasks, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

// Advance moves the clock forward by d, running every callback that falls due. The
// clock's lock is not held while a callback runs, so callbacks may schedule more work.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTask
		for _, t := range c.tasks {
			if t.done || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.compact()
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// Pending returns the number of callbacks still scheduled.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

// compact drops finished tasks.
// Assumes c.mu is held.
func (c *ManualClock) compact() {
	live := c.tasks[:0]
	for _, t := range c.tasks {
		if !t.done {
			live = append(live, t)
		}
	}
	c.tasks = live
}
