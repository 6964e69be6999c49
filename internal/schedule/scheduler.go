package schedule

import (
	"sync"
	"time"
)

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented it from running.
	Stop() bool
}

// Scheduler creates timers and tells the time.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// LoopScheduler fires timer callbacks on a Loop, so they never race with
// other work posted to it.
type LoopScheduler struct {
	loop *Loop
}

// NewLoopScheduler returns a scheduler bound to loop.
func NewLoopScheduler(loop *Loop) *LoopScheduler {
	return &LoopScheduler{loop: loop}
}

// Now returns the wall clock.
func (s *LoopScheduler) Now() time.Time { return time.Now() }

// AfterFunc runs fn on the loop after d. Stop, when called from the loop,
// guarantees fn does not run even if the timer already fired and its
// callback is waiting in the queue.
func (s *LoopScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		s.loop.Post(func() {
			if t.markFired() {
				fn()
			}
		})
	})
	return t
}

type loopTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	fired   bool
}

func (t *loopTimer) markFired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.fired = true
	return true
}

func (t *loopTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}
