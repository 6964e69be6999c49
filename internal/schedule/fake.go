package schedule

import (
	"sort"
	"time"
)

// Fake is a manually advanced Scheduler for tests. Callbacks run
// synchronously inside Advance, in deadline order.
type Fake struct {
	now    time.Time
	seq    uint64
	timers []*fakeTimer
}

// NewFake returns a fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time { return f.now }

// AfterFunc registers fn to run once the clock passes now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.seq++
	t := &fakeTimer{fake: f, at: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, running every timer that comes due,
// including timers scheduled by callbacks within the window.
func (f *Fake) Advance(d time.Duration) {
	end := f.now.Add(d)
	for {
		t := f.next()
		if t == nil || t.at.After(end) {
			break
		}
		f.remove(t)
		if t.at.After(f.now) {
			f.now = t.at
		}
		t.fn()
	}
	f.now = end
}

// Pending returns the number of timers that have not fired or been stopped.
func (f *Fake) Pending() int { return len(f.timers) }

func (f *Fake) next() *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].at.Equal(f.timers[j].at) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].at.Before(f.timers[j].at)
	})
	return f.timers[0]
}

func (f *Fake) remove(t *fakeTimer) bool {
	for i, c := range f.timers {
		if c == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	fake *Fake
	at   time.Time
	seq  uint64
	fn   func()
}

func (t *fakeTimer) Stop() bool {
	return t.fake.remove(t)
}
