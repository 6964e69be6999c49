package schedule

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop(8, nil)
	defer l.Close()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(func() {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	for i, v := range got {
		if v != i {
			t.Errorf("Expected %d at position %d, got %d", i, i, v)
		}
	}
	if len(got) != 5 {
		t.Errorf("Expected 5 results, got %d", len(got))
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	l := NewLoop(1, nil)
	defer l.Close()

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Do(func() { ran = true }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !ran {
		t.Error("Expected loop to keep running after panic")
	}
}

func TestLoopClosed(t *testing.T) {
	l := NewLoop(1, nil)
	l.Close()
	l.Close()

	if !l.Closed() {
		t.Error("Expected loop to report closed")
	}
	if l.Post(func() {}) {
		t.Error("Expected Post to fail on closed loop")
	}
	if err := l.Do(func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Expected ErrLoopClosed, got %v", err)
	}
}

func TestLoopSchedulerFiresOnLoop(t *testing.T) {
	l := NewLoop(4, nil)
	defer l.Close()
	s := NewLoopScheduler(l)

	fired := make(chan struct{})
	s.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for timer")
	}
}

func TestLoopSchedulerStop(t *testing.T) {
	l := NewLoop(4, nil)
	defer l.Close()
	s := NewLoopScheduler(l)

	var fired atomic.Bool
	var stopped bool
	if err := l.Do(func() {
		timer := s.AfterFunc(time.Hour, func() { fired.Store(true) })
		stopped = timer.Stop()
	}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !stopped {
		t.Error("Expected Stop to report true for pending timer")
	}
	if fired.Load() {
		t.Error("Expected stopped timer not to fire")
	}
}

func TestFakeAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []string

	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	f.AfterFunc(time.Second, func() {
		order = append(order, "a")
		f.AfterFunc(500*time.Millisecond, func() { order = append(order, "a2") })
	})
	stop := f.AfterFunc(1500*time.Millisecond, func() { order = append(order, "never") })

	if !stop.Stop() {
		t.Error("Expected Stop to succeed")
	}
	if stop.Stop() {
		t.Error("Expected second Stop to report false")
	}

	f.Advance(1200 * time.Millisecond)
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("Expected [a], got %v", order)
	}
	if f.Pending() != 2 {
		t.Errorf("Expected 2 pending timers, got %d", f.Pending())
	}

	f.Advance(time.Second)
	want := []string{"a", "a2", "b"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, order)
			break
		}
	}
	if f.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", f.Pending())
	}
	if got := f.Now().Sub(time.Unix(0, 0)); got != 2200*time.Millisecond {
		t.Errorf("Expected clock at 2.2s, got %v", got)
	}
}
