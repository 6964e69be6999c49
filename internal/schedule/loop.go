// Package schedule serializes work onto a single goroutine and provides the
// timer abstraction the recorder uses for its deadlines.
package schedule

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrLoopClosed is returned when work is posted to a closed loop.
var ErrLoopClosed = errors.New("loop closed")

// Loop runs posted functions one at a time on a dedicated goroutine.
// Everything a tab owns (document, engine state) is touched only from here.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop starts a loop with the given queue depth.
func NewLoop(buffer int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		queue:  make(chan func(), buffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("[LOOP] Recovered from panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Post queues fn. It blocks while the queue is full and returns false once
// the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return.
// It must not be called from the loop itself.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.exited:
		// The loop may have exited after dequeuing fn but before running it.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Close stops the loop and waits for the running function, if any, to finish.
// Queued functions that have not started are dropped. Close must not be
// called from the loop.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	<-l.exited
}
