// Package tab hosts one recorder engine per browser tab and bridges it to the
// page over a websocket.
package tab

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/domain"
	"github.com/ashureev/chat-recorder/internal/recorder"
	"github.com/ashureev/chat-recorder/internal/schedule"
	"github.com/ashureev/chat-recorder/internal/vocab"
)

// ErrTabClosed is returned for work sent to a closed tab.
var ErrTabClosed = errors.New("tab closed")

// Options configures tabs created by a Manager.
type Options struct {
	Config         recorder.Config
	Matcher        *vocab.Matcher
	Emitter        recorder.Emitter
	QueueSize      int // loop queue depth
	OutboundBuffer int // frames buffered per page connection
	Logger         *slog.Logger
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Config == (recorder.Config{}) {
		o.Config = recorder.DefaultConfig()
	}
	if o.Matcher == nil {
		o.Matcher = vocab.MustCompile(vocab.Default())
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = 64
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Tab owns the mirrored document and engine of one browser tab. The
// document and engine are only touched from the tab's loop.
type Tab struct {
	id     string
	loop   *schedule.Loop
	doc    *dom.Document
	engine *recorder.Engine
	logger *slog.Logger
	now    func() time.Time
	outCap int

	mu       sync.Mutex
	out      chan Outbound
	lastSeen time.Time
	closed   bool
}

// New creates a tab and starts its loop.
func New(id string, opts Options) *Tab {
	opts = opts.withDefaults()
	logger := opts.Logger.With("tab_id", id)
	t := &Tab{
		id:       id,
		loop:     schedule.NewLoop(opts.QueueSize, logger),
		doc:      dom.New(""),
		logger:   logger,
		now:      opts.Now,
		outCap:   opts.OutboundBuffer,
		lastSeen: opts.Now(),
	}
	t.engine = recorder.NewEngine(t.doc, recorder.Options{
		Config:    opts.Config,
		Scheduler: schedule.NewLoopScheduler(t.loop),
		Matcher:   opts.Matcher,
		Notifier:  pageNotifier{t},
		Emitter:   opts.Emitter,
		Logger:    logger,
	})
	return t
}

// ID returns the tab identifier.
func (t *Tab) ID() string { return t.id }

// Attach connects a page and returns its outbound frame queue and a detach
// func. A newer attachment replaces (and closes) the previous queue.
func (t *Tab) Attach() (<-chan Outbound, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Outbound, t.outCap)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	if t.out != nil {
		close(t.out)
		t.logger.Info("[TAB] Page connection replaced")
	}
	t.out = ch
	t.lastSeen = t.now()

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.out == ch {
			close(ch)
			t.out = nil
			t.lastSeen = t.now()
		}
	}
}

// Connected reports whether a page is attached.
func (t *Tab) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out != nil
}

// Send queues a frame for the page without blocking.
func (t *Tab) Send(f Outbound) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.out == nil {
		return fmt.Errorf("%s: page not connected: %w", f.Type, recorder.ErrDeliveryUnreachable)
	}
	select {
	case t.out <- f:
		return nil
	default:
		return fmt.Errorf("%s: outbound queue full: %w", f.Type, recorder.ErrDeliveryUnreachable)
	}
}

func (t *Tab) touch() {
	t.mu.Lock()
	t.lastSeen = t.now()
	t.mu.Unlock()
}

// Idle reports whether the tab has no page and has been quiet for ttl.
func (t *Tab) Idle(now time.Time, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out == nil && now.Sub(t.lastSeen) > ttl
}

// Receive queues an inbound frame for the loop. Frames are handled in
// arrival order.
func (t *Tab) Receive(in Inbound) error {
	t.touch()
	if !t.loop.Post(func() { t.dispatch(in) }) {
		return ErrTabClosed
	}
	return nil
}

func (t *Tab) dispatch(in Inbound) {
	switch in.Type {
	case FrameSnapshot:
		t.applySnapshot(in.URL, in.HTML)
	case FrameMutations:
		t.applyMutations(dom.Batch{Seq: in.Seq, Records: in.Records})
	case FrameClick:
		if err := t.selectPath(in.Path); err != nil {
			t.reply(Outbound{Type: FrameError, Message: err.Error()})
		}
	case FrameNavigate:
		t.engine.Navigate()
		t.reply(Outbound{Type: FrameResync})
	case FrameStartSelection:
		t.engine.StartSelection()
	case FrameStopRecording:
		t.engine.Stop()
	case FramePing:
		t.reply(Outbound{Type: FramePong})
	default:
		t.logger.Debug("[TAB] Unknown frame", "type", in.Type)
		t.reply(Outbound{Type: FrameError, Message: "unknown frame type: " + in.Type})
	}
}

func (t *Tab) reply(f Outbound) {
	if err := t.Send(f); err != nil {
		t.logger.Debug("[TAB] Frame not delivered", "type", f.Type, "error", err)
	}
}

// applySnapshot replaces the mirror. A different URL is a navigation and ends
// any recording first; the same URL is a resync the engine recovers from.
func (t *Tab) applySnapshot(url, markup string) {
	prev := t.doc.URL()
	if prev != "" && url != "" && url != prev {
		t.logger.Info("[TAB] Page navigated", "from", prev, "to", url)
		t.engine.Navigate()
	}
	if err := t.doc.Reset(markup, url); err != nil {
		t.logger.Warn("[TAB] Snapshot rejected", "error", err)
		t.reply(Outbound{Type: FrameError, Message: err.Error()})
		return
	}
	t.logger.Debug("[TAB] Snapshot applied", "url", t.doc.URL(), "bytes", len(markup))
}

func (t *Tab) applyMutations(b dom.Batch) {
	err := t.doc.Apply(b)
	switch {
	case err == nil:
	case errors.Is(err, dom.ErrSequenceGap):
		t.logger.Info("[TAB] Mutation gap, requesting resync", "seq", b.Seq)
		t.reply(Outbound{Type: FrameResync})
	default:
		t.logger.Warn("[TAB] Mutation batch failed, requesting resync", "seq", b.Seq, "error", err)
		t.reply(Outbound{Type: FrameError, Message: err.Error()})
		t.reply(Outbound{Type: FrameResync})
	}
}

func (t *Tab) selectPath(raw string) error {
	p, err := dom.ParsePath(raw)
	if err != nil {
		return err
	}
	target, err := t.doc.Resolve(p)
	if err != nil {
		return err
	}
	return t.engine.Select(target)
}

func (t *Tab) do(fn func()) error {
	if err := t.loop.Do(fn); err != nil {
		return ErrTabClosed
	}
	return nil
}

// StartSelection enters the selection phase.
func (t *Tab) StartSelection() error {
	return t.do(t.engine.StartSelection)
}

// Select resolves the container from the node at path and starts recording.
func (t *Tab) Select(path string) error {
	var err error
	if doErr := t.do(func() { err = t.selectPath(path) }); doErr != nil {
		return doErr
	}
	return err
}

// Stop ends recording.
func (t *Tab) Stop() error {
	return t.do(t.engine.Stop)
}

// Status returns the externally visible state of the tab.
func (t *Tab) Status() (domain.TabStatus, error) {
	var st domain.TabStatus
	err := t.do(func() {
		stats := t.engine.Stats()
		st = domain.TabStatus{
			TabID:      t.id,
			URL:        t.doc.URL(),
			Phase:      stats.Phase.String(),
			Status:     stats.Phase.Label(),
			Tracked:    stats.Tracked,
			Catalogued: stats.Catalogued,
			Emitted:    stats.Emitted,
			Recoveries: stats.Recoveries,
		}
		if c := t.engine.Container(); c != nil {
			st.ContainerPath = dom.PathOf(c).String()
		}
	})
	st.Connected = t.Connected()
	return st, err
}

// Close stops recording, ends the loop and drops the page connection.
func (t *Tab) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	if err := t.do(t.engine.Stop); err != nil {
		t.logger.Debug("[TAB] Engine already stopped", "error", err)
	}
	t.loop.Close()

	t.mu.Lock()
	if t.out != nil {
		close(t.out)
		t.out = nil
	}
	t.mu.Unlock()
	t.logger.Info("[TAB] Closed")
}

// pageNotifier turns engine signals into outbound frames.
type pageNotifier struct{ t *Tab }

func (n pageNotifier) ShowHint(text string) error {
	return n.t.Send(Outbound{Type: FrameShowHint, Text: text})
}

func (n pageNotifier) HideHint() error {
	return n.t.Send(Outbound{Type: FrameHideHint})
}

func (n pageNotifier) RecordingStarted() error {
	return n.t.Send(Outbound{Type: FrameRecordingStarted})
}

func (n pageNotifier) RecordingStopped(reason string) error {
	return n.t.Send(Outbound{Type: FrameRecordingStopped, Reason: reason})
}
