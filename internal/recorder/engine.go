package recorder

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/chat-recorder/internal/domain"
	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/extract"
	"github.com/ashureev/chat-recorder/internal/schedule"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"golang.org/x/net/html"
)

var (
	// ErrNoContainerFound is returned when no ancestor qualifies as the conversation container.
	ErrNoContainerFound = errors.New("no container found")
	// ErrContainerLost reports that the container was detached and no replacement was found.
	ErrContainerLost = errors.New("container lost")
	// ErrDeliveryUnreachable is returned by a Notifier whose page is not connected.
	ErrDeliveryUnreachable = errors.New("delivery unreachable")
	// ErrNotAwaitingSelection is returned by Select outside the selection phase.
	ErrNotAwaitingSelection = errors.New("not awaiting selection")
)

// Notifier carries outbound signals to the page and its lifecycle controls.
// Failures are logged and otherwise ignored.
type Notifier interface {
	ShowHint(text string) error
	HideHint() error
	RecordingStarted() error
	RecordingStopped(reason string) error
}

// Emitter publishes a finalized message.
type Emitter interface {
	Emit(sender, text, source string)
}

// Options configures an Engine.
type Options struct {
	Config    Config
	Scheduler schedule.Scheduler
	Matcher   *vocab.Matcher
	Notifier  Notifier
	Emitter   Emitter
	Logger    *slog.Logger
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Phase      domain.Phase
	Tracked    int
	Catalogued int
	Emitted    int
	Skipped    int
	Recoveries int
}

type session struct {
	phase     domain.Phase
	container *html.Node
}

// Engine owns the recording session of one page. It is not safe for
// concurrent use; the tab loop serializes every call and timer.
type Engine struct {
	cfg        Config
	doc        *dom.Document
	sched      schedule.Scheduler
	matcher    *vocab.Matcher
	notifier   Notifier
	emitter    Emitter
	logger     *slog.Logger
	resolver   *Resolver
	classifier *extract.Classifier
	catalog    *Catalog
	detector   *Detector
	driver     *Driver

	session   session
	hintTimer schedule.Timer
	stats     Stats
}

// NewEngine builds an idle engine over doc.
func NewEngine(doc *dom.Document, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = vocab.MustCompile(vocab.Default())
	}
	e := &Engine{
		cfg:        opts.Config,
		doc:        doc,
		sched:      opts.Scheduler,
		matcher:    matcher,
		notifier:   opts.Notifier,
		emitter:    opts.Emitter,
		logger:     logger,
		resolver:   NewResolver(opts.Config),
		classifier: extract.NewClassifier(matcher),
		catalog:    NewCatalog(),
	}
	e.detector = NewDetector(e.cfg, doc, e.sched, matcher, e.finalized, logger)
	e.driver = NewDriver(e.cfg, doc, e.sched, matcher, e.catalog, e.detector, e.recoverContainer, logger)
	e.detector.split = e.driver.Split
	return e
}

// Phase returns the session phase.
func (e *Engine) Phase() domain.Phase { return e.session.phase }

// Container returns the resolved container while recording, else nil.
func (e *Engine) Container() *html.Node { return e.session.container }

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Phase = e.session.phase
	s.Tracked = e.detector.Active()
	s.Catalogued = e.catalog.Len()
	return s
}

// StartSelection enters the selection phase and shows the hint. A running
// recording is stopped first.
func (e *Engine) StartSelection() {
	if e.session.phase == domain.PhaseRecording {
		e.stopWith(domain.StopReasonStopped)
	}
	e.stopHintTimer()
	e.session = session{phase: domain.PhaseAwaitingSelection}
	e.deliver("show_hint", func(n Notifier) error { return n.ShowHint(e.cfg.HintText) })
	e.hintTimer = e.sched.AfterFunc(e.cfg.HintTimeout, e.selectionTimedOut)
	e.logger.Info("[RECORDER] Awaiting selection", "url", e.doc.URL())
}

func (e *Engine) selectionTimedOut() {
	e.hintTimer = nil
	if e.session.phase != domain.PhaseAwaitingSelection {
		return
	}
	e.logger.Info("[RECORDER] Selection timed out", "url", e.doc.URL())
	e.session = session{phase: domain.PhaseIdle}
	e.deliver("hide_hint", Notifier.HideHint)
	e.deliver("recording_stopped", func(n Notifier) error {
		return n.RecordingStopped(domain.StopReasonSelectionTimeout)
	})
}

// Select resolves the container from a clicked node and starts recording.
// On ErrNoContainerFound the engine keeps waiting for another click.
func (e *Engine) Select(target *html.Node) error {
	if e.session.phase != domain.PhaseAwaitingSelection {
		return ErrNotAwaitingSelection
	}
	if !e.doc.Attached(target) {
		return fmt.Errorf("target not in document: %w", ErrNoContainerFound)
	}
	res, err := e.resolver.Explain(target)
	if err != nil {
		e.logger.Info("[RECORDER] No container for selection", "target", dom.Describe(target), "error", err)
		return err
	}
	container := res.Container()
	chosen := res.Candidates[res.Chosen]

	e.stopHintTimer()
	e.deliver("hide_hint", Notifier.HideHint)

	e.catalog.Reset()
	e.session = session{phase: domain.PhaseRecording, container: container}
	e.driver.Start(container)
	existing := e.driver.Baseline()

	e.logger.Info("[RECORDER] Recording started",
		"container", dom.Describe(container),
		"level", chosen.Level,
		"density", chosen.Density,
		"specificity", chosen.Specificity,
		"rule", res.Rule,
		"existing", existing,
	)
	e.deliver("recording_started", Notifier.RecordingStarted)
	return nil
}

// Stop ends the session and releases every subscription and timer.
func (e *Engine) Stop() {
	if e.session.phase == domain.PhaseIdle {
		return
	}
	e.stopWith(domain.StopReasonStopped)
}

// Navigate reacts to the page moving to another URL.
func (e *Engine) Navigate() {
	if e.session.phase == domain.PhaseIdle {
		return
	}
	e.stopWith(domain.StopReasonNavigation)
}

func (e *Engine) stopWith(reason string) {
	wasAwaiting := e.session.phase == domain.PhaseAwaitingSelection
	e.teardown()
	if wasAwaiting {
		e.deliver("hide_hint", Notifier.HideHint)
	}
	e.logger.Info("[RECORDER] Recording stopped", "reason", reason, "emitted", e.stats.Emitted)
	e.deliver("recording_stopped", func(n Notifier) error { return n.RecordingStopped(reason) })
}

func (e *Engine) teardown() {
	e.driver.Stop()
	e.detector.Stop()
	e.catalog.Reset()
	e.stopHintTimer()
	e.session = session{phase: domain.PhaseIdle}
}

func (e *Engine) stopHintTimer() {
	if e.hintTimer != nil {
		e.hintTimer.Stop()
		e.hintTimer = nil
	}
}

// recoverContainer runs when the driver finds the container detached.
// Detached records are finalized; records still attached are discarded and
// rediscovered under the new container.
func (e *Engine) recoverContainer() {
	if e.session.phase != domain.PhaseRecording {
		return
	}
	sig := SignatureOf(e.session.container)
	e.detector.FlushDetached()
	for _, rec := range e.detector.Discard() {
		e.catalog.Forget(rec.element)
	}

	container, rule, err := e.resolver.ResolveDocument(e.doc, sig)
	if err != nil {
		e.logger.Warn("[RECORDER] Recovery failed", "error", fmt.Errorf("%w: %w", ErrContainerLost, err))
		e.stopWith(domain.StopReasonContainerLost)
		return
	}

	e.stats.Recoveries++
	e.session.container = container
	e.driver.Start(container)
	found := e.driver.Scan()
	e.logger.Info("[RECORDER] Container recovered",
		"container", dom.Describe(container),
		"rule", rule,
		"density", e.resolver.Density(container),
		"new_messages", found,
	)
}

func (e *Engine) finalized(rec *MessageRecord, text string, reason Reason) {
	e.catalog.Settle(rec.element, text)
	if text == "" {
		e.stats.Skipped++
		e.logger.Debug("[RECORDER] Skipping empty message", "fingerprint", rec.Fingerprint, "reason", reason)
		return
	}
	sender := e.classifier.Classify(rec.element)
	source := e.matcher.SourceFor(e.doc.Host())
	e.stats.Emitted++
	if e.emitter != nil {
		e.emitter.Emit(sender, text, source)
	}
	e.logger.Info("[RECORDER] Message completed",
		"sender", sender,
		"source", source,
		"reason", reason,
		"checks", rec.CheckCount,
		"text_len", len(text),
	)
}

func (e *Engine) deliver(signal string, fn func(Notifier) error) {
	if e.notifier == nil {
		return
	}
	if err := fn(e.notifier); err != nil {
		if errors.Is(err, ErrDeliveryUnreachable) {
			e.logger.Debug("[RECORDER] Signal not delivered", "signal", signal, "error", err)
			return
		}
		e.logger.Warn("[RECORDER] Signal delivery failed", "signal", signal, "error", err)
	}
}
