package recorder

import (
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/extract"
	"github.com/ashureev/chat-recorder/internal/schedule"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"golang.org/x/net/html"
)

// RecordState is the lifecycle of one tracked message.
type RecordState int

const (
	// StateMonitoring indicates checks are still scheduled.
	StateMonitoring RecordState = iota
	// StateFinalized indicates the message was judged complete.
	StateFinalized
	// StateDropped indicates monitoring ended without a result.
	StateDropped
)

// Reason explains why a message was finalized.
type Reason string

const (
	ReasonStable     Reason = "stable"     // length unchanged since the last check
	ReasonTerminator Reason = "terminator" // ends with sentence punctuation
	ReasonParagraph  Reason = "paragraph"  // contains a blank line
	ReasonLong       Reason = "long"       // past the long text threshold
	ReasonBackstop   Reason = "backstop"   // check budget exhausted
	ReasonDetached   Reason = "detached"   // element left the document
)

// MessageRecord tracks one discovered message until it is finalized.
type MessageRecord struct {
	Fingerprint        string
	State              RecordState
	CheckCount         int
	LastObservedLength int
	StartedAt          time.Time

	seq      uint64
	element  *html.Node
	lastText string
	timer    schedule.Timer
}

// Element returns the tracked element.
func (r *MessageRecord) Element() *html.Node { return r.element }

// FinalizeFunc receives every finalized record with its final text.
type FinalizeFunc func(rec *MessageRecord, text string, reason Reason)

// Detector decides when tracked messages have finished being written.
type Detector struct {
	cfg      Config
	doc      *dom.Document
	sched    schedule.Scheduler
	matcher  *vocab.Matcher
	finalize FinalizeFunc
	logger   *slog.Logger
	filter   Filter

	// split takes over an element that turned out to group several turns.
	split func(*html.Node)

	active map[*html.Node]*MessageRecord
	seq    uint64
}

// NewDetector returns a detector that reports finalized records to fn.
func NewDetector(cfg Config, doc *dom.Document, sched schedule.Scheduler, matcher *vocab.Matcher, fn FinalizeFunc, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:      cfg,
		doc:      doc,
		sched:    sched,
		matcher:  matcher,
		finalize: fn,
		logger:   logger,
		filter:   NewFilter(cfg, matcher),
		active:   make(map[*html.Node]*MessageRecord),
	}
}

// Track starts monitoring el. The first check runs after FirstCheckDelay.
func (d *Detector) Track(el *html.Node, fp string) *MessageRecord {
	if rec, ok := d.active[el]; ok {
		return rec
	}
	d.seq++
	rec := &MessageRecord{
		seq:         d.seq,
		Fingerprint: fp,
		State:       StateMonitoring,
		StartedAt:   d.sched.Now(),
		element:     el,
		lastText:    extract.Normalize(el),
	}
	d.active[el] = rec
	d.schedule(rec, d.cfg.FirstCheckDelay)
	d.logger.Debug("[COMPLETION] Tracking message", "fingerprint", fp, "element", dom.Describe(el))
	return rec
}

// Active returns the number of records still monitoring.
func (d *Detector) Active() int { return len(d.active) }

// Tracking reports whether el has a record still monitoring.
func (d *Detector) Tracking(el *html.Node) bool {
	_, ok := d.active[el]
	return ok
}

// Drop stops monitoring el without finalizing it.
func (d *Detector) Drop(el *html.Node) bool {
	rec, ok := d.active[el]
	if !ok {
		return false
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.State = StateDropped
	delete(d.active, el)
	return true
}

func (d *Detector) schedule(rec *MessageRecord, delay time.Duration) {
	rec.timer = d.sched.AfterFunc(delay, func() { d.check(rec) })
}

func (d *Detector) check(rec *MessageRecord) {
	if rec.State != StateMonitoring {
		return
	}
	if !d.doc.Attached(rec.element) {
		d.done(rec, rec.lastText, ReasonDetached)
		return
	}

	if d.split != nil && d.filter.IsList(rec.element) {
		d.Drop(rec.element)
		d.logger.Debug("[COMPLETION] Tracked element holds several turns", "fingerprint", rec.Fingerprint)
		d.split(rec.element)
		return
	}

	text := extract.Normalize(rec.element)
	if text != "" {
		rec.lastText = text
	}
	rec.CheckCount++

	if d.matcher.Busy(rec.element) {
		if rec.CheckCount >= d.cfg.MaxChecks {
			d.done(rec, rec.lastText, ReasonBackstop)
			return
		}
		d.schedule(rec, d.cfg.CheckInterval)
		return
	}

	length := utf8.RuneCountInString(text)
	var reason Reason
	switch {
	case length > 0 && length == rec.LastObservedLength:
		reason = ReasonStable
	case d.matcher.EndsSentence(text):
		reason = ReasonTerminator
	case strings.Contains(text, "\n\n"):
		reason = ReasonParagraph
	case length > d.cfg.LongTextLen:
		reason = ReasonLong
	case rec.CheckCount >= d.cfg.MaxChecks:
		reason = ReasonBackstop
	}
	rec.LastObservedLength = length
	if reason == "" {
		d.schedule(rec, d.cfg.CheckInterval)
		return
	}
	d.done(rec, rec.lastText, reason)
}

func (d *Detector) done(rec *MessageRecord, text string, reason Reason) {
	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.State = StateFinalized
	delete(d.active, rec.element)
	d.logger.Debug("[COMPLETION] Message finalized",
		"fingerprint", rec.Fingerprint,
		"reason", reason,
		"checks", rec.CheckCount,
		"text_len", len(text),
	)
	if d.finalize != nil {
		d.finalize(rec, text, reason)
	}
}

// FlushDetached finalizes every record whose element left the document,
// using the text last observed.
func (d *Detector) FlushDetached() int {
	var gone []*MessageRecord
	for el, rec := range d.active {
		if !d.doc.Attached(el) {
			gone = append(gone, rec)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].seq < gone[j].seq })
	for _, rec := range gone {
		d.done(rec, rec.lastText, ReasonDetached)
	}
	return len(gone)
}

// Stop cancels every pending check and forgets all records.
func (d *Detector) Stop() {
	d.Discard()
}

// Discard cancels every pending check and returns the records dropped
// without finalizing, in discovery order.
func (d *Detector) Discard() []*MessageRecord {
	out := make([]*MessageRecord, 0, len(d.active))
	for _, rec := range d.active {
		if rec.timer != nil {
			rec.timer.Stop()
		}
		rec.State = StateDropped
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	d.active = make(map[*html.Node]*MessageRecord)
	return out
}
