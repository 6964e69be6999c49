package recorder

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/schedule"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const testURL = "https://claude.ai/chat/0b1c"

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// text returns ASCII text of exactly n runes, starting with seed and ending
// in a letter, so no completion rule other than length applies.
func text(seed string, n int) string {
	s := strings.Repeat(seed+" ", n/len(seed)+1)
	return s[:n-1] + "x"
}

func msg(class, body string) string {
	return `<div class="` + class + `">` + body + `</div>`
}

func page(messages ...string) string {
	return `<html><head></head><body>` +
		`<nav class="sidebar"><a href="/new">New chat</a></nav>` +
		`<main class="app-main"><div class="conversation-log">` +
		strings.Join(messages, "") +
		`</div></main></body></html>`
}

func parsePage(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(markup, testURL)
	if err != nil {
		t.Fatalf("Failed to parse page: %v", err)
	}
	return doc
}

func byClass(t *testing.T, root *html.Node, class string) *html.Node {
	t.Helper()
	var found *html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if dom.IsElement(n) && dom.ClassName(n) == class {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		t.Fatalf("No element with class %q", class)
	}
	return found
}

func fragment(t *testing.T, markup string) *html.Node {
	t.Helper()
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil || len(nodes) != 1 {
		t.Fatalf("Failed to parse fragment %q: %v", markup, err)
	}
	return nodes[0]
}

type fakeNotifier struct {
	signals []string
	err     error
}

func (n *fakeNotifier) ShowHint(string) error {
	n.signals = append(n.signals, "show_hint")
	return n.err
}

func (n *fakeNotifier) HideHint() error {
	n.signals = append(n.signals, "hide_hint")
	return n.err
}

func (n *fakeNotifier) RecordingStarted() error {
	n.signals = append(n.signals, "recording_started")
	return n.err
}

func (n *fakeNotifier) RecordingStopped(reason string) error {
	n.signals = append(n.signals, "recording_stopped:"+reason)
	return n.err
}

func (n *fakeNotifier) last() string {
	if len(n.signals) == 0 {
		return ""
	}
	return n.signals[len(n.signals)-1]
}

type emitted struct {
	Sender string
	Text   string
	Source string
	At     time.Time
}

type fakeEmitter struct {
	clock schedule.Scheduler
	out   []emitted
}

func (e *fakeEmitter) Emit(sender, text, source string) {
	e.out = append(e.out, emitted{Sender: sender, Text: text, Source: source, At: e.clock.Now()})
}

type harness struct {
	doc      *dom.Document
	clock    *schedule.Fake
	notifier *fakeNotifier
	emitter  *fakeEmitter
	engine   *Engine
}

func newHarness(t *testing.T, markup string) *harness {
	t.Helper()
	h := &harness{
		doc:      parsePage(t, markup),
		clock:    schedule.NewFake(epoch),
		notifier: &fakeNotifier{},
	}
	h.emitter = &fakeEmitter{clock: h.clock}
	h.engine = NewEngine(h.doc, Options{
		Config:    DefaultConfig(),
		Scheduler: h.clock,
		Notifier:  h.notifier,
		Emitter:   h.emitter,
		Logger:    quietLogger(),
	})
	return h
}

// record starts selection and clicks the element with the given class.
func (h *harness) record(t *testing.T, class string) {
	t.Helper()
	h.engine.StartSelection()
	if err := h.engine.Select(byClass(t, h.doc.Root(), class)); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
}
