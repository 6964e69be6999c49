package recorder

import (
	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"golang.org/x/net/html"
)

// Filter is the discovery predicate: which elements under the container
// count as individual messages.
type Filter struct {
	minLen, maxLen int
	matcher        *vocab.Matcher
}

// NewFilter builds the predicate from the candidate length band and vocabulary.
func NewFilter(cfg Config, m *vocab.Matcher) Filter {
	return Filter{minLen: cfg.CandidateMinLen, maxLen: cfg.CandidateMaxLen, matcher: m}
}

// Candidates returns the qualifying block descendants of n in document order.
func (f Filter) Candidates(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, el := range dom.BlockDescendants(n) {
		if f.Qualifies(el) {
			out = append(out, el)
		}
	}
	return out
}

// Qualifies reports whether el is a message. A marked element wrapping two or
// more separate turns is a list, not a message.
func (f Filter) Qualifies(el *html.Node) bool {
	return f.marked(el) && !f.IsList(el)
}

// IsList reports whether el groups separate turns: two or more marked
// descendants that are messages or empty turn placeholders.
func (f Filter) IsList(el *html.Node) bool {
	return f.turns(el) >= 2
}

func (f Filter) marked(el *html.Node) bool {
	if !dom.IsBlock(el) || !f.matcher.MessageMarked(el) {
		return false
	}
	l := dom.VisibleLen(el)
	return l >= f.minLen && l <= f.maxLen
}

// placeholder reports whether el is a turn that has not received content
// yet: an empty leaf labelled with a sender.
func (f Filter) placeholder(el *html.Node) bool {
	if !dom.IsBlock(el) || !f.matcher.MessageMarked(el) || !f.matcher.SenderMarked(el) {
		return false
	}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsElement(c) {
			return false
		}
	}
	return dom.VisibleLen(el) == 0
}

// turns counts the outermost turns below el, stopping at two.
func (f Filter) turns(el *html.Node) int {
	count := 0
	dom.Walk(el, func(n *html.Node) bool {
		if count >= 2 {
			return false
		}
		if f.marked(n) || f.placeholder(n) {
			count++
			return false
		}
		return true
	})
	return count
}
