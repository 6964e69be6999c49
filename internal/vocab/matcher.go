package vocab

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/chat-recorder/internal/dom"
	"golang.org/x/net/html"
)

type compiledPattern struct {
	SitePattern
	class *regexp.Regexp
}

// Matcher evaluates a Vocabulary against tree nodes.
type Matcher struct {
	v        Vocabulary
	patterns []compiledPattern
}

// Compile validates v and prepares its site patterns.
func (v Vocabulary) Compile() (*Matcher, error) {
	m := &Matcher{v: v}
	for _, p := range v.SitePatterns {
		if p.Tag == "" && p.ClassPattern == "" && p.ParentAttr == "" {
			return nil, fmt.Errorf("site pattern %q matches everything", p.Name)
		}
		cp := compiledPattern{SitePattern: p}
		if p.ClassPattern != "" {
			re, err := regexp.Compile(p.ClassPattern)
			if err != nil {
				return nil, fmt.Errorf("site pattern %q: %w", p.Name, err)
			}
			cp.class = re
		}
		m.patterns = append(m.patterns, cp)
	}
	return m, nil
}

// MustCompile is Compile for vocabularies known to be valid, such as Default().
func MustCompile(v Vocabulary) *Matcher {
	m, err := v.Compile()
	if err != nil {
		panic(err)
	}
	return m
}

// Vocabulary returns the data the matcher was built from.
func (m *Matcher) Vocabulary() Vocabulary { return m.v }

// SourceFor maps a host to its site label.
func (m *Matcher) SourceFor(host string) string { return m.v.SourceFor(host) }

// MessageMarked reports whether n carries any message signal: a class token,
// a message role, a message attribute or a site pattern.
func (m *Matcher) MessageMarked(n *html.Node) bool {
	if !dom.IsElement(n) {
		return false
	}
	if ContainsAny(dom.ClassName(n), m.v.MessageClassTokens) {
		return true
	}
	if role, ok := dom.Attr(n, "role"); ok {
		role = strings.ToLower(strings.TrimSpace(role))
		for _, r := range m.v.MessageRoles {
			if role == r {
				return true
			}
		}
	}
	for _, attr := range m.v.MessageAttributes {
		if _, ok := dom.Attr(n, attr); ok {
			return true
		}
	}
	for _, p := range m.patterns {
		if p.matches(n) {
			return true
		}
	}
	return false
}

func (p compiledPattern) matches(n *html.Node) bool {
	if p.Tag != "" && !strings.EqualFold(n.Data, p.Tag) {
		return false
	}
	if p.class != nil && !p.class.MatchString(dom.ClassName(n)) {
		return false
	}
	if p.ParentAttr != "" {
		parent := n.Parent
		if !dom.IsElement(parent) {
			return false
		}
		v, ok := dom.Attr(parent, p.ParentAttr)
		if !ok || !strings.HasPrefix(v, p.ParentAttrPrefix) {
			return false
		}
	}
	return true
}

// Busy reports whether n or any descendant shows a generation-in-progress marker.
func (m *Matcher) Busy(n *html.Node) bool {
	if m.busyMarker(n) {
		return true
	}
	busy := false
	dom.Walk(n, func(c *html.Node) bool {
		if busy {
			return false
		}
		if m.busyMarker(c) {
			busy = true
			return false
		}
		return true
	})
	return busy
}

func (m *Matcher) busyMarker(n *html.Node) bool {
	if !dom.IsElement(n) {
		return false
	}
	if m.v.BusyAttribute != "" {
		if v, ok := dom.Attr(n, m.v.BusyAttribute); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
			return true
		}
	}
	return ContainsAny(dom.ClassName(n), m.v.BusyClassTokens)
}

// SenderMarked reports whether n's class or role attributes name a user or
// assistant turn.
func (m *Matcher) SenderMarked(n *html.Node) bool {
	if !dom.IsElement(n) {
		return false
	}
	class := dom.ClassName(n)
	if ContainsAny(class, m.v.UserClassTokens) || ContainsAny(class, m.v.AssistantClassTokens) {
		return true
	}
	for _, attr := range m.v.RoleAttributes {
		if v, ok := dom.Attr(n, attr); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// EndsSentence reports whether text ends with a sentence terminator.
func (m *Matcher) EndsSentence(text string) bool {
	text = strings.TrimSpace(text)
	for _, t := range m.v.SentenceTerminators {
		if strings.HasSuffix(text, t) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether the lowercased class string contains any token.
func ContainsAny(class string, tokens []string) bool {
	if class == "" {
		return false
	}
	class = strings.ToLower(class)
	for _, t := range tokens {
		if t != "" && strings.Contains(class, t) {
			return true
		}
	}
	return false
}
