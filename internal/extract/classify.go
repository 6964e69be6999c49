package extract

import (
	"strings"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"golang.org/x/net/html"
)

// Sender labels.
const (
	SenderUser    = "User"
	SenderAI      = "AI"
	SenderUnknown = "Unknown"
)

// Classifier infers who wrote a message element.
type Classifier struct {
	m *vocab.Matcher
}

// NewClassifier returns a classifier over the matcher's vocabulary.
func NewClassifier(m *vocab.Matcher) *Classifier {
	return &Classifier{m: m}
}

// Classify never fails; it returns SenderUnknown when nothing matches.
func (c *Classifier) Classify(n *html.Node) string {
	if !dom.IsElement(n) {
		return SenderUnknown
	}
	v := c.m.Vocabulary()

	if label := c.labelDescendant(n, v.SenderLabelTokens); label != "" {
		return label
	}
	if v.SenderLabelAttribute != "" {
		if label, ok := dom.Attr(n, v.SenderLabelAttribute); ok && strings.TrimSpace(label) != "" {
			return strings.TrimSpace(label)
		}
	}
	if s := fromTokens(dom.ClassName(n), v); s != "" {
		return s
	}
	for _, attr := range v.RoleAttributes {
		if role, ok := dom.Attr(n, attr); ok {
			if s := fromTokens(role, v); s != "" {
				return s
			}
		}
	}
	return SenderUnknown
}

func (c *Classifier) labelDescendant(n *html.Node, tokens []string) string {
	var label string
	dom.Walk(n, func(d *html.Node) bool {
		if label != "" {
			return false
		}
		if dom.IsElement(d) && vocab.ContainsAny(dom.ClassName(d), tokens) {
			if text := strings.TrimSpace(dom.TextContent(d)); text != "" {
				label = text
				return false
			}
		}
		return true
	})
	return label
}

func fromTokens(s string, v vocab.Vocabulary) string {
	switch {
	case vocab.ContainsAny(s, v.UserClassTokens):
		return SenderUser
	case vocab.ContainsAny(s, v.AssistantClassTokens):
		return SenderAI
	}
	return ""
}
