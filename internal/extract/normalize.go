// Package extract turns a message element into the values that leave the
// recorder: normalized text, a sender label and a dedup fingerprint.
package extract

import (
	"regexp"
	"strings"

	"github.com/ashureev/chat-recorder/internal/dom"
	"golang.org/x/net/html"
)

var (
	blankRun      = regexp.MustCompile(`\n\s*\n`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// fence marks code and preformatted text.
const fence = "```"

// Normalize renders the subtree of n as plain text with *emphasis*,
// **strong** and ```code``` markers and paragraph breaks. The live tree is not modified.
func Normalize(n *html.Node) string {
	if n == nil {
		return ""
	}
	cp := dom.Clone(n)
	strip(cp)

	var b strings.Builder
	if cp.Type == html.TextNode {
		b.WriteString(cp.Data)
	} else {
		render(&b, cp)
	}
	return Clean(b.String())
}

// Clean applies the whitespace rules of Normalize to already rendered text.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func strip(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case dom.IsHidden(c):
			n.RemoveChild(c)
		case dom.IsElement(c):
			strip(c)
		}
		c = next
	}
}

func render(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		renderChildren(b, n)
		return
	}

	switch n.Data {
	case "br":
		b.WriteString("\n")
		return
	case "em", "i":
		b.WriteString(wrap(inner(n), "*"))
		return
	case "strong", "b":
		b.WriteString(wrap(inner(n), "**"))
		return
	case "code":
		b.WriteString(wrap(inner(n), fence))
		return
	case "pre":
		b.WriteString("\n" + wrap(inner(n), fence) + "\n")
		return
	}

	if dom.IsBlock(n) {
		b.WriteString("\n")
		renderChildren(b, n)
		b.WriteString("\n")
		return
	}
	renderChildren(b, n)
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(b, c)
	}
}

func inner(n *html.Node) string {
	var b strings.Builder
	renderChildren(&b, n)
	return b.String()
}

// wrap surrounds the non-space core of s with marker unless it is empty or
// already wrapped.
func wrap(s, marker string) string {
	core := strings.TrimSpace(s)
	if core == "" {
		return s
	}
	if len(core) >= 2*len(marker) && strings.HasPrefix(core, marker) && strings.HasSuffix(core, marker) {
		return s
	}
	start := strings.Index(s, core)
	return s[:start] + marker + core + marker + s[start+len(core):]
}
