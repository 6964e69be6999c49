// Package dom mirrors a browser page as an x/net/html tree and reports
// structural changes to subscribers.
package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// blockTags are the elements that occupy their own line or region when rendered.
var blockTags = map[string]struct{}{
	"address":    {},
	"article":    {},
	"aside":      {},
	"blockquote": {},
	"dd":         {},
	"details":    {},
	"dialog":     {},
	"div":        {},
	"dl":         {},
	"dt":         {},
	"fieldset":   {},
	"figcaption": {},
	"figure":     {},
	"footer":     {},
	"form":       {},
	"h1":         {},
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"h5":         {},
	"h6":         {},
	"header":     {},
	"hgroup":     {},
	"hr":         {},
	"li":         {},
	"main":       {},
	"nav":        {},
	"ol":         {},
	"p":          {},
	"pre":        {},
	"section":    {},
	"summary":    {},
	"table":      {},
	"ul":         {},
}

// hiddenTags hold content that is never rendered as text.
var hiddenTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// IsHidden reports whether n is an element whose content is never rendered.
func IsHidden(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	_, ok := hiddenTags[n.Data]
	return ok
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// IsBlock reports whether n is a block-level element. Custom elements
// (hyphenated tag names) count as blocks: chat frameworks style them as such.
func IsBlock(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	if _, ok := blockTags[n.Data]; ok {
		return true
	}
	return strings.Contains(n.Data, "-")
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// ClassName returns the raw class attribute of n, or "" when absent.
func ClassName(n *html.Node) string {
	v, _ := Attr(n, "class")
	return v
}

// TextContent concatenates all descendant text, like the DOM property of the same name.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	writeText(&b, n)
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode, html.DocumentNode:
			writeText(b, c)
		}
	}
}

// TrimmedLen is the character count of n's trimmed text content.
func TrimmedLen(n *html.Node) int {
	return utf8.RuneCountInString(strings.TrimSpace(TextContent(n)))
}

// VisibleLen is TrimmedLen without the text of hidden elements.
func VisibleLen(n *html.Node) int {
	if n == nil {
		return 0
	}
	if n.Type == html.TextNode {
		return utf8.RuneCountInString(strings.TrimSpace(n.Data))
	}
	var b strings.Builder
	writeVisible(&b, n)
	return utf8.RuneCountInString(strings.TrimSpace(b.String()))
}

func writeVisible(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case IsHidden(c):
		case c.Type == html.ElementNode:
			writeVisible(b, c)
		}
	}
}

// Walk visits the descendants of n in document order. Returning false from
// fn skips the children of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if fn(c) {
			Walk(c, fn)
		}
	}
}

// BlockDescendants returns every block element below n in document order.
func BlockDescendants(n *html.Node) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) bool {
		if IsBlock(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Ancestors returns up to limit element ancestors of n, nearest first.
// A limit <= 0 returns all of them.
func Ancestors(n *html.Node, limit int) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for p := n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Contains reports whether n is ancestor itself or one of its descendants.
func Contains(ancestor, n *html.Node) bool {
	if ancestor == nil {
		return false
	}
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

// Top returns the topmost node reachable through Parent links.
func Top(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// NearestBlock returns n when it is a block element, otherwise its closest
// block ancestor. Text nodes start from their parent element.
func NearestBlock(n *html.Node) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if IsBlock(c) {
			return c
		}
	}
	return nil
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	cp := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		cp.Attr = make([]html.Attribute, len(n.Attr))
		copy(cp.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(Clone(c))
	}
	return cp
}

// Describe renders a short tag.class label for logs.
func Describe(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Type == html.TextNode {
		return "#text"
	}
	if n.Type == html.DocumentNode {
		return "#document"
	}
	class := strings.Join(strings.Fields(ClassName(n)), ".")
	if class == "" {
		return n.Data
	}
	return n.Data + "." + class
}
