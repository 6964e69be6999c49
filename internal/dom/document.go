package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Change is one structural notification: nodes inserted into or removed from the tree.
// Text and attribute edits are not reported.
type Change struct {
	Added   []*html.Node
	Removed []*html.Node
}

// Empty reports whether the change carries no nodes.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Subscription is a registered change handler. Cancel is idempotent.
type Subscription struct {
	id        uint64
	doc       *Document
	fn        func(Change)
	cancelled bool
}

// Cancel stops delivery to the handler. Calling it again is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.cancelled {
		return
	}
	s.cancelled = true
	s.doc.unsubscribe(s.id)
}

// Active reports whether the subscription still receives changes.
func (s *Subscription) Active() bool {
	return s != nil && !s.cancelled
}

// Document is the mirrored tree of one page. It is not safe for concurrent
// use: the owning tab loop is its only writer and reader.
type Document struct {
	root    *html.Node
	url     string
	seq     uint64
	subs    []*Subscription
	nextID  uint64
	pending *Change
}

// New returns an empty document (html, head, body) for pageURL.
func New(pageURL string) *Document {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := &html.Node{Type: html.ElementNode, DataAtom: atom.Html, Data: "html"}
	htmlEl.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Head, Data: "head"})
	htmlEl.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"})
	root.AppendChild(htmlEl)
	return &Document{root: root, url: pageURL}
}

// Parse builds a document from serialized markup.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{root: root, url: pageURL}, nil
}

// ParseString is Parse over a string.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// URL returns the page URL the tree was mirrored from.
func (d *Document) URL() string { return d.url }

// Host returns the hostname of the page URL, or "" if it cannot be parsed.
func (d *Document) Host() string {
	u, err := url.Parse(d.url)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Seq returns the sequence number of the last applied batch.
func (d *Document) Seq() uint64 { return d.seq }

// Body returns the body element, or nil.
func (d *Document) Body() *html.Node {
	var body *html.Node
	Walk(d.root, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		if IsElement(n) && n.Data == "body" {
			body = n
			return false
		}
		return true
	})
	return body
}

// Attached reports whether n is currently part of this document.
func (d *Document) Attached(n *html.Node) bool {
	return n != nil && Top(n) == d.root
}

// Resolve returns the node addressed by p.
func (d *Document) Resolve(p Path) (*html.Node, error) {
	n := d.root
	for depth, idx := range p {
		n = childAt(n, idx)
		if n == nil {
			return nil, fmt.Errorf("path %s at depth %d: %w", p, depth, ErrNodeNotFound)
		}
	}
	return n, nil
}

// Subscribe registers fn for structural changes anywhere in the document.
func (d *Document) Subscribe(fn func(Change)) *Subscription {
	d.nextID++
	s := &Subscription{id: d.nextID, doc: d, fn: fn}
	d.subs = append(d.subs, s)
	return s
}

// Subscribers returns the number of active subscriptions.
func (d *Document) Subscribers() int { return len(d.subs) }

func (d *Document) unsubscribe(id uint64) {
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

func (d *Document) notify(c Change) {
	if c.Empty() {
		return
	}
	if d.pending != nil {
		d.pending.Added = append(d.pending.Added, c.Added...)
		d.pending.Removed = append(d.pending.Removed, c.Removed...)
		return
	}
	subs := make([]*Subscription, len(d.subs))
	copy(subs, d.subs)
	for _, s := range subs {
		if !s.cancelled {
			s.fn(c)
		}
	}
}

// batch collects every change made by fn into a single notification.
func (d *Document) batch(fn func() error) error {
	if d.pending != nil {
		return fn()
	}
	d.pending = &Change{}
	err := fn()
	c := *d.pending
	d.pending = nil
	d.notify(c)
	return err
}

// AppendChild attaches child as the last child of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	parent.AppendChild(child)
	d.notify(Change{Added: []*html.Node{child}})
}

// InsertBefore attaches child before ref; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	parent.InsertBefore(child, ref)
	d.notify(Change{Added: []*html.Node{child}})
}

// RemoveNode detaches n from its parent.
func (d *Document) RemoveNode(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
	d.notify(Change{Removed: []*html.Node{n}})
}

// ReplaceNode swaps old for replacement in place.
func (d *Document) ReplaceNode(old, replacement *html.Node) {
	if old == nil || old.Parent == nil {
		return
	}
	parent := old.Parent
	parent.InsertBefore(replacement, old)
	parent.RemoveChild(old)
	d.notify(Change{Added: []*html.Node{replacement}, Removed: []*html.Node{old}})
}

// SetText sets the text of n. A text node is edited in place without a
// notification; an element has its children replaced by one text node.
func (d *Document) SetText(n *html.Node, text string) {
	if n == nil {
		return
	}
	if n.Type == html.TextNode {
		n.Data = text
		return
	}
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	tn := &html.Node{Type: html.TextNode, Data: text}
	n.AppendChild(tn)
	d.notify(Change{Added: []*html.Node{tn}, Removed: removed})
}

// SetAttr sets or replaces an attribute on n.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute from n.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Reset replaces the whole tree with freshly parsed markup. Subscribers see
// the old top-level nodes removed and the new ones added.
func (d *Document) Reset(markup, pageURL string) error {
	fresh, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if pageURL != "" {
		d.url = pageURL
	}
	d.seq = 0
	return d.batch(func() error {
		var removed, added []*html.Node
		for c := d.root.FirstChild; c != nil; {
			next := c.NextSibling
			d.root.RemoveChild(c)
			removed = append(removed, c)
			c = next
		}
		for c := fresh.FirstChild; c != nil; {
			next := c.NextSibling
			fresh.RemoveChild(c)
			d.root.AppendChild(c)
			added = append(added, c)
			c = next
		}
		d.notify(Change{Added: added, Removed: removed})
		return nil
	})
}
