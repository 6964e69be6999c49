package recorder

import (
	"github.com/ashureev/chat-recorder/internal/dom"
	"golang.org/x/net/html"
)

type entry struct {
	fingerprint string
	text        string
	settled     bool
}

// Catalog remembers every message discovered in the current session.
type Catalog struct {
	fingerprints map[string]struct{}
	elements     map[*html.Node]*entry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.Reset()
	return c
}

// Admit records el under fp and reports whether it is new. An element is
// not new when its fingerprint is known, when it was admitted before under
// another fingerprint (its text grew), or when it is nested with an admitted
// element.
func (c *Catalog) Admit(el *html.Node, fp string) bool {
	if _, ok := c.fingerprints[fp]; ok {
		return false
	}
	if _, ok := c.elements[el]; ok {
		return false
	}
	if c.Owner(el) != nil {
		return false
	}
	nested := false
	dom.Walk(el, func(n *html.Node) bool {
		if nested {
			return false
		}
		if _, ok := c.elements[n]; ok {
			nested = true
			return false
		}
		return true
	})
	if nested {
		return false
	}
	c.fingerprints[fp] = struct{}{}
	c.elements[el] = &entry{fingerprint: fp}
	return true
}

// Owner returns the admitted element enclosing el, or nil.
func (c *Catalog) Owner(el *html.Node) *html.Node {
	if el == nil {
		return nil
	}
	for p := el.Parent; p != nil; p = p.Parent {
		if _, ok := c.elements[p]; ok {
			return p
		}
	}
	return nil
}

// Settle stores the text el was finalized with.
func (c *Catalog) Settle(el *html.Node, text string) {
	if e, ok := c.elements[el]; ok {
		e.text, e.settled = text, true
	}
}

// Settled returns the text el was finalized with.
func (c *Catalog) Settled(el *html.Node) (string, bool) {
	e, ok := c.elements[el]
	if !ok || !e.settled {
		return "", false
	}
	return e.text, true
}

// Release drops the claim el holds over its subtree. Its fingerprint stays known.
func (c *Catalog) Release(el *html.Node) {
	delete(c.elements, el)
}

// Forget drops el and its fingerprint, so it can be admitted again.
func (c *Catalog) Forget(el *html.Node) {
	if e, ok := c.elements[el]; ok {
		delete(c.fingerprints, e.fingerprint)
		delete(c.elements, el)
	}
}

// Seen reports whether fp has been admitted.
func (c *Catalog) Seen(fp string) bool {
	_, ok := c.fingerprints[fp]
	return ok
}

// Len returns the number of admitted fingerprints.
func (c *Catalog) Len() int { return len(c.fingerprints) }

// Reset forgets everything.
func (c *Catalog) Reset() {
	c.fingerprints = make(map[string]struct{})
	c.elements = make(map[*html.Node]*entry)
}
