package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrSequenceGap is returned by Apply when a batch does not follow the previous one.
// The batch is still applied; the caller should ask the page for a snapshot.
var ErrSequenceGap = errors.New("mutation sequence gap")

// Op is the kind of mutation reported by the page observer.
type Op string

const (
	OpInsert  Op = "insert"   // HTML inserted under Target at Index (append when nil)
	OpRemove  Op = "remove"   // Target removed
	OpText    Op = "text"     // Target text replaced with Value
	OpAttr    Op = "attr"     // attribute Name on Target set to Value
	OpAttrDel Op = "attr_del" // attribute Name removed from Target
)

// Record is a single mutation observed in the page.
type Record struct {
	Op     Op     `json:"op"`
	Target string `json:"target"`
	Index  *int   `json:"index,omitempty"`
	HTML   string `json:"html,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Batch is every mutation the page observer flushed at once.
type Batch struct {
	Seq     uint64   `json:"seq"`
	Records []Record `json:"records"`
}

// Apply replays a batch against the tree and notifies subscribers once.
// It stops at the first record that cannot be applied.
func (d *Document) Apply(b Batch) error {
	gap := d.seq != 0 && b.Seq != 0 && b.Seq != d.seq+1
	err := d.batch(func() error {
		for i, r := range b.Records {
			if err := d.applyRecord(r); err != nil {
				return fmt.Errorf("record %d (%s %s): %w", i, r.Op, r.Target, err)
			}
		}
		return nil
	})
	if b.Seq != 0 {
		d.seq = b.Seq
	}
	if err != nil {
		return err
	}
	if gap {
		return fmt.Errorf("batch %d: %w", b.Seq, ErrSequenceGap)
	}
	return nil
}

func (d *Document) applyRecord(r Record) error {
	p, err := ParsePath(r.Target)
	if err != nil {
		return err
	}
	target, err := d.Resolve(p)
	if err != nil {
		return err
	}

	switch r.Op {
	case OpInsert:
		return d.insertHTML(target, r.Index, r.HTML)
	case OpRemove:
		if target == d.root {
			return errors.New("cannot remove document node")
		}
		d.RemoveNode(target)
	case OpText:
		d.SetText(target, r.Value)
	case OpAttr:
		if !IsElement(target) {
			return errors.New("attribute target is not an element")
		}
		d.SetAttr(target, r.Name, r.Value)
	case OpAttrDel:
		if !IsElement(target) {
			return errors.New("attribute target is not an element")
		}
		d.RemoveAttr(target, r.Name)
	default:
		return fmt.Errorf("unknown op %q", r.Op)
	}
	return nil
}

func (d *Document) insertHTML(parent *html.Node, index *int, markup string) error {
	var context *html.Node
	if IsElement(parent) {
		context = parent
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	var ref *html.Node
	if index != nil {
		ref = childAt(parent, *index)
		if ref == nil && *index != countChildren(parent) {
			return fmt.Errorf("insert index %d: %w", *index, ErrNodeNotFound)
		}
	}
	for _, n := range nodes {
		d.InsertBefore(parent, n, ref)
	}
	return nil
}

func countChildren(n *html.Node) int {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		i++
	}
	return i
}
