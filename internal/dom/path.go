package dom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrNodeNotFound is returned when a Path does not address a node in the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidPath is returned by ParsePath for malformed input.
	ErrInvalidPath = errors.New("invalid path")
)

// Path addresses a node by child-node indices starting at the document node.
// Text and comment nodes count, matching Node.childNodes in the page.
type Path []int

// String renders p as slash separated indices, e.g. "1/2/0".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "/")
}

// ParsePath parses the form produced by Path.String. A leading slash is allowed
// and the empty string addresses the document node.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	p := make(Path, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: segment %q", ErrInvalidPath, part)
		}
		p[i] = idx
	}
	return p, nil
}

// PathOf computes the path of n relative to the top of its tree.
func PathOf(n *html.Node) Path {
	var rev []int
	for c := n; c != nil && c.Parent != nil; c = c.Parent {
		idx := 0
		for s := c.PrevSibling; s != nil; s = s.PrevSibling {
			idx++
		}
		rev = append(rev, idx)
	}
	p := make(Path, len(rev))
	for i := range rev {
		p[i] = rev[len(rev)-1-i]
	}
	return p
}

func childAt(n *html.Node, idx int) *html.Node {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if i == idx {
			return c
		}
		i++
	}
	return nil
}
