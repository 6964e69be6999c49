package recorder

import (
	"fmt"

	"github.com/ashureev/chat-recorder/internal/dom"
	"golang.org/x/net/html"
)

// Candidate is one ancestor considered during anchor resolution.
type Candidate struct {
	Element     *html.Node
	Level       int
	Density     int
	Specificity int
}

// Rule names the selection rule that chose a container.
type Rule string

const (
	RuleStable    Rule = "stable"
	RuleDensest   Rule = "densest"
	RuleSignature Rule = "signature"
	RuleSpecific  Rule = "specific"
)

// Resolution is the full outcome of resolving an anchor.
type Resolution struct {
	Candidates []Candidate
	Chosen     int // index into Candidates, -1 when none
	Rule       Rule
}

// Container returns the chosen element, or nil.
func (r Resolution) Container() *html.Node {
	if r.Chosen < 0 || r.Chosen >= len(r.Candidates) {
		return nil
	}
	return r.Candidates[r.Chosen].Element
}

// Resolver picks the element that bounds the conversation log.
type Resolver struct {
	cfg Config
}

// NewResolver returns a resolver using cfg.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the container for a click on start.
func (r *Resolver) Resolve(start *html.Node) (*html.Node, error) {
	res, err := r.Explain(start)
	if err != nil {
		return nil, err
	}
	return res.Container(), nil
}

// Explain runs resolution and returns every candidate it scored.
func (r *Resolver) Explain(start *html.Node) (Resolution, error) {
	res := Resolution{Chosen: -1}
	res.Candidates = r.Candidates(start)
	if len(res.Candidates) == 0 {
		return res, fmt.Errorf("no block ancestor for %s: %w", dom.Describe(start), ErrNoContainerFound)
	}

	for i, c := range res.Candidates {
		if c.Density >= r.cfg.StableDensity && c.Level <= r.cfg.StableMaxLevel && c.Specificity > r.cfg.StableSpecificity {
			res.Chosen, res.Rule = i, RuleStable
			return res, nil
		}
	}

	best := 0
	for i, c := range res.Candidates {
		if c.Density > res.Candidates[best].Density {
			best = i
		}
	}
	res.Chosen, res.Rule = best, RuleDensest
	if d := res.Candidates[best].Density; d < r.cfg.MinDensity {
		return res, fmt.Errorf("best density %d below %d: %w", d, r.cfg.MinDensity, ErrNoContainerFound)
	}
	return res, nil
}

// Candidates scores the nearest block ancestor of start and up to
// MaxAncestorLevels-1 ancestors above it.
func (r *Resolver) Candidates(start *html.Node) []Candidate {
	first := dom.NearestBlock(start)
	if first == nil {
		return nil
	}
	var chain []*html.Node
	for n := first; dom.IsElement(n) && len(chain) < r.cfg.MaxAncestorLevels; n = n.Parent {
		chain = append(chain, n)
	}

	densities := r.densities(chain[len(chain)-1])
	out := make([]Candidate, len(chain))
	for i, n := range chain {
		out[i] = Candidate{
			Element:     n,
			Level:       i,
			Density:     densities[n],
			Specificity: len(dom.ClassName(n)),
		}
	}
	return out
}

// Density counts the block descendants of n whose trimmed text length lies
// within the density band.
func (r *Resolver) Density(n *html.Node) int {
	return r.densities(n)[n]
}

// densities computes the density of root and every element below it in one
// pass: each qualifying block credits all of its ancestors up to root.
func (r *Resolver) densities(root *html.Node) map[*html.Node]int {
	counts := make(map[*html.Node]int)
	for _, b := range dom.BlockDescendants(root) {
		l := dom.TrimmedLen(b)
		if l < r.cfg.DensityMinLen || l > r.cfg.DensityMaxLen {
			continue
		}
		for p := b.Parent; p != nil; p = p.Parent {
			counts[p]++
			if p == root {
				break
			}
		}
	}
	return counts
}

// Signature identifies a container across re-renders by tag and class.
type Signature struct {
	Tag   string
	Class string
}

// SignatureOf returns the signature of n.
func SignatureOf(n *html.Node) Signature {
	if n == nil {
		return Signature{}
	}
	return Signature{Tag: n.Data, Class: dom.ClassName(n)}
}

// ResolveDocument finds a container anywhere in doc, without a click origin.
// An element matching sig is preferred, then the densest element with a
// specific class, then the densest element overall. Ties go to the deeper
// element and the winner needs RecoveryDensity.
func (r *Resolver) ResolveDocument(doc *dom.Document, sig Signature) (*html.Node, Rule, error) {
	root := doc.Root()
	densities := r.densities(root)
	depth := make(map[*html.Node]int)

	var bySig, bySpecific, byDensity *html.Node
	better := func(cur, n *html.Node) bool {
		if cur == nil {
			return true
		}
		if densities[n] != densities[cur] {
			return densities[n] > densities[cur]
		}
		return depth[n] > depth[cur]
	}

	var walk func(n *html.Node, d int)
	walk = func(n *html.Node, d int) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !dom.IsElement(c) {
				continue
			}
			depth[c] = d
			if densities[c] >= r.cfg.RecoveryDensity && c.Data != "html" && c.Data != "body" {
				class := dom.ClassName(c)
				if sig.Class != "" && c.Data == sig.Tag && class == sig.Class && better(bySig, c) {
					bySig = c
				}
				if len(class) > r.cfg.StableSpecificity && better(bySpecific, c) {
					bySpecific = c
				}
				if better(byDensity, c) {
					byDensity = c
				}
			}
			walk(c, d+1)
		}
	}
	walk(root, 0)

	switch {
	case bySig != nil:
		return bySig, RuleSignature, nil
	case bySpecific != nil:
		return bySpecific, RuleSpecific, nil
	case byDensity != nil:
		return byDensity, RuleDensest, nil
	}
	return nil, "", fmt.Errorf("no element with density >= %d: %w", r.cfg.RecoveryDensity, ErrNoContainerFound)
}
