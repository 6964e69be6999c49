package dom

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const samplePage = `<html><head></head><body><div class="app"><div class="log"><p>first</p><p>second <b>bold</b></p></div></div></body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup, "https://claude.ai/chat/1")
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	return doc
}

func findByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if IsElement(n) && ClassName(n) == class {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestPathRoundTrip(t *testing.T) {
	doc := mustParse(t, samplePage)
	log := findByClass(doc.Root(), "log")
	if log == nil {
		t.Fatal("Expected .log element")
	}

	p := PathOf(log)
	parsed, err := ParsePath("/" + p.String())
	if err != nil {
		t.Fatalf("ParsePath failed: %v", err)
	}
	got, err := doc.Resolve(parsed)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != log {
		t.Errorf("Expected %s, got %s", Describe(log), Describe(got))
	}
}

func TestParsePathRejectsGarbage(t *testing.T) {
	tests := []string{"a/b", "1/-2", "1//x"}
	for _, in := range tests {
		if _, err := ParsePath(in); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Expected ErrInvalidPath for %q, got %v", in, err)
		}
	}
}

func TestResolveMissing(t *testing.T) {
	doc := mustParse(t, samplePage)
	_, err := doc.Resolve(Path{0, 9, 9})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Expected ErrNodeNotFound, got %v", err)
	}
}

func TestHost(t *testing.T) {
	doc := mustParse(t, samplePage)
	if doc.Host() != "claude.ai" {
		t.Errorf("Expected claude.ai, got %q", doc.Host())
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	doc := mustParse(t, samplePage)
	var calls int
	sub := doc.Subscribe(func(Change) { calls++ })

	log := findByClass(doc.Root(), "log")
	doc.AppendChild(log, &html.Node{Type: html.ElementNode, Data: "p"})
	if calls != 1 {
		t.Fatalf("Expected 1 delivery, got %d", calls)
	}

	sub.Cancel()
	sub.Cancel()
	if sub.Active() {
		t.Error("Expected subscription to be inactive")
	}
	if doc.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", doc.Subscribers())
	}

	doc.AppendChild(log, &html.Node{Type: html.ElementNode, Data: "p"})
	if calls != 1 {
		t.Errorf("Expected no delivery after cancel, got %d calls", calls)
	}
}

func TestCancelDuringDelivery(t *testing.T) {
	doc := mustParse(t, samplePage)
	var second int
	var first *Subscription
	first = doc.Subscribe(func(Change) { first.Cancel() })
	doc.Subscribe(func(Change) { second++ })

	doc.RemoveNode(findByClass(doc.Root(), "log"))
	doc.AppendChild(doc.Body(), &html.Node{Type: html.ElementNode, Data: "div"})

	if second != 2 {
		t.Errorf("Expected second subscriber to see 2 changes, got %d", second)
	}
}

func TestAttachedAfterRemove(t *testing.T) {
	doc := mustParse(t, samplePage)
	log := findByClass(doc.Root(), "log")
	p := log.FirstChild

	if !doc.Attached(p) {
		t.Fatal("Expected paragraph to be attached")
	}
	doc.RemoveNode(log)
	if doc.Attached(p) {
		t.Error("Expected paragraph to be detached with its parent")
	}
}

func TestSetTextOnTextNodeIsSilent(t *testing.T) {
	doc := mustParse(t, samplePage)
	var changes int
	doc.Subscribe(func(Change) { changes++ })

	p := findByClass(doc.Root(), "log").FirstChild
	doc.SetText(p.FirstChild, "edited")
	if changes != 0 {
		t.Errorf("Expected no structural change, got %d", changes)
	}
	if TextContent(p) != "edited" {
		t.Errorf("Expected edited, got %q", TextContent(p))
	}

	doc.SetText(p, "replaced")
	if changes != 1 {
		t.Errorf("Expected element text replacement to notify, got %d", changes)
	}
}

func TestResetReportsOldAndNewRoots(t *testing.T) {
	doc := mustParse(t, samplePage)
	old := findByClass(doc.Root(), "log")

	var got Change
	doc.Subscribe(func(c Change) { got = c })
	if err := doc.Reset(`<html><body><div class="fresh"></div></body></html>`, "https://chatgpt.com/c/2"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if len(got.Removed) == 0 || len(got.Added) == 0 {
		t.Fatalf("Expected removed and added nodes, got %+v", got)
	}
	if doc.Attached(old) {
		t.Error("Expected old tree to be detached")
	}
	if findByClass(doc.Root(), "fresh") == nil {
		t.Error("Expected fresh tree to be attached")
	}
	if doc.URL() != "https://chatgpt.com/c/2" {
		t.Errorf("Expected URL to update, got %q", doc.URL())
	}
}

func TestCloneIsDetached(t *testing.T) {
	doc := mustParse(t, samplePage)
	log := findByClass(doc.Root(), "log")
	cp := Clone(log)

	if cp.Parent != nil {
		t.Error("Expected clone to have no parent")
	}
	if TextContent(cp) != TextContent(log) {
		t.Errorf("Expected %q, got %q", TextContent(log), TextContent(cp))
	}
	cp.FirstChild.FirstChild.Data = "mutated"
	if strings.Contains(TextContent(log), "mutated") {
		t.Error("Expected original to be untouched by clone edits")
	}
}

func TestIsBlock(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"div", true},
		{"p", true},
		{"li", true},
		{"span", false},
		{"b", false},
		{"message-content", true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			n := &html.Node{Type: html.ElementNode, Data: tt.tag}
			if got := IsBlock(n); got != tt.want {
				t.Errorf("IsBlock(%s) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestNearestBlockFromText(t *testing.T) {
	doc := mustParse(t, samplePage)
	log := findByClass(doc.Root(), "log")
	bold := log.LastChild.LastChild // <b>
	text := bold.FirstChild

	got := NearestBlock(text)
	if got != log.LastChild {
		t.Errorf("Expected enclosing <p>, got %s", Describe(got))
	}
}

func TestVisibleLenIgnoresHiddenElements(t *testing.T) {
	doc := mustParse(t, `<html><head></head><body>`+
		`<div class="mixed"> hello <script>var tracking = 1;</script><style>p{}</style>world </div>`+
		`<div class="hidden"><script>var only = "script";</script></div>`+
		`</body></html>`)

	mixed := findByClass(doc.Root(), "mixed")
	if got := VisibleLen(mixed); got != len("hello world") {
		t.Errorf("Expected visible length %d, got %d", len("hello world"), got)
	}
	if TrimmedLen(mixed) <= VisibleLen(mixed) {
		t.Error("Expected TrimmedLen to include script and style text")
	}
	if got := VisibleLen(findByClass(doc.Root(), "hidden")); got != 0 {
		t.Errorf("Expected script-only element to have no visible text, got %d", got)
	}
	if !IsHidden(mixed.FirstChild.NextSibling) {
		t.Error("Expected <script> to be hidden")
	}
	if IsHidden(mixed) || IsHidden(nil) {
		t.Error("Expected <div> and nil not to be hidden")
	}
}
