package extract

import (
	"strconv"
	"strings"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
)

const fingerprintAncestors = 3

// Fingerprint derives a dedup key from the trimmed text of n, its class and
// the class (or tag) of its three nearest ancestors. It is not collision free.
func Fingerprint(n *html.Node) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(xxhash.Sum64String(strings.TrimSpace(dom.TextContent(n))), 36))
	b.WriteByte('|')
	b.WriteString(dom.ClassName(n))
	for _, a := range dom.Ancestors(n, fingerprintAncestors) {
		b.WriteByte('|')
		if class := dom.ClassName(a); class != "" {
			b.WriteString(class)
		} else {
			b.WriteString(a.Data)
		}
	}
	return b.String()
}
