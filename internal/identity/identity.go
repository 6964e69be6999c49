// Package identity assigns and carries the tab identity of a request.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	TabHeaderName = "X-Recorder-Tab-ID"
	TabQueryParam = "tab_id"
)

type contextKey int

const (
	tabIDKey contextKey = iota
	generatedKey
)

var tabIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// TabIDFromContext extracts the tab ID from the request context.
func TabIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tabIDKey).(string); ok {
		return v
	}
	return ""
}

// GeneratedFromContext reports whether the tab ID was minted for this request
// rather than supplied by the client.
func GeneratedFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(generatedKey).(bool)
	return v
}

// WithTabID returns a context carrying id.
func WithTabID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tabIDKey, id)
}

// SanitizeTabID returns the trimmed id, or "" when it is not acceptable.
func SanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if !tabIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// NewTabID mints a fresh tab identifier.
func NewTabID() string {
	return uuid.NewString()
}

func tabIDFromRequest(r *http.Request) string {
	id := r.Header.Get(TabHeaderName)
	if id == "" {
		id = r.URL.Query().Get(TabQueryParam)
	}
	return SanitizeTabID(id)
}

// Middleware injects the tab ID taken from the header or query string. A
// missing or malformed ID is replaced by a new one, echoed back in the
// response header so the page can reconnect under it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := tabIDFromRequest(r)
		generated := false
		if id == "" {
			id = NewTabID()
			generated = true
		}
		w.Header().Set(TabHeaderName, id)

		ctx := WithTabID(r.Context(), id)
		ctx = context.WithValue(ctx, generatedKey, generated)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
