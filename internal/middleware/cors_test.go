package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"empty origin", "", []string{"https://a.example"}, true},
		{"wildcard", "https://b.example", []string{"*"}, true},
		{"exact", "https://a.example", []string{"https://a.example"}, true},
		{"mismatch", "https://evil.example", []string{"https://a.example"}, false},
		{"empty list", "https://a.example", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OriginAllowed(tt.origin, tt.allowed); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCheckOrigin_DevAcceptsAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/messages", nil)
	req.Header.Set("Origin", "https://evil.example")

	if !CheckOrigin(req, []string{"https://a.example"}, true) {
		t.Error("Expected development mode to accept any origin")
	}
	if CheckOrigin(req, []string{"https://a.example"}, false) {
		t.Error("Expected foreign origin to be rejected")
	}
}

func TestCORS_Headers(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := CORS([]string{"https://a.example"})(next)

	req := httptest.NewRequest(http.MethodGet, "/api/tabs", nil)
	req.Header.Set("Origin", "https://a.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
		t.Errorf("Expected echoed origin, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("Expected credentials for explicit origin")
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/tabs", nil)
	preflight.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Expected no CORS headers for foreign origin")
	}
}
