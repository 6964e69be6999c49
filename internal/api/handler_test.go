//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chat-recorder/internal/broadcast"
	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/domain"
	"github.com/ashureev/chat-recorder/internal/store"
	"github.com/ashureev/chat-recorder/internal/tab"
	"github.com/go-chi/chi/v5"
	"golang.org/x/net/html"
)

const pageURL = "https://claude.ai/chat/1"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func filler(seed string, n int) string {
	s := strings.Repeat(seed+" ", n/len(seed)+1)
	return s[:n-1] + "x"
}

func chatPage() string {
	return `<html><head></head><body><main class="app-main"><div class="conversation-log">` +
		`<div class="message user">` + filler("question", 60) + `</div>` +
		`<div class="message assistant">` + filler("answer", 80) + `</div>` +
		`<div class="message user">` + filler("followup", 70) + `</div>` +
		`</div></main></body></html>`
}

const barePage = `<html><head></head><body><nav class="sidebar"><a href="/">New chat</a></nav></body></html>`

func pathTo(t *testing.T, markup, class string) string {
	t.Helper()
	doc, err := dom.ParseString(markup, pageURL)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	var found string
	dom.Walk(doc.Root(), func(n *html.Node) bool {
		if found == "" && dom.IsElement(n) && dom.ClassName(n) == class {
			found = dom.PathOf(n).String()
		}
		return found == ""
	})
	if found == "" {
		t.Fatalf("No element with class %q", class)
	}
	return found
}

type fakeRepo struct {
	mu      sync.Mutex
	msgs    []*domain.StoredMessage
	pingErr error
	filter  store.MessageFilter
}

func (f *fakeRepo) InsertMessage(_ context.Context, msg *domain.StoredMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeRepo) ListMessages(_ context.Context, filter store.MessageFilter) ([]*domain.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return f.msgs, nil
}

func (f *fakeRepo) CountMessages(context.Context) (int64, error) { return int64(len(f.msgs)), nil }
func (f *fakeRepo) Ping(context.Context) error                   { return f.pingErr }
func (f *fakeRepo) Close() error                                 { return nil }

type testServer struct {
	router http.Handler
	tabs   *tab.Manager
	repo   *fakeRepo
}

func newTestServer(t *testing.T, repo *fakeRepo) *testServer {
	t.Helper()
	tabs := tab.NewManager(tab.Options{Logger: quietLogger()})
	t.Cleanup(tabs.CloseAll)

	var r store.Repository
	if repo != nil {
		r = repo
	}
	base := NewHandler(tabs, broadcast.NewHub(quietLogger()), r)
	router := chi.NewRouter()
	NewHealthHandler(base).RegisterHealth(router)
	NewTabHandler(base).RegisterRoutes(router)
	NewMessageHandler(base).RegisterRoutes(router)
	return &testServer{router: router, tabs: tabs, repo: repo}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// loadTab creates a tab and mirrors markup into it.
func (s *testServer) loadTab(t *testing.T, id, markup string) *tab.Tab {
	t.Helper()
	tb := s.tabs.GetOrCreate(id)
	if err := tb.Receive(tab.Inbound{Type: tab.FrameSnapshot, URL: pageURL, HTML: markup}); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	return tb
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestTabHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	s.loadTab(t, "t1", chatPage())

	rec := s.do(t, http.MethodPost, "/api/tabs/t1/selection", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body)
	}
	if st := decode[domain.TabStatus](t, rec); st.Phase != "awaiting_selection" || st.Status != "Awaiting Selection" {
		t.Errorf("Unexpected status %+v", st)
	}

	body := `{"path":"` + pathTo(t, chatPage(), "message assistant") + `"}`
	rec = s.do(t, http.MethodPost, "/api/tabs/t1/select", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	st := decode[domain.TabStatus](t, rec)
	if st.Phase != "recording" || st.ContainerPath != pathTo(t, chatPage(), "conversation-log") || st.Catalogued != 3 {
		t.Errorf("Unexpected status %+v", st)
	}

	rec = s.do(t, http.MethodGet, "/api/tabs", "")
	list := decode[struct {
		Tabs []domain.TabStatus `json:"tabs"`
	}](t, rec)
	if len(list.Tabs) != 1 || list.Tabs[0].TabID != "t1" {
		t.Errorf("Unexpected list %+v", list)
	}

	rec = s.do(t, http.MethodPost, "/api/tabs/t1/stop", "")
	if st := decode[domain.TabStatus](t, rec); rec.Code != http.StatusOK || st.Phase != "idle" || st.Status != "Inactive" {
		t.Errorf("Expected idle after stop, got %d %+v", rec.Code, st)
	}

	rec = s.do(t, http.MethodDelete, "/api/tabs/t1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodGet, "/api/tabs/t1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestTabHandler_SelectErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.loadTab(t, "bare", barePage)

	rec := s.do(t, http.MethodPost, "/api/tabs/bare/select", `{"path":"0"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 before selection, got %d", rec.Code)
	}

	s.do(t, http.MethodPost, "/api/tabs/bare/selection", "")

	tests := []struct {
		name string
		body string
		code int
		err  string
	}{
		{"bad body", `{`, http.StatusBadRequest, "invalid_body"},
		{"bad path", `{"path":"x/y"}`, http.StatusBadRequest, "invalid_path"},
		{"missing node", `{"path":"0/7/7"}`, http.StatusNotFound, "node_not_found"},
		{"no container", `{"path":"` + pathTo(t, barePage, "sidebar") + `"}`, http.StatusUnprocessableEntity, "no_container_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/tabs/bare/select", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
			if got := decode[map[string]string](t, rec)["error"]; got != tt.err {
				t.Errorf("Expected %q, got %q", tt.err, got)
			}
		})
	}

	if rec := s.do(t, http.MethodPost, "/api/tabs/nope/stop", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown tab, got %d", rec.Code)
	}
}

func TestWriteTabError_Closed(t *testing.T) {
	rec := httptest.NewRecorder()
	writeTabError(rec, tab.ErrTabClosed)
	if rec.Code != http.StatusGone {
		t.Errorf("Expected 410, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	writeTabError(rec, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestMessageHandler_List(t *testing.T) {
	repo := &fakeRepo{msgs: []*domain.StoredMessage{{ID: "m1", Sender: "AI", Text: "hi", Source: "claude"}}}
	s := newTestServer(t, repo)

	rec := s.do(t, http.MethodGet, "/api/messages?source=claude&sender=AI&limit=5000&since=2026-01-02T03:04:05Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	got := decode[struct {
		Messages []domain.StoredMessage `json:"messages"`
	}](t, rec)
	if len(got.Messages) != 1 || got.Messages[0].ID != "m1" {
		t.Errorf("Unexpected messages %+v", got)
	}
	want := store.MessageFilter{
		Source: "claude",
		Sender: "AI",
		Limit:  maxListLimit,
		Since:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if !repo.filter.Since.Equal(want.Since) || repo.filter.Source != want.Source || repo.filter.Sender != want.Sender || repo.filter.Limit != want.Limit {
		t.Errorf("Expected filter %+v, got %+v", want, repo.filter)
	}

	for _, q := range []string{"limit=0", "limit=abc", "since=yesterday"} {
		if rec := s.do(t, http.MethodGet, "/api/messages?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestMessageHandler_StoreDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := s.do(t, http.MethodGet, "/api/messages", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name string
		repo *fakeRepo
		code int
		db   string
	}{
		{"disabled", nil, http.StatusOK, "disabled"},
		{"ok", &fakeRepo{}, http.StatusOK, "ok"},
		{"down", &fakeRepo{pingErr: errors.New("gone")}, http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.repo)
			rec := s.do(t, http.MethodGet, "/health", "")
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, rec.Code)
			}
			got := decode[struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}](t, rec)
			if got.Checks["database"] != tt.db || got.Checks["api"] != "ok" {
				t.Errorf("Unexpected checks %+v", got.Checks)
			}
		})
	}
}
