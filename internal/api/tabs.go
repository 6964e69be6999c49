package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/chat-recorder/internal/dom"
	"github.com/ashureev/chat-recorder/internal/domain"
	"github.com/ashureev/chat-recorder/internal/recorder"
	"github.com/ashureev/chat-recorder/internal/tab"
	"github.com/go-chi/chi/v5"
)

// TabHandler exposes the activation controls of each tab.
type TabHandler struct {
	*Handler
}

// NewTabHandler creates a new tab handler.
func NewTabHandler(base *Handler) *TabHandler {
	return &TabHandler{Handler: base}
}

// RegisterRoutes registers tab routes.
func (h *TabHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tabs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Route("/{tabID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Close)
			r.Post("/selection", h.StartSelection)
			r.Post("/select", h.Select)
			r.Post("/stop", h.Stop)
		})
	})
}

type selectRequest struct {
	Path string `json:"path"`
}

// List returns the status of every tab.
func (h *TabHandler) List(w http.ResponseWriter, _ *http.Request) {
	tabs := h.tabs.List()
	out := make([]domain.TabStatus, 0, len(tabs))
	for _, t := range tabs {
		st, err := t.Status()
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	JSON(w, http.StatusOK, map[string]any{"tabs": out})
}

// Get returns one tab's status.
func (h *TabHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeStatus(w, t, http.StatusOK)
}

// StartSelection asks the tab to wait for a click on a message.
func (h *TabHandler) StartSelection(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := t.StartSelection(); err != nil {
		writeTabError(w, err)
		return
	}
	h.writeStatus(w, t, http.StatusAccepted)
}

// Select resolves the container from the node at the given path.
func (h *TabHandler) Select(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := t.Select(req.Path); err != nil {
		slog.Info("Selection rejected", "tab_id", t.ID(), "path", req.Path, "error", err)
		writeTabError(w, err)
		return
	}
	h.writeStatus(w, t, http.StatusOK)
}

// Stop ends recording.
func (h *TabHandler) Stop(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := t.Stop(); err != nil {
		writeTabError(w, err)
		return
	}
	h.writeStatus(w, t, http.StatusOK)
}

// Close removes the tab and releases its resources.
func (h *TabHandler) Close(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabID")
	if !h.tabs.Remove(tabID) {
		Error(w, http.StatusNotFound, "tab_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TabHandler) lookup(w http.ResponseWriter, r *http.Request) (*tab.Tab, bool) {
	t, ok := h.tabs.Get(chi.URLParam(r, "tabID"))
	if !ok {
		Error(w, http.StatusNotFound, "tab_not_found")
		return nil, false
	}
	return t, true
}

func (h *TabHandler) writeStatus(w http.ResponseWriter, t *tab.Tab, code int) {
	st, err := t.Status()
	if err != nil {
		writeTabError(w, err)
		return
	}
	JSON(w, code, st)
}

func writeTabError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recorder.ErrNoContainerFound):
		Error(w, http.StatusUnprocessableEntity, "no_container_found")
	case errors.Is(err, recorder.ErrNotAwaitingSelection):
		Error(w, http.StatusConflict, "not_awaiting_selection")
	case errors.Is(err, dom.ErrInvalidPath):
		Error(w, http.StatusBadRequest, "invalid_path")
	case errors.Is(err, dom.ErrNodeNotFound):
		Error(w, http.StatusNotFound, "node_not_found")
	case errors.Is(err, tab.ErrTabClosed):
		Error(w, http.StatusGone, "tab_closed")
	default:
		slog.Error("Tab operation failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error")
	}
}
