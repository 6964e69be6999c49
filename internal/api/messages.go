package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/chat-recorder/internal/domain"
	"github.com/ashureev/chat-recorder/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxListLimit = 1000

// MessageHandler serves the stored transcript.
type MessageHandler struct {
	*Handler
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(base *Handler) *MessageHandler {
	return &MessageHandler{Handler: base}
}

// RegisterRoutes registers message routes.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/messages", h.List)
}

// List returns stored messages, newest first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusServiceUnavailable, "store_disabled")
		return
	}

	q := r.URL.Query()
	filter := store.MessageFilter{
		Topic:  q.Get("topic"),
		Source: q.Get("source"),
		Sender: q.Get("sender"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid_since")
			return
		}
		filter.Since = since
	}

	msgs, err := h.repo.ListMessages(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list messages", "error", err)
		Error(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if msgs == nil {
		msgs = []*domain.StoredMessage{}
	}
	JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
