// Package api provides HTTP handlers for the recorder API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/chat-recorder/internal/broadcast"
	"github.com/ashureev/chat-recorder/internal/store"
	"github.com/ashureev/chat-recorder/internal/tab"
)

// Handler provides common handler utilities.
type Handler struct {
	tabs *tab.Manager
	hub  *broadcast.Hub
	repo store.Repository // nil when the transcript store is disabled
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(tabs *tab.Manager, hub *broadcast.Hub, repo store.Repository) *Handler {
	return &Handler{
		tabs: tabs,
		hub:  hub,
		repo: repo,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
