package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/chat-recorder/internal/middleware"
	"github.com/coder/websocket"
)

const consumerBuffer = 64

// ConsumerHandler streams published messages to a websocket client, one JSON
// payload per text frame.
type ConsumerHandler struct {
	hub            *Hub
	defaultTopic   string
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewConsumerHandler creates a consumer stream handler.
func NewConsumerHandler(hub *Hub, defaultTopic string, allowedOrigins []string, isDev bool, logger *slog.Logger) *ConsumerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTopic == "" {
		defaultTopic = DefaultTopic
	}
	return &ConsumerHandler{
		hub:            hub,
		defaultTopic:   defaultTopic,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *ConsumerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = h.defaultTopic
	}

	if !middleware.CheckOrigin(r, h.allowedOrigins, h.isDev) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("[HUB] Failed to accept consumer", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("[HUB] Failed to close consumer", "error", closeErr)
		}
	}()

	sub := h.hub.Subscribe(topic, consumerBuffer)
	defer sub.Cancel()

	// Consumers never send; CloseRead discards input and cancels on close.
	ctx := ws.CloseRead(r.Context())
	h.logger.Info("[HUB] Consumer connected", "topic", topic, "ip", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("[HUB] Consumer disconnected", "topic", topic)
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, msg); err != nil {
				h.logger.Debug("[HUB] Consumer write failed", "error", err, "topic", topic)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
