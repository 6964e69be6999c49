package tab

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/chat-recorder/internal/identity"
	"github.com/ashureev/chat-recorder/internal/middleware"
	"github.com/coder/websocket"
)

const maxFrameBytes = 16 << 20

// WebSocketHandler bridges a page to its tab. It expects identity.Middleware
// to have placed the tab ID in the request context.
type WebSocketHandler struct {
	mgr            *Manager
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewWebSocketHandler creates a new page bridge handler.
func NewWebSocketHandler(mgr *Manager, allowedOrigins []string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		mgr:            mgr,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tabID := identity.TabIDFromContext(r.Context())
	if tabID == "" {
		http.Error(w, "missing tab id", http.StatusBadRequest)
		return
	}
	h.logger.Info("[TAB] Page connection request", "tab_id", tabID, "ip", identity.IPFromRequest(r))

	if !middleware.CheckOrigin(r, h.allowedOrigins, h.isDev) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("[TAB] Failed to accept page connection", "error", err, "tab_id", tabID)
		return
	}
	ws.SetReadLimit(maxFrameBytes)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("[TAB] Failed to close page connection", "error", closeErr, "tab_id", tabID)
		}
	}()

	t := h.mgr.GetOrCreate(tabID)
	out, detach := t.Attach()
	defer detach()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: page -> tab.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, t)
	}()

	// Output loop: tab -> page.
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, out, tabID)
	}()

	wg.Wait()
	h.logger.Info("[TAB] Page connection ended", "tab_id", tabID)
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, t *Tab) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("[TAB] Page connection closed", "tab_id", t.ID())
			} else {
				h.logger.Warn("[TAB] Page read error", "error", err, "tab_id", t.ID())
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.logger.Debug("[TAB] Malformed frame", "error", err, "tab_id", t.ID())
			if sendErr := t.Send(Outbound{Type: FrameError, Message: "malformed frame"}); sendErr != nil {
				h.logger.Debug("[TAB] Failed to send error frame", "error", sendErr)
			}
			continue
		}
		if err := t.Receive(in); err != nil {
			h.logger.Info("[TAB] Tab closed, dropping connection", "tab_id", t.ID())
			return
		}
	}
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, out <-chan Outbound, tabID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-out:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, f); err != nil {
				h.logger.Debug("[TAB] Page write error", "error", err, "tab_id", tabID)
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
