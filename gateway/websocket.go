package gateway

import (
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
	stderrors "errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	frameMessage = "message"

	closeReasonUnauthenticated = "unauthenticated"
	closeReasonDropped         = "dropped"
	closeReasonShutdown        = "shutdown"
)

type LiveFrame struct {
	Type    string          `json:"type"`
	Message MessageResponse `json:"message"`
}

// createUpgrader accepts clients without an Origin header (non-browser)
// and browsers whose origin is allowed.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
}

// HandleLive handles GET /live.
// The credential is checked before the upgrade so a rejected client gets a plain HTTP status.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	feed, err := h.relay.LiveFeed(r.Context(), credential(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer feed.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "identity", feed.Session().Identity, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Client frames are ignored; a read error means the client is gone
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.stream(ctx, conn, feed)
}

func (h *Handler) stream(ctx context.Context, conn *websocket.Conn, feed *runtime.Feed) {
	identity := feed.Session().Identity
	for {
		message, err := feed.Next(ctx)
		if err != nil {
			h.closeWith(conn, err)
			h.log.Debug("Live stream ended", "identity", identity, "error", err)
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		if err := conn.WriteJSON(LiveFrame{Type: frameMessage, Message: toMessageResponse(message)}); err != nil {
			h.log.Debug("Live write failed", "identity", identity, "error", err)
			return
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, err error) {
	code, reason := websocket.CloseNormalClosure, ""
	switch {
	case stderrors.Is(err, errors.ErrUnauthenticated):
		code, reason = websocket.ClosePolicyViolation, closeReasonUnauthenticated
	case stderrors.Is(err, errors.ErrDeliveryDropped):
		code, reason = websocket.CloseTryAgainLater, closeReasonDropped
	case stderrors.Is(err, context.Canceled):
		code, reason = websocket.CloseGoingAway, closeReasonShutdown
	}
	deadline := time.Now().Add(h.config.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
