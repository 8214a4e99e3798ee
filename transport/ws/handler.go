package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"

	"github.com/minyu3108/scheduling/logging"
	"github.com/minyu3108/scheduling/server"
)

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	hub    *server.Hub
	logger *logging.Logger

	// baseCtx outlives the upgrade request: the connection is hijacked,
	// so the request context dies with the handler while the session
	// keeps running.
	baseCtx context.Context
}

// NewHandler creates the upgrade handler. ctx bounds the lifetime of
// all sessions it spawns.
func NewHandler(ctx context.Context, hub *server.Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:     hub,
		logger:  logger.WithComponent(logging.Component("transport/ws")),
		baseCtx: ctx,
	}
}

// ServeHTTP performs the WebSocket handshake and hands the connection
// to a new session goroutine.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	sess := newSession(conn, h.hub, h.logger)
	go sess.run(h.baseCtx)
}
