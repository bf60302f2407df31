package handler

import (
	"context"
	"log/slog"
	"net/http"

	"astrona/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the web client's origin once it has a fixed deployment host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the handshake and hands the upgraded
// connection to the hub. An unresolvable credential gets a bare 401 and no
// connection is registered.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.HubCfg.AuthTimeout)
	userID, err := h.Identity.ResolveCredential(ctx, credential(c.Request))
	cancel()
	if err != nil {
		slog.DebugContext(c.Request.Context(), "websocket auth rejected", "remote", c.ClientIP(), "error", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, userID, h.HubCfg)
	h.Hub.Connect(context.WithoutCancel(c.Request.Context()), client)
	client.Run()
}
