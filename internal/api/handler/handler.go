package handler

import (
	"net/http"
	"strings"

	"astrona/backend/internal/chathub"
	"astrona/backend/internal/config"
	"astrona/backend/internal/identity"
	"astrona/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "userID"

// Handler holds the dependencies shared by the REST and WebSocket routes.
type Handler struct {
	Hub      *chathub.ManagerService
	Store    storage.Storage
	Identity *identity.Gateway
	HubCfg   config.HubConfig
}

func NewHandler(hub *chathub.ManagerService, store storage.Storage, gw *identity.Gateway, cfg config.HubConfig) *Handler {
	return &Handler{Hub: hub, Store: store, Identity: gw, HubCfg: cfg}
}

// RequireAuth resolves the bearer token and stores the caller's ID on the context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		userID, err := h.Identity.ResolveCredential(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func bearerToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// credential prefers the query parameter because browsers cannot set headers
// on a WebSocket handshake.
func credential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return bearerToken(r)
}
