package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes mounts every route on r. Path parameters share the name :id
// because gin requires one wildcard name per position.
func (h *Handler) SetupRoutes(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	api.POST("/signup", h.Signup)
	api.POST("/login", h.Login)

	auth := api.Group("", h.RequireAuth())
	auth.GET("/me", h.Me)
	auth.PUT("/profile", h.UpdateProfile)
	auth.GET("/users/search", h.SearchUsers)

	auth.GET("/contacts", h.ListContacts)
	auth.POST("/contacts", h.AddContact)
	auth.POST("/block", h.Block)
	auth.POST("/unblock", h.Unblock)

	auth.GET("/messages/:id", h.ListMessages)
	auth.POST("/messages/:id", h.SendMessage)
	auth.POST("/messages/:id/seen", h.MarkSeen)
	auth.DELETE("/messages/:id/:messageId", h.DeleteMessage)
}
