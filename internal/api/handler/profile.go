package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"astrona/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const searchLimit = 20

type profileRequest struct {
	Username *string `json:"username" binding:"omitempty,max=20"`
	Avatar   *string `json:"avatar" binding:"omitempty,http_url,max=2048"`
}

// SearchUsers looks users up by username. Usernames are not unique, so
// every match is returned up to searchLimit.
func (h *Handler) SearchUsers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"results": []models.Profile{}})
		return
	}

	ctx := c.Request.Context()
	users, err := h.Store.SearchUsers(ctx, q, searchLimit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to search users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	results := make([]models.Profile, 0, len(users))
	for i := range users {
		results = append(results, users[i].ToProfile(h.Hub.Registry.IsOnline(users[i].ID)))
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// UpdateProfile changes the caller's username and/or avatar URL. Image upload
// happens elsewhere; only the resulting URL is stored.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile data"})
		return
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 1-20 characters"})
			return
		}
		req.Username = &name
	}
	if req.Username == nil && req.Avatar == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)
	user, err := h.Store.UpdateProfile(ctx, userID, req.Username, req.Avatar)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update profile", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": user.ToProfile(h.Hub.Registry.IsOnline(userID))})
}
