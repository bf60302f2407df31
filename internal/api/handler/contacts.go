package handler

import (
	"log/slog"
	"net/http"

	"astrona/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type numberRequest struct {
	Number string `json:"number" binding:"required"`
}

// ListContacts returns the caller's contacts with their live online flag.
func (h *Handler) ListContacts(c *gin.Context) {
	ctx := c.Request.Context()
	me, err := h.Store.GetUserByID(ctx, currentUser(c))
	if err != nil || me == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	users, err := h.Store.GetUsersByIDs(ctx, me.Contacts)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load contacts", "user_id", me.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load contacts"})
		return
	}

	contacts := make([]models.Profile, 0, len(users))
	for i := range users {
		contacts = append(contacts, users[i].ToProfile(h.Hub.Registry.IsOnline(users[i].ID)))
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) AddContact(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.AddContact(ctx, currentUser(c), target.ID); err != nil {
		slog.ErrorContext(ctx, "failed to add contact", "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": target.ToProfile(h.Hub.Registry.IsOnline(target.ID))})
}

func (h *Handler) Block(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.BlockUser(ctx, currentUser(c), target.ID); err != nil {
		slog.ErrorContext(ctx, "failed to block user", "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to block user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Unblock(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.UnblockUser(ctx, currentUser(c), target.ID); err != nil {
		slog.ErrorContext(ctx, "failed to unblock user", "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unblock user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bindTarget resolves the {number} body to another user, writing the error
// response itself when it cannot.
func (h *Handler) bindTarget(c *gin.Context) (*models.User, bool) {
	var req numberRequest
	if err := c.ShouldBindJSON(&req); err != nil || !numberPattern.MatchString(req.Number) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid number"})
		return nil, false
	}

	target, err := h.Store.GetUserByNumber(c.Request.Context(), req.Number)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to load user", "number", req.Number, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return nil, false
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Number doesn't exist"})
		return nil, false
	}
	if target.ID == currentUser(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "That is your own number"})
		return nil, false
	}
	return target, true
}
