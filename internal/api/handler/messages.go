package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"astrona/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const maxTextLength = 1000

type sendMessageRequest struct {
	Text  *string `json:"text"`
	Image *string `json:"image"`
}

type seenRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required,min=1"`
}

// ListMessages returns the thread with the peer in insertion order. Deleted
// messages keep their place but lose their content.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	threadID := models.ThreadKey(currentUser(c), c.Param("id"))

	msgs, err := h.Store.ListThread(ctx, threadID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list thread", "thread_id", threadID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Visible())
	}
	c.JSON(http.StatusOK, gin.H{"threadId": threadID, "messages": out})
}

// SendMessage stores a message for the peer and pushes it if they are online.
func (h *Handler) SendMessage(c *gin.Context) {
	me, peer := currentUser(c), c.Param("id")
	ctx := c.Request.Context()
	if peer == me {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot message yourself"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message"})
		return
	}
	text, image := trimmed(req.Text), trimmed(req.Image)
	if text == nil && image == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must have text or an image"})
		return
	}
	if text != nil && utf8.RuneCountInString(*text) > maxTextLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is too long"})
		return
	}

	recipient, err := h.Store.GetUserByID(ctx, peer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load recipient", "recipient_id", peer, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}
	if recipient == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
		return
	}

	if recipient.HasBlocked(me) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Recipient unavailable"})
		return
	}
	if blocked, err := h.Identity.IsBlocked(ctx, me, peer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	} else if blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "You have blocked this user"})
		return
	}

	msg := &models.Message{
		ThreadID:    models.ThreadKey(me, peer),
		SenderID:    me,
		RecipientID: peer,
		Text:        text,
		ImageURL:    image,
	}
	if err := h.Store.AppendMessage(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to store message", "thread_id", msg.ThreadID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	pushed := h.Hub.Delivery.PushMessage(ctx, *msg)
	slog.DebugContext(ctx, "message sent", "thread_id", msg.ThreadID, "message_id", msg.ID, "pushed", pushed)
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkSeen records read receipts from the caller for messages in the thread.
func (h *Handler) MarkSeen(c *gin.Context) {
	me, threadID := currentUser(c), c.Param("id")
	if !models.IsThreadParticipant(threadID, me) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this thread"})
		return
	}

	var req seenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageIds required"})
		return
	}

	changed, err := h.Hub.Delivery.MarkSeen(c.Request.Context(), me, threadID, req.MessageIDs)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to mark seen", "thread_id", threadID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update messages"})
		return
	}

	updated := make([]string, 0, len(changed))
	for _, m := range changed {
		updated = append(updated, m.ID)
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// DeleteMessage tombstones a message. Either participant may delete.
func (h *Handler) DeleteMessage(c *gin.Context) {
	me, threadID, messageID := currentUser(c), c.Param("id"), c.Param("messageId")
	if !models.IsThreadParticipant(threadID, me) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this thread"})
		return
	}

	ctx := c.Request.Context()
	msg, err := h.Store.TombstoneMessage(ctx, threadID, messageID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete message", "thread_id", threadID, "message_id", messageID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete message"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	h.Hub.Delivery.PushTombstone(ctx, *msg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
