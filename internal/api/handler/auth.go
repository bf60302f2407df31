package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"

	"astrona/backend/internal/identity"
	"astrona/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const maxNumberAttempts = 10

var numberPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

var errNumbersExhausted = errors.New("no free number after retries")

type signupRequest struct {
	Username string `json:"username" binding:"required,min=1,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=20"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Number   string `json:"number" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup creates an account with a freshly allocated NNNN-NNNN number.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signup data"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 1-20 characters"})
		return
	}

	ctx := c.Request.Context()
	number, err := h.allocateNumber(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to allocate number", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		Number:       number,
		PasswordHash: hash,
	}
	if err := h.Store.CreateUser(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	slog.InfoContext(ctx, "user signed up", "user_id", user.ID, "number", user.Number)
	h.respondWithToken(c, http.StatusCreated, user)
}

// Login exchanges a number and password for a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || !numberPattern.MatchString(req.Number) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid login data"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUserByNumber(ctx, req.Number)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load user", "number", req.Number, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}
	if user == nil || !identity.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Me returns the caller's own profile.
func (h *Handler) Me(c *gin.Context) {
	userID := currentUser(c)
	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": user.ToProfile(h.Hub.Registry.IsOnline(userID))})
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.Identity.IssueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(status, gin.H{
		"token":   token,
		"profile": user.ToProfile(h.Hub.Registry.IsOnline(user.ID)),
	})
}

func (h *Handler) allocateNumber(ctx context.Context) (string, error) {
	for range maxNumberAttempts {
		number := fmt.Sprintf("%04d-%04d", rand.IntN(10000), rand.IntN(10000))
		taken, err := h.Store.NumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check number: %w", err)
		}
		if !taken {
			return number, nil
		}
	}
	return "", errNumbersExhausted
}
