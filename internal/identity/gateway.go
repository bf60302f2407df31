// Package identity authenticates connection attempts and answers block-policy
// questions for the real-time core.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"astrona/backend/internal/config"
	"astrona/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = errors.New("unauthorized")

// UserLookup is the slice of the user store the gateway reads.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

// Claims carried by every credential.
type Claims struct {
	UserID string `json:"id"`
	Number string `json:"number"`
	jwt.RegisteredClaims
}

type Gateway struct {
	users  UserLookup
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewGateway(users UserLookup, cfg config.JWTConfig) *Gateway {
	return &Gateway{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// IssueToken signs an HS256 credential for user.
func (g *Gateway) IssueToken(user *models.User) (string, error) {
	now := g.now()
	claims := Claims{
		UserID: user.ID,
		Number: user.Number,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// ParseToken checks signature, issuer and expiry without touching storage.
func (g *Gateway) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", ErrUnauthorized)
	}
	return claims, nil
}

// ResolveCredential maps a presented token to a known user ID.
// Any failure, including a deleted account, is ErrUnauthorized; storage
// errors are wrapped so callers can log them.
func (g *Gateway) ResolveCredential(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	claims, err := g.ParseToken(tokenString)
	if err != nil {
		return "", err
	}

	user, err := g.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if user == nil {
		return "", fmt.Errorf("%w: unknown user %s", ErrUnauthorized, claims.UserID)
	}
	return user.ID, nil
}

func (g *Gateway) UserExists(ctx context.Context, userID string) (bool, error) {
	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// IsBlocked reports whether blockerID has blocked blockedID.
func (g *Gateway) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return g.users.IsBlocked(ctx, blockerID, blockedID)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
