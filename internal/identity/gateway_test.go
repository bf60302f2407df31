package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"astrona/backend/internal/config"
	"astrona/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	args := m.Called(blockerID, blockedID)
	return args.Bool(0), args.Error(1)
}

func newTestGateway(users UserLookup) *Gateway {
	return NewGateway(users, config.JWTConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "astrona"})
}

func TestResolveCredential_RoundTrip(t *testing.T) {
	users := new(mockUsers)
	user := &models.User{ID: "user-1", Number: "1234-5678"}
	users.On("GetUserByID", "user-1").Return(user, nil)
	g := newTestGateway(users)

	token, err := g.IssueToken(user)
	require.NoError(t, err)

	userID, err := g.ResolveCredential(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	users.AssertExpectations(t)
}

func TestResolveCredential_Rejections(t *testing.T) {
	user := &models.User{ID: "user-1", Number: "1234-5678"}

	issuer := newTestGateway(nil)
	valid, err := issuer.IssueToken(user)
	require.NoError(t, err)

	other := NewGateway(nil, config.JWTConfig{Secret: "other-secret", TTL: time.Hour, Issuer: "astrona"})
	forged, err := other.IssueToken(user)
	require.NoError(t, err)

	past := newTestGateway(nil)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.IssueToken(user)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": forged,
		"expired":      expired,
		"alg none":     unsigned,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			users := new(mockUsers)
			g := newTestGateway(users)

			_, err := g.ResolveCredential(context.Background(), token)

			assert.ErrorIs(t, err, ErrUnauthorized)
			users.AssertNotCalled(t, "GetUserByID", mock.Anything)
		})
	}

	t.Run("valid token passes parse", func(t *testing.T) {
		_, err := newTestGateway(nil).ParseToken(valid)
		assert.NoError(t, err)
	})
}

func TestResolveCredential_UnknownUser(t *testing.T) {
	users := new(mockUsers)
	users.On("GetUserByID", "ghost").Return(nil, nil)
	g := newTestGateway(users)

	token, err := g.IssueToken(&models.User{ID: "ghost"})
	require.NoError(t, err)

	_, err = g.ResolveCredential(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveCredential_StoreFailureIsUnauthorized(t *testing.T) {
	users := new(mockUsers)
	users.On("GetUserByID", "user-1").Return(nil, errors.New("db down"))
	g := newTestGateway(users)

	token, err := g.IssueToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = g.ResolveCredential(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserExistsAndIsBlocked(t *testing.T) {
	users := new(mockUsers)
	users.On("GetUserByID", "a").Return(&models.User{ID: "a"}, nil)
	users.On("GetUserByID", "z").Return(nil, nil)
	users.On("IsBlocked", "a", "b").Return(true, nil)
	g := newTestGateway(users)
	ctx := context.Background()

	ok, err := g.UserExists(ctx, "a")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.UserExists(ctx, "z")
	assert.NoError(t, err)
	assert.False(t, ok)

	blocked, err := g.IsBlocked(ctx, "a", "b")
	assert.NoError(t, err)
	assert.True(t, blocked)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
