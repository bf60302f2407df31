package chathub_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"astrona/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockClient is a chathub.Client whose outbound frames land in a buffered channel.
type mockClient struct {
	userID string
	frames chan models.Envelope
	closed atomic.Bool
	refuse bool
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID: userID,
		frames: make(chan models.Envelope, 32),
	}
}

func (c *mockClient) GetUserID() string { return c.userID }

func (c *mockClient) Send(frame models.Envelope) bool {
	if c.refuse || c.closed.Load() {
		return false
	}
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

func (c *mockClient) Run() {}

func (c *mockClient) Close() { c.closed.Store(true) }

func (c *mockClient) next(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.userID)
		return models.Envelope{}
	}
}

func (c *mockClient) drain() []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case f := <-c.frames:
			out = append(out, f)
		default:
			return out
		}
	}
}

func decodePayload[T any](t *testing.T, f models.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

// MockStore implements chathub.MessageStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindMessage(ctx context.Context, threadID, messageID string) (*models.Message, error) {
	args := m.Called(threadID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStore) AdvanceStatus(ctx context.Context, threadID, messageID string, status models.MessageStatus) (bool, error) {
	args := m.Called(threadID, messageID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) MarkSeen(ctx context.Context, threadID, recipientID string, messageIDs []string) ([]models.Message, error) {
	args := m.Called(threadID, recipientID, messageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// MockPolicy implements chathub.Policy.
type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPolicy) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	args := m.Called(blockerID, blockedID)
	return args.Bool(0), args.Error(1)
}

// MockFlags implements chathub.PresenceFlags.
type MockFlags struct {
	mock.Mock
}

func (m *MockFlags) SetOnline(ctx context.Context, userID string, online bool) error {
	args := m.Called(userID, online)
	return args.Error(0)
}
