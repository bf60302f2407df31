package storage_test

import (
	"context"
	"testing"

	"astrona/backend/internal/storage"

	"github.com/stretchr/testify/assert"
)

func TestPresence_DisabledWithoutRedis(t *testing.T) {
	s := storage.NewStorageService(nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.SetOnline(ctx, "u1", true), storage.ErrPresenceDisabled)
	assert.ErrorIs(t, s.ResetPresence(ctx), storage.ErrPresenceDisabled)

	ids, err := s.OnlineUserIDs(ctx)
	assert.ErrorIs(t, err, storage.ErrPresenceDisabled)
	assert.Nil(t, ids)
}
