package chathub

import (
	"context"
	"errors"
	"log/slog"

	"astrona/backend/internal/models"
	"astrona/backend/internal/storage"
)

// PresenceFlags persists the online flag outside the process.
type PresenceFlags interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Presence announces online/offline transitions to every connected user.
// The subject is included in the arrival fan-out because it is registered
// before the broadcast; on departure it is already gone.
type Presence struct {
	registry *Registry
	flags    PresenceFlags
}

func NewPresence(registry *Registry, flags PresenceFlags) *Presence {
	return &Presence{registry: registry, flags: flags}
}

// Announce must be called after the registry mutation for the transition has
// completed. Every call produces one broadcast.
func (p *Presence) Announce(ctx context.Context, userID string, online bool) int {
	if p.flags != nil {
		if err := p.flags.SetOnline(ctx, userID, online); err != nil && !errors.Is(err, storage.ErrPresenceDisabled) {
			slog.WarnContext(ctx, "failed to update presence flag", "user_id", userID, "online", online, "error", err)
		}
	}

	frame, err := models.NewEnvelope(models.FramePresence, models.PresencePayload{UserID: userID, Online: online})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode presence", "user_id", userID, "error", err)
		return 0
	}

	n := p.registry.Broadcast(frame)
	slog.DebugContext(ctx, "presence announced", "user_id", userID, "online", online, "recipients", n)
	return n
}
