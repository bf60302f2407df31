package chathub

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"astrona/backend/internal/metrics"
	"astrona/backend/internal/models"
)

// ManagerService owns the connection lifecycle and ties the registry,
// presence, delivery and relay together.
type ManagerService struct {
	Registry *Registry
	Presence *Presence
	Delivery *Delivery
	Relay    *Relay
	Metrics  *metrics.Metrics

	locks userLocks
}

const lockStripes = 64

// userLocks serializes connect/disconnect transitions per user. A transition
// covers the registry change, the presence flag and the broadcast, so the last
// announcement for a user always matches the registry.
type userLocks [lockStripes]sync.Mutex

func (l *userLocks) lock(userID string) func() {
	h := fnv.New32a()
	h.Write([]byte(userID))
	mu := &l[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// NewManagerService wires the core. flags and m may be nil.
func NewManagerService(store MessageStore, policy Policy, flags PresenceFlags, m *metrics.Metrics) *ManagerService {
	registry := NewRegistry()
	return &ManagerService{
		Registry: registry,
		Presence: NewPresence(registry, flags),
		Delivery: NewDelivery(store, registry, m),
		Relay:    NewRelay(policy, registry, m),
		Metrics:  m,
	}
}

// Connect makes an authenticated client active: it registers c, closes any
// connection c replaces and announces the user online.
func (m *ManagerService) Connect(ctx context.Context, c Client) {
	userID := c.GetUserID()
	defer m.locks.lock(userID)()

	prev := m.Registry.Register(userID, c)
	if prev != nil {
		slog.InfoContext(ctx, "connection replaced", "user_id", userID)
		prev.Close()
	} else {
		m.Metrics.ConnectionOpened()
	}

	slog.InfoContext(ctx, "client connected", "user_id", userID)
	m.Presence.Announce(ctx, userID, true)
}

// Disconnect retires c. Nothing is announced when c had already been
// replaced by a newer connection for the same user.
func (m *ManagerService) Disconnect(ctx context.Context, c Client) {
	userID := c.GetUserID()
	defer m.locks.lock(userID)()

	if !m.Registry.Unregister(userID, c) {
		slog.DebugContext(ctx, "stale connection closed", "user_id", userID)
		return
	}

	m.Metrics.ConnectionClosed()
	slog.InfoContext(ctx, "client disconnected", "user_id", userID)
	m.Presence.Announce(ctx, userID, false)
}

// Dispatch routes one inbound frame from userID. Unknown frame types are
// ignored so older servers tolerate newer clients.
func (m *ManagerService) Dispatch(ctx context.Context, userID string, in models.Inbound) {
	m.Metrics.FrameInbound(inboundLabel(in))

	switch f := in.(type) {
	case models.DeliverFrame:
		m.Delivery.Deliver(ctx, userID, f)
	case models.SignalFrame:
		m.Relay.Forward(ctx, userID, f)
	case models.UnknownFrame:
		slog.DebugContext(ctx, "ignoring unknown frame", "user_id", userID, "type", string(f.Type))
	default:
		slog.DebugContext(ctx, "ignoring unhandled frame", "user_id", userID, "type", string(in.FrameType()))
	}
}

// DispatchRaw decodes and dispatches a frame read from the wire. Malformed
// frames are dropped without affecting the connection.
func (m *ManagerService) DispatchRaw(ctx context.Context, userID string, raw []byte) {
	in, err := models.DecodeInbound(raw)
	if err != nil {
		slog.DebugContext(ctx, "dropping malformed frame", "user_id", userID, "error", err)
		m.Metrics.FrameDropped(metrics.DropMalformed)
		return
	}
	m.Dispatch(ctx, userID, in)
}

// inboundLabel keeps the metric's label set closed: client-chosen type
// strings are never used as label values.
func inboundLabel(in models.Inbound) string {
	switch f := in.(type) {
	case models.DeliverFrame:
		return string(models.FrameDeliver)
	case models.SignalFrame:
		if f.Type.IsSignal() {
			return string(f.Type)
		}
	}
	return metrics.FrameUnknown
}
