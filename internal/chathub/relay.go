package chathub

import (
	"context"
	"log/slog"

	"astrona/backend/internal/metrics"
	"astrona/backend/internal/models"
)

// Policy answers the identity questions the relay asks before forwarding.
type Policy interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

// Relay forwards call-control frames between two users. The data field is
// never inspected.
type Relay struct {
	policy   Policy
	registry *Registry
	metrics  *metrics.Metrics
}

func NewRelay(policy Policy, registry *Registry, m *metrics.Metrics) *Relay {
	return &Relay{policy: policy, registry: registry, metrics: m}
}

// Forward applies the block policy and relays f from caller to f.To:
//
//   - unknown target: dropped
//   - caller blocked callee: dropped, nobody is told
//   - callee blocked caller: caller gets call-error "Unavailable"
//   - otherwise: callee gets {type, payload: {from, data}} if online
//
// Collaborator failures drop the frame. The returned outcome is one of the
// metrics.Outcome* relay values.
func (r *Relay) Forward(ctx context.Context, from string, f models.SignalFrame) string {
	outcome := r.decide(ctx, from, f)
	r.metrics.Relay(outcome)
	return outcome
}

func (r *Relay) decide(ctx context.Context, from string, f models.SignalFrame) string {
	log := slog.With("from", from, "to", f.To, "type", string(f.Type))

	exists, err := r.policy.UserExists(ctx, f.To)
	if err != nil {
		log.WarnContext(ctx, "relay: target lookup failed", "error", err)
		return metrics.OutcomeError
	}
	if !exists {
		log.DebugContext(ctx, "relay: unknown target")
		return metrics.OutcomeUnknownTarget
	}

	callerBlocked, err := r.policy.IsBlocked(ctx, from, f.To)
	if err != nil {
		log.WarnContext(ctx, "relay: block lookup failed", "error", err)
		return metrics.OutcomeError
	}
	if callerBlocked {
		return metrics.OutcomeCallerBlocked
	}

	calleeBlocked, err := r.policy.IsBlocked(ctx, f.To, from)
	if err != nil {
		log.WarnContext(ctx, "relay: block lookup failed", "error", err)
		return metrics.OutcomeError
	}
	if calleeBlocked {
		frame, err := models.NewEnvelope(models.FrameCallError, models.CallErrorPayload{Reason: models.CallErrorUnavailable})
		if err == nil {
			r.registry.Send(from, frame)
		}
		return metrics.OutcomeCalleeBlocked
	}

	frame, err := models.NewEnvelope(f.Type, models.SignalPayload{From: from, Data: f.Data})
	if err != nil {
		log.ErrorContext(ctx, "relay: encode failed", "error", err)
		return metrics.OutcomeError
	}
	if !r.registry.Send(f.To, frame) {
		r.metrics.FrameDropped(metrics.DropOffline)
	}
	return metrics.OutcomeRelayed
}
