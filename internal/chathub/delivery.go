package chathub

import (
	"context"
	"fmt"
	"log/slog"

	"astrona/backend/internal/metrics"
	"astrona/backend/internal/models"
)

// MessageStore is the part of the message log the delivery state machine needs.
type MessageStore interface {
	FindMessage(ctx context.Context, threadID, messageID string) (*models.Message, error)
	AdvanceStatus(ctx context.Context, threadID, messageID string, status models.MessageStatus) (bool, error)
	MarkSeen(ctx context.Context, threadID, recipientID string, messageIDs []string) ([]models.Message, error)
}

// Delivery drives the sent -> delivered -> seen lifecycle and tells senders
// about every forward step.
type Delivery struct {
	store    MessageStore
	registry *Registry
	metrics  *metrics.Metrics
}

func NewDelivery(store MessageStore, registry *Registry, m *metrics.Metrics) *Delivery {
	return &Delivery{store: store, registry: registry, metrics: m}
}

// Deliver handles a client's receipt acknowledgement. Only the recipient of a
// message may acknowledge it; anything else, including acks for unknown
// messages, is ignored.
func (d *Delivery) Deliver(ctx context.Context, userID string, f models.DeliverFrame) {
	log := slog.With("user_id", userID, "thread_id", f.ThreadID, "message_id", f.MessageID)

	msg, err := d.store.FindMessage(ctx, f.ThreadID, f.MessageID)
	if err != nil {
		log.WarnContext(ctx, "deliver: message lookup failed", "error", err)
		d.metrics.Delivery(metrics.OutcomeError)
		return
	}
	if msg == nil {
		log.DebugContext(ctx, "deliver: no such message")
		d.metrics.Delivery(metrics.OutcomeMissing)
		return
	}
	if msg.RecipientID != userID {
		log.DebugContext(ctx, "deliver: ack from non-recipient ignored")
		d.metrics.Delivery(metrics.OutcomeForeign)
		return
	}

	switch msg.Status {
	case models.StatusSeen:
		d.metrics.Delivery(metrics.OutcomeNoChange)
		return
	case models.StatusDelivered:
		// Duplicate ack; repeat the notification for a sender that missed it.
	default:
		changed, err := d.store.AdvanceStatus(ctx, f.ThreadID, f.MessageID, models.StatusDelivered)
		if err != nil {
			log.WarnContext(ctx, "deliver: status update failed", "error", err)
			d.metrics.Delivery(metrics.OutcomeError)
			return
		}
		if !changed {
			// Lost a race with a concurrent seen receipt.
			d.metrics.Delivery(metrics.OutcomeNoChange)
			return
		}
	}

	d.metrics.Delivery(metrics.OutcomeDelivered)
	d.NotifyStatusChange(ctx, msg.SenderID, f.ThreadID, models.StatusDelivered, f.MessageID)
}

// MarkSeen advances the listed messages addressed to userID to seen and
// notifies each sender once with the IDs that changed. It is the read-receipt
// entry point for the REST layer.
func (d *Delivery) MarkSeen(ctx context.Context, userID, threadID string, messageIDs []string) ([]models.Message, error) {
	changed, err := d.store.MarkSeen(ctx, threadID, userID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}

	bySender := make(map[string][]string)
	var order []string
	for _, m := range changed {
		if _, ok := bySender[m.SenderID]; !ok {
			order = append(order, m.SenderID)
		}
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID)
	}
	for _, sender := range order {
		d.NotifyStatusChange(ctx, sender, threadID, models.StatusSeen, bySender[sender]...)
	}
	return changed, nil
}

// NotifyStatusChange pushes the receipt for a status transition to the
// message sender. delivered is reported per message, seen as one batch.
// Offline senders are skipped silently.
func (d *Delivery) NotifyStatusChange(ctx context.Context, senderID, threadID string, status models.MessageStatus, messageIDs ...string) {
	if len(messageIDs) == 0 {
		return
	}

	var frames []models.Envelope
	switch status {
	case models.StatusDelivered:
		for _, id := range messageIDs {
			frame, err := models.NewEnvelope(models.FrameDelivered, models.ReceiptPayload{ThreadID: threadID, MessageID: id})
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode receipt", "error", err)
				return
			}
			frames = append(frames, frame)
		}
	case models.StatusSeen:
		frame, err := models.NewEnvelope(models.FrameSeen, models.SeenPayload{ThreadID: threadID, MessageIDs: messageIDs})
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode receipt", "error", err)
			return
		}
		frames = append(frames, frame)
	default:
		return
	}

	for _, frame := range frames {
		if !d.registry.Send(senderID, frame) {
			d.metrics.FrameDropped(metrics.DropOffline)
		}
	}
}

// PushMessage hands a freshly stored message to its recipient, if online.
func (d *Delivery) PushMessage(ctx context.Context, msg models.Message) bool {
	frame, err := models.NewEnvelope(models.FrameMessage, msg.Visible())
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode message", "message_id", msg.ID, "error", err)
		return false
	}
	return d.registry.Send(msg.RecipientID, frame)
}

// PushTombstone tells both participants that a message was deleted.
func (d *Delivery) PushTombstone(ctx context.Context, msg models.Message) {
	frame, err := models.NewEnvelope(models.FrameMessageDeleted, models.ReceiptPayload{ThreadID: msg.ThreadID, MessageID: msg.ID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode tombstone", "message_id", msg.ID, "error", err)
		return
	}
	d.registry.Send(msg.RecipientID, frame)
	if msg.SenderID != msg.RecipientID {
		d.registry.Send(msg.SenderID, frame)
	}
}
