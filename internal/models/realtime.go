package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType is the discriminator of the {type, payload} envelope.
type FrameType string

const (
	FrameDeliver        FrameType = "deliver"
	FrameDelivered      FrameType = "delivered"
	FrameSeen           FrameType = "seen"
	FrameMessage        FrameType = "message"
	FrameMessageDeleted FrameType = "message-deleted"
	FramePresence       FrameType = "presence"
	FrameCallError      FrameType = "call-error"

	FrameCallOffer  FrameType = "call-offer"
	FrameCallAnswer FrameType = "call-answer"
	FrameCallICE    FrameType = "call-ice"
	FrameCallEnd    FrameType = "call-end"
	FrameCallHold   FrameType = "call-hold"
	FrameCallCamera FrameType = "call-camera"
	FrameCallMute   FrameType = "call-mute"
)

// CallErrorUnavailable is the only reason the relay ever reports to a caller.
const CallErrorUnavailable = "Unavailable"

// IsSignal reports whether t is a call-control frame handled by the relay.
func (t FrameType) IsSignal() bool {
	switch t {
	case FrameCallOffer, FrameCallAnswer, FrameCallICE, FrameCallEnd,
		FrameCallHold, FrameCallCamera, FrameCallMute:
		return true
	}
	return false
}

// Envelope is the wire frame exchanged over a connection.
type Envelope struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload once so the same frame can be pushed to many
// connections.
func NewEnvelope(t FrameType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

type ReceiptPayload struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
}

type SeenPayload struct {
	ThreadID   string   `json:"threadId"`
	MessageIDs []string `json:"messageIds"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// SignalRequest is what a caller sends; SignalPayload is what the callee receives.
type SignalRequest struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data,omitempty"`
}

type SignalPayload struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data,omitempty"`
}

type CallErrorPayload struct {
	Reason string `json:"reason"`
}

// Inbound is the closed set of frames a client may send. Anything the server
// does not understand decodes to UnknownFrame.
type Inbound interface {
	FrameType() FrameType
	isInbound()
}

// DeliverFrame acknowledges receipt of one message.
type DeliverFrame struct {
	ThreadID  string
	MessageID string
}

// SignalFrame carries opaque call-control data addressed to another user.
type SignalFrame struct {
	Type FrameType
	To   string
	Data json.RawMessage
}

type UnknownFrame struct {
	Type FrameType
}

func (DeliverFrame) FrameType() FrameType   { return FrameDeliver }
func (f SignalFrame) FrameType() FrameType  { return f.Type }
func (f UnknownFrame) FrameType() FrameType { return f.Type }

func (DeliverFrame) isInbound() {}
func (SignalFrame) isInbound()  {}
func (UnknownFrame) isInbound() {}

var ErrMalformedFrame = errors.New("malformed frame")

// DecodeInbound parses one client frame. Known types with an unusable payload
// return ErrMalformedFrame; unknown types are not an error.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch {
	case env.Type == FrameDeliver:
		var p ReceiptPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.ThreadID == "" || p.MessageID == "" {
			return nil, fmt.Errorf("%w: deliver needs threadId and messageId", ErrMalformedFrame)
		}
		return DeliverFrame{ThreadID: p.ThreadID, MessageID: p.MessageID}, nil

	case env.Type.IsSignal():
		var p SignalRequest
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.To == "" {
			return nil, fmt.Errorf("%w: %s needs a target", ErrMalformedFrame, env.Type)
		}
		return SignalFrame{Type: env.Type, To: p.To, Data: p.Data}, nil

	default:
		return UnknownFrame{Type: env.Type}, nil
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedFrame)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}
