// Package metrics exposes prometheus collectors for the real-time core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	DropMalformed   = "malformed"
	DropRateLimited = "rate_limited"
	DropQueueFull   = "queue_full"
	DropOffline     = "offline"
)

// FrameUnknown labels inbound frames whose type the server does not handle.
const FrameUnknown = "unknown"

// Relay and delivery outcomes.
const (
	OutcomeRelayed       = "relayed"
	OutcomeUnknownTarget = "unknown_target"
	OutcomeCallerBlocked = "caller_blocked"
	OutcomeCalleeBlocked = "callee_blocked"
	OutcomeError         = "error"

	OutcomeDelivered = "delivered"
	OutcomeMissing   = "missing"
	OutcomeForeign   = "foreign"
	OutcomeNoChange  = "no_change"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	connections   prometheus.Gauge
	framesInbound *prometheus.CounterVec
	framesDropped *prometheus.CounterVec
	relay         *prometheus.CounterVec
	delivery      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Live connections held by the registry.",
		}),
		framesInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_frames_inbound_total",
			Help: "Frames received from clients, by type.",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_frames_dropped_total",
			Help: "Frames dropped without being processed or delivered, by reason.",
		}, []string{"reason"}),
		relay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_total",
			Help: "Signaling relay decisions, by outcome.",
		}, []string{"outcome"}),
		delivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_delivery_total",
			Help: "Delivery acknowledgements, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.connections, m.framesInbound, m.framesDropped, m.relay, m.delivery)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) FrameInbound(frameType string) {
	if m != nil {
		m.framesInbound.WithLabelValues(frameType).Inc()
	}
}

func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Relay(outcome string) {
	if m != nil {
		m.relay.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Delivery(outcome string) {
	if m != nil {
		m.delivery.WithLabelValues(outcome).Inc()
	}
}
