package metrics_test

import (
	"testing"

	"astrona/backend/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Relay(metrics.OutcomeRelayed)
	m.Relay(metrics.OutcomeCalleeBlocked)
	m.FrameDropped(metrics.DropRateLimited)

	families, err := reg.Gather()
	assert.NoError(t, err)

	byName := make(map[string]int)
	for _, f := range families {
		byName[f.GetName()] = len(f.GetMetric())
		if f.GetName() == "chat_connections_active" {
			assert.Equal(t, 1.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.Equal(t, 2, byName["chat_relay_total"], "one series per outcome")
	assert.Equal(t, 1, byName["chat_frames_dropped_total"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.FrameInbound("deliver")
		m.FrameDropped(metrics.DropMalformed)
		m.Relay(metrics.OutcomeRelayed)
		m.Delivery(metrics.OutcomeDelivered)
	})
}
