package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridsync_sessions_active",
		Help: "Number of sessions currently connected",
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridsync_frames_total",
		Help: "Inbound frames handled, by message type",
	}, []string{"type"})

	cellEditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridsync_cell_edits_total",
		Help: "Cell edits received over the channel, by result",
	}, []string{"result"})

	broadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridsync_broadcast_dropped_total",
		Help: "Outbound frames dropped because a session's send buffer was full",
	})
)
