package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "devcircle"

// Event handling results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	OnlineConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "online_connections",
		Help:      "Number of authenticated WebSocket connections on this instance.",
	})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "online_users",
		Help:      "Number of distinct users with at least one connection on this instance.",
	})

	HandshakeRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "handshake_rejected_total",
		Help:      "Connections refused before upgrade, by error code.",
	}, []string{"code"})

	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "events_handled_total",
		Help:      "Client events handled, by event name and result.",
	}, []string{"event", "result"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "messaging",
		Name:      "messages_sent_total",
		Help:      "Messages persisted through the gateway.",
	})

	PushFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "failures_total",
		Help:      "Frames that could not be written to a room member, by event.",
	}, []string{"event"})

	PushDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "push",
		Name:      "dropped_total",
		Help:      "Push tasks dropped because the shard queue was full, by event.",
	}, []string{"event"})
)
