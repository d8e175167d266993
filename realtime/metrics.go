package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections",
		Help: "Number of open chat websocket connections",
	})

	chatRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_rooms",
		Help: "Number of chat rooms with at least one member on this instance",
	})

	chatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_persisted_total",
		Help: "Total number of chat messages stored and published",
	})

	chatProtocolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_protocol_errors_total",
			Help: "Total number of rejected inbound chat frames",
		},
		[]string{"reason"},
	)

	droppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_dropped_deliveries_total",
		Help: "Total number of clients evicted because their outbound queue was full or closed",
	})
)
