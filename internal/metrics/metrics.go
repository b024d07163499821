// Package metrics defines the Prometheus instrumentation for the fleet.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics
var (
	// SessionsByStatus tracks live sessions per lifecycle status
	SessionsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booster_sessions",
			Help: "Live sessions by lifecycle status",
		},
		[]string{"status"},
	)

	// StatusTransitionsTotal counts status transitions by target status
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booster_status_transitions_total",
			Help: "Session status transitions by new status",
		},
		[]string{"status"},
	)

	// ReconnectsScheduledTotal counts delayed reconnects scheduled after
	// transport errors
	ReconnectsScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booster_reconnects_scheduled_total",
			Help: "Delayed reconnect attempts scheduled after transport errors",
		},
	)

	// CredentialsInvalidatedTotal counts stored credentials deleted after
	// authentication rejections
	CredentialsInvalidatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booster_credentials_invalidated_total",
			Help: "Stored refresh credentials invalidated after auth rejection",
		},
	)
)

// Persistence metrics
var (
	// PersistenceFailuresTotal counts fire-and-forget durable writes that
	// failed, by operation
	PersistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booster_persistence_failures_total",
			Help: "Failed fire-and-forget durable writes by operation",
		},
		[]string{"operation"},
	)

	// MessagesStoredTotal counts chat messages appended to the log
	MessagesStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booster_messages_stored_total",
			Help: "Chat messages appended to the durable log by direction",
		},
		[]string{"direction"},
	)
)

// QR login metrics
var (
	// QRHandshakesTotal counts QR handshakes by terminal outcome
	QRHandshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booster_qr_handshakes_total",
			Help: "QR login handshakes by terminal outcome",
		},
		[]string{"outcome"},
	)
)
