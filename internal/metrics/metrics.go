package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawaid_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lawaid_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Conversation metrics
	ConversationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawaid_conversations_created_total",
			Help: "Conversations created, by type",
		},
		[]string{"type"},
	)

	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawaid_messages_created_total",
			Help: "Messages persisted, by conversation type",
		},
		[]string{"type"},
	)

	AuthorizationDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawaid_authorization_denied_total",
			Help: "Conversation access denied, by operation",
		},
		[]string{"op"},
	)

	// Realtime metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lawaid_ws_connections",
			Help: "Open websocket connections",
		},
	)

	WSEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lawaid_ws_events_dropped_total",
			Help: "Events dropped because a client send queue was full",
		},
	)

	// Reminder metrics
	RemindersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawaid_reminders_total",
			Help: "Reminder notifications by outcome",
		},
		[]string{"outcome"}, // created, skipped, failed
	)

	ReminderPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lawaid_reminder_pass_duration_seconds",
			Help:    "Duration of one reminder scan",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15},
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lawaid_emails_total",
			Help: "Outbound email attempts by result",
		},
		[]string{"result"}, // sent, failed, skipped
	)
)
