package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "dispatcher",
		Name:      "events_processed_total",
		Help:      "Feed events handled successfully.",
	})

	eventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "dispatcher",
		Name:      "events_failed_total",
		Help:      "Feed events that failed handling.",
	})

	eventsDLQ = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "dispatcher",
		Name:      "events_dlq_total",
		Help:      "Feed events written to the DLQ.",
	})

	duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "dispatcher",
		Name:      "duplicates_skipped_total",
		Help:      "Notifications suppressed by the idempotency key.",
	})
)
