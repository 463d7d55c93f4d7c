package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "ledger",
		Name:      "transitions_total",
		Help:      "Successful order status transitions by target status.",
	}, []string{"to_status"})

	acceptWinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "broker",
		Name:      "accept_wins_total",
		Help:      "Accept calls that won the assignment race.",
	})

	acceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "broker",
		Name:      "accept_conflicts_total",
		Help:      "Accept calls that lost the assignment race.",
	})

	reoffersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "order_core",
		Subsystem: "broker",
		Name:      "reoffers_total",
		Help:      "Ready orders re-announced by the sweep.",
	})
)
