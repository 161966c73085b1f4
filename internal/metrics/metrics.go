package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger operation counters, labelled by sub-ledger ("wallet" or "grant").
var (
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reservations_total",
		Help: "Reservations taken against a sub-ledger.",
	}, []string{"ledger"})

	ReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_releases_total",
		Help: "Reservations released back to a sub-ledger.",
	}, []string{"ledger"})

	FinalizesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_finalizes_total",
		Help: "Reservations consumed permanently.",
	}, []string{"ledger"})

	ConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_concurrency_conflicts_total",
		Help: "Operations aborted by a serialization or lock conflict.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_transitions_total",
		Help: "Rental request transitions by target status.",
	}, []string{"target"})
)
