package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "espacio",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacio",
			Name:      "reservations_created_total",
			Help:      "Reservations admitted as pending.",
		},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacio",
			Name:      "reservation_conflicts_total",
			Help:      "Creation attempts rejected for overlap.",
		},
	)

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "espacio",
			Name:      "reservation_transitions_total",
			Help:      "Lifecycle transitions by target status.",
		},
		[]string{"to"},
	)

	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacio",
			Name:      "sweep_runs_total",
			Help:      "Completion/no-show sweep passes.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationsCreated, reservationConflicts, reservationTransitions, sweepRuns)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncCreated counts an admitted reservation.
func IncCreated() {
	reservationsCreated.Inc()
}

// IncConflict counts a rejected overlapping creation.
func IncConflict() {
	reservationConflicts.Inc()
}

// IncTransition counts a lifecycle transition into a status.
func IncTransition(to string) {
	reservationTransitions.WithLabelValues(to).Inc()
}

// IncSweep counts one sweep pass.
func IncSweep() {
	sweepRuns.Inc()
}
