package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madara",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of store operations.",
	}, []string{"operation", "network", "status"})
	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madara",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of store operations.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation", "network", "status"})
)

// Store tracks metrics for the block store.
type Store struct {
	network string
}

// NewStore creates a metrics collector for store operations.
func NewStore(network string) *Store {
	if network == "" {
		network = "unknown"
	}
	return &Store{network: network}
}

// Observe records duration and status of a store operation.
func (m Store) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	storeOperationsTotal.WithLabelValues(operation, m.network, status).Inc()
	storeOperationDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}
