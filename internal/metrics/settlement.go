package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madara",
		Subsystem: "settlement",
		Name:      "requests_total",
		Help:      "Count of settlement layer reads.",
	}, []string{"operation", "network", "status"})
	settlementRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madara",
		Subsystem: "settlement",
		Name:      "request_duration_seconds",
		Help:      "Duration of settlement layer reads.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
)

// Settlement tracks metrics for settlement layer reads.
type Settlement struct {
	network string
}

// NewSettlement creates a metrics collector for settlement reads.
func NewSettlement(network string) *Settlement {
	if network == "" {
		network = "unknown"
	}
	return &Settlement{network: network}
}

// Observe records a single settlement read outcome and duration.
func (m Settlement) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	settlementRequestsTotal.WithLabelValues(operation, m.network, status).Inc()
	settlementRequestDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}
