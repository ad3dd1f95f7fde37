package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madara",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Count of feeder gateway requests.",
	}, []string{"operation", "network", "status"})
	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madara",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Duration of feeder gateway requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
)

// Gateway tracks metrics for feeder gateway requests.
type Gateway struct {
	network string
}

// NewGateway creates a metrics collector for gateway requests.
func NewGateway(network string) *Gateway {
	if network == "" {
		network = "unknown"
	}
	return &Gateway{network: network}
}

// Observe records a single gateway request outcome and duration.
func (m Gateway) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	gatewayRequestsTotal.WithLabelValues(operation, m.network, status).Inc()
	gatewayRequestDuration.WithLabelValues(operation, m.network, status).Observe(time.Since(started).Seconds())
}
