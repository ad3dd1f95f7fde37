package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "apply_total",
		Help:      "Count of blocks applied to the local state.",
	}, []string{"network", "status"})
	syncApplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "apply_duration_seconds",
		Help:      "Duration of staging, verifying and committing one block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
	syncDiffLength = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "diff_length",
		Help:      "Number of state mutations per applied block.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1..262144
	}, []string{"network"})
	syncReorgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "reorgs_total",
		Help:      "Count of reorganizations applied to the local chain.",
	}, []string{"network"})
	syncReorgDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "reorg_depth",
		Help:      "Number of blocks discarded per reorganization.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1..2048
	}, []string{"network"})
	syncHeadHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "head_height",
		Help:      "Height of the local committed head.",
	}, []string{"network"})
	syncSourceHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "madara",
		Subsystem: "sync",
		Name:      "source_height",
		Help:      "Latest height reported by each block source.",
	}, []string{"network", "source"})
)

// Sync tracks metrics for the sync pipeline.
type Sync struct {
	network string
}

// NewSync creates a metrics collector for the sync pipeline.
func NewSync(network string) *Sync {
	if network == "" {
		network = "unknown"
	}
	return &Sync{network: network}
}

// ObserveApply records one block application attempt.
func (m Sync) ObserveApply(err error, mutations int, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	syncApplyTotal.WithLabelValues(m.network, status).Inc()
	syncApplyDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	if err == nil {
		syncDiffLength.WithLabelValues(m.network).Observe(float64(mutations))
	}
}

// ObserveReorg records one applied reorganization and its depth.
func (m Sync) ObserveReorg(discarded uint64) {
	syncReorgsTotal.WithLabelValues(m.network).Inc()
	syncReorgDepth.WithLabelValues(m.network).Observe(float64(discarded))
}

// SetHead publishes the local committed head height.
func (m Sync) SetHead(height uint64) {
	syncHeadHeight.WithLabelValues(m.network).Set(float64(height))
}

// SetSourceHeight publishes the latest height a source reported.
func (m Sync) SetSourceHeight(sourceName string, height uint64) {
	syncSourceHeight.WithLabelValues(m.network, sourceName).Set(float64(height))
}
