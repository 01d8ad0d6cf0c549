package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RAN-domain metrics, exposed alongside the common HTTP/service-health
// metrics above by every nf/enb, nf/mmwave, and nf/x2registry process.
var (
	RanHandoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ran_handovers_total",
			Help: "Total number of handovers fired, by leg and outcome",
		},
		[]string{"leg", "outcome"},
	)

	RanOutageFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ran_outage_fallbacks_total",
			Help: "Total number of LTE outage fallbacks triggered by the control loop",
		},
	)

	RanSinrDB = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ran_sinr_db",
			Help: "Last reported SINR in dB, by cell group",
		},
		[]string{"group"},
	)

	RanDrbTableUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ran_drb_table_used",
			Help: "Number of DRB-table slots currently allocated, by cell",
		},
		[]string{"cell_id"},
	)

	RanSchedulerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ran_scheduler_queue_depth",
			Help: "Number of events pending in a cell's discrete-event scheduler",
		},
		[]string{"cell_id"},
	)

	RanMcSetupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ran_mc_setup_duration_seconds",
			Help:    "Time from split-bearer RLC-setup request to MC reconfiguration completion",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordHandover records a fired handover's outcome ("fired",
// "cancelled", "failed") for the given leg ("primary", "secondary",
// "inter_rat").
func RecordHandover(leg, outcome string) {
	RanHandoversTotal.WithLabelValues(leg, outcome).Inc()
}

// RecordOutageFallback increments the outage-fallback counter.
func RecordOutageFallback() {
	RanOutageFallbacksTotal.Inc()
}

// SetSinrDB records the last observed SINR in dB for a cell group.
func SetSinrDB(group string, db float64) {
	RanSinrDB.WithLabelValues(group).Set(db)
}

// SetDrbTableUsed records current DRB table occupancy for a cell.
func SetDrbTableUsed(cellID string, used int) {
	RanDrbTableUsed.WithLabelValues(cellID).Set(float64(used))
}

// SetSchedulerQueueDepth records a cell's scheduler queue depth.
func SetSchedulerQueueDepth(cellID string, depth int) {
	RanSchedulerQueueDepth.WithLabelValues(cellID).Set(float64(depth))
}
