package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// x2registry-specific metrics. Adapted from the teacher's NRF metrics
// (common/metrics/nrf.go): nf_type labels become cell roles, and the
// subscription gauges are dropped along with x2registry's subscription
// mechanism (see DESIGN.md).
var (
	RegisteredCellsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "x2registry_registered_cells_total",
			Help: "Number of cells currently registered, by role",
		},
		[]string{"role"},
	)

	CellRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x2registry_cell_registrations_total",
			Help: "Total number of cell registration attempts, by role and status",
		},
		[]string{"role", "status"},
	)

	CellDeregistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x2registry_cell_deregistrations_total",
			Help: "Total number of cell deregistrations, by role",
		},
		[]string{"role"},
	)

	DiscoveryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x2registry_discovery_requests_total",
			Help: "Total number of discovery requests, by requested role and status",
		},
		[]string{"role", "status"},
	)

	CellHeartbeatsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x2registry_cell_heartbeats_total",
			Help: "Total number of heartbeats received, by role",
		},
		[]string{"role"},
	)
)

// SetRegisteredCells records the current cell count for role.
func SetRegisteredCells(role string, count int) {
	RegisteredCellsTotal.WithLabelValues(role).Set(float64(count))
}

// RecordCellRegistration records a registration attempt's outcome.
func RecordCellRegistration(role, status string) {
	CellRegistrations.WithLabelValues(role, status).Inc()
}

// RecordCellDeregistration records a deregistration for role.
func RecordCellDeregistration(role string) {
	CellDeregistrations.WithLabelValues(role).Inc()
}

// RecordDiscoveryRequest records a discovery request's outcome.
func RecordDiscoveryRequest(role, status string) {
	DiscoveryRequests.WithLabelValues(role, status).Inc()
}

// RecordCellHeartbeat records a received heartbeat for role.
func RecordCellHeartbeat(role string) {
	CellHeartbeatsReceived.WithLabelValues(role).Inc()
}
