package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	ConnectCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roost_connect_cycles_total",
			Help: "Total number of connect reconciliation cycles run",
		},
	)

	ConnectCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roost_connect_cycle_duration_seconds",
			Help:    "Duration of connect reconciliation cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RegistrationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roost_registration_errors_total",
			Help: "Total number of registration cycles abandoned by trigger",
		},
		[]string{"trigger"},
	)

	// Port metrics
	PortsAllocatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roost_ports_allocated_total",
			Help: "Total number of ports allocated by service pid",
		},
		[]string{"pid"},
	)

	// Domain synchronization metrics
	DomainSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roost_domain_sync_total",
			Help: "Total number of domain synchronization operations by kind",
		},
		[]string{"op"},
	)

	// Configuration metrics
	ConfigEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roost_config_events_total",
			Help: "Total number of configuration-change events handled",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ConnectCyclesTotal)
	prometheus.MustRegister(ConnectCycleDuration)
	prometheus.MustRegister(RegistrationErrorsTotal)
	prometheus.MustRegister(PortsAllocatedTotal)
	prometheus.MustRegister(DomainSyncTotal)
	prometheus.MustRegister(ConfigEventsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
