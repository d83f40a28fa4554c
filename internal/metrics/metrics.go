// -----------------------------------------------------------------------------
// Prometheus Metrics
// -----------------------------------------------------------------------------
//
// This package defines the self-telemetry of the monitoring agent. The agent
// is a short-lived process, so metrics are not scraped over HTTP: when a
// textfile path is configured, the registry is written once at exit in the
// Prometheus text format for the node_exporter textfile collector.
//
// Metrics Philosophy:
//   - RacInvocations: How often the administration client runs and how it fails
//   - CacheLookups: Whether the file cache is absorbing repeated checks
//   - TechlogFilesScanned: How much technology log each check has to read
//   - CollectorDegraded: Which metrics were reported as zero because a
//     dependency was down
//   - CollectDuration: Time spent resolving the requested metric
//
// Metric Types:
//   Counter - Monotonically increasing value (invocations, lookups)
//   Gauge   - Value that can go up or down (duration of the last run)
//
// -----------------------------------------------------------------------------

package metrics

import "github.com/prometheus/client_golang/prometheus"

// -----------------------------------------------------------------------------
// Metric Definitions
// -----------------------------------------------------------------------------

// Registry holds every metric of this package. A dedicated registry keeps
// Go runtime collectors out of the textfile.
var Registry = prometheus.NewRegistry()

var (
	// RacInvocations counts administration client invocations.
	// Labels: command (cluster_list, process_list, session_list),
	// outcome (ok, not_found, timeout, exit_status)
	RacInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onec_monitor_rac_invocations_total",
			Help: "Administration client invocations by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	// CacheLookups counts file cache lookups.
	// Labels: result (hit, miss)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onec_monitor_cache_lookups_total",
			Help: "File cache lookups by result",
		},
		[]string{"result"},
	)

	// TechlogFilesScanned counts technology log files read.
	// Labels: kind (events, errors)
	TechlogFilesScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onec_monitor_techlog_files_scanned_total",
			Help: "Technology log files read by scan kind",
		},
		[]string{"kind"},
	)

	// CollectorDegraded counts metrics reported as their zero value.
	// Labels: metric, reason (not_found, timeout, exit_status, no_clusters, ...)
	//
	// Example Alert:
	//   - increase(onec_monitor_collector_degraded_total{reason="timeout"}[15m]) > 3
	CollectorDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onec_monitor_collector_degraded_total",
			Help: "Metric resolutions degraded to the zero value by reason",
		},
		[]string{"metric", "reason"},
	)

	// CollectDuration records how long the last resolution of a metric took.
	CollectDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "onec_monitor_collect_duration_seconds",
			Help: "Duration of the last metric resolution in seconds",
		},
		[]string{"metric"},
	)
)

// -----------------------------------------------------------------------------
// Metric Registration
// -----------------------------------------------------------------------------

func init() {
	Registry.MustRegister(RacInvocations)
	Registry.MustRegister(CacheLookups)
	Registry.MustRegister(TechlogFilesScanned)
	Registry.MustRegister(CollectorDegraded)
	Registry.MustRegister(CollectDuration)
}

// -----------------------------------------------------------------------------
// Export
// -----------------------------------------------------------------------------

// WriteTextfile writes the registry to path in the Prometheus text format.
// The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
