package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roverhub"

var (
	// RentalsStarted counts committed rental starts.
	RentalsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rentals_started_total",
			Help:      "Total number of rentals started.",
		},
	)

	// RentalsEnded counts closed rentals by reason (stopped, cancelled, expired).
	RentalsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rentals_ended_total",
			Help:      "Total number of rentals closed, by reason.",
		},
		[]string{"reason"},
	)

	// Connections is the number of live links per role (vehicle, controller, observer).
	Connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of live connections, by role.",
		},
		[]string{"role"},
	)

	// CommandsRelayed counts device commands by delivery result and command kind.
	CommandsRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_relayed_total",
			Help:      "Total number of commands relayed to vehicles, by result and kind.",
		},
		[]string{"result", "kind"},
	)

	// TelemetryFrames counts accepted telemetry frames.
	TelemetryFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_frames_total",
			Help:      "Total number of telemetry frames accepted from vehicles.",
		},
	)

	MonitorPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_passes_total",
			Help:      "Total number of reconciliation passes, by result (ok, error, skipped).",
		},
		[]string{"result"},
	)

	MonitorPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monitor_pass_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// MonitorRepairs counts rows fixed by the monitor, by kind (expired, orphan).
	MonitorRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_repairs_total",
			Help:      "Total number of rentals and cars repaired by the monitor, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		RentalsStarted,
		RentalsEnded,
		Connections,
		CommandsRelayed,
		TelemetryFrames,
		MonitorPasses,
		MonitorPassDuration,
		MonitorRepairs,
	)
}
