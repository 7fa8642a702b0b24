package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LicensingMetrics records activation and heartbeat outcomes.
type LicensingMetrics struct {
	requestDuration *prometheus.HistogramVec
	activations     *prometheus.CounterVec
	heartbeats      *prometheus.CounterVec
	conflicts       prometheus.Counter
}

// NewLicensingMetrics registers the licensing metrics on the provided registerer.
func NewLicensingMetrics(reg prometheus.Registerer) *LicensingMetrics {
	if reg == nil {
		return &LicensingMetrics{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "licensing_request_duration_seconds",
		Help:    "Duration of licensing operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licensing_activations_total",
		Help: "Activation attempts by result code.",
	}, []string{"result"})
	heartbeats := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "licensing_heartbeats_total",
		Help: "Heartbeat attempts by result code.",
	}, []string{"result"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "licensing_conflicts_total",
		Help: "Concurrent-use violations that temp-locked a key.",
	})
	reg.MustRegister(requestDuration, activations, heartbeats, conflicts)
	return &LicensingMetrics{
		requestDuration: requestDuration,
		activations:     activations,
		heartbeats:      heartbeats,
		conflicts:       conflicts,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *LicensingMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncActivation increments the activation counter for the given result.
func (m *LicensingMetrics) IncActivation(result string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncHeartbeat increments the heartbeat counter for the given result.
func (m *LicensingMetrics) IncHeartbeat(result string) {
	if m == nil || m.heartbeats == nil {
		return
	}
	m.heartbeats.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncConflict increments the concurrent-use violation counter.
func (m *LicensingMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
