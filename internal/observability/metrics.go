package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	autosaveDuration    prometheus.Histogram

	commandTotal    *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	localFallbackTotal prometheus.Counter

	providerRequestTotal    *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current session count held by the keeper.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Snapshot directory load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Single snapshot write duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			autosaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "autosave_duration_seconds",
					Help:    "Full autosave cycle duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_command_total",
					Help: "Total wire commands served by command and status.",
				},
				[]string{"command", "status"},
			),
			commandDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "session_command_duration_seconds",
					Help:    "Wire command handling duration in seconds by command.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"command"},
			),
			localFallbackTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_local_fallback_total",
					Help: "Total sessions created locally because no keeper answered.",
				},
			),
			providerRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "provider_request_total",
					Help: "Total LLM provider requests by provider and status.",
				},
				[]string{"provider", "status"},
			),
			providerRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "provider_request_duration_seconds",
					Help:    "LLM provider request duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.autosaveDuration,
			m.commandTotal,
			m.commandDuration,
			m.localFallbackTotal,
			m.providerRequestTotal,
			m.providerRequestDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is
// called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	m := getMetrics()
	m.sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	m := getMetrics()
	m.sessionSaveDuration.Observe(duration.Seconds())
}

func RecordAutosave(duration time.Duration) {
	m := getMetrics()
	m.autosaveDuration.Observe(duration.Seconds())
}

func RecordCommand(command string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.commandTotal.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordLocalFallback() {
	m := getMetrics()
	m.localFallbackTotal.Inc()
}

func RecordProviderRequest(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.providerRequestTotal.WithLabelValues(provider, status).Inc()
	m.providerRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
