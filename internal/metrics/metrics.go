// Package metrics provides Prometheus metrics for scan cycles and API calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RunnerRadar/internal/dexscreener"
	"RunnerRadar/internal/model"
)

const namespace = "runnerradar"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Scan metrics
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	RowsReturned    prometheus.Gauge
	Blacklisted     prometheus.Gauge
	LastSuccessUnix prometheus.Gauge
	ScansSkipped    prometheus.Counter

	// Dexscreener metrics
	APICalls       *prometheus.CounterVec
	APICallLatency *prometheus.HistogramVec

	// Notification metrics
	NotificationsSent *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Total number of scan cycles by result status",
		}, []string{"status"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of scan cycles",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		RowsReturned: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "rows",
			Help:      "Number of ranked rows in the last cycle",
		}),
		Blacklisted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "blacklisted_rows",
			Help:      "Number of candidates hidden by the blacklist in the last cycle",
		}),
		LastSuccessUnix: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that received data",
		}),
		ScansSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "skipped_total",
			Help:      "Scan triggers rejected because a cycle was already running",
		}),

		APICalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dexscreener",
			Name:      "calls_total",
			Help:      "Dexscreener calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		APICallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dexscreener",
			Name:      "call_duration_seconds",
			Help:      "Dexscreener call latency by endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "messages_total",
			Help:      "Telegram messages by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall records one Dexscreener request. The outcome is "ok" or the
// failure kind.
func (m *Metrics) ObserveCall(dbg dexscreener.CallDebug, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dexscreener.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.APICalls.WithLabelValues(dbg.Endpoint, outcome).Inc()
	if dbg.Elapsed > 0 {
		m.APICallLatency.WithLabelValues(dbg.Endpoint).Observe(dbg.Elapsed.Seconds())
	}
}

// ObserveCycle records a finished scan cycle.
func (m *Metrics) ObserveCycle(res *model.ScanResult) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(string(res.Status)).Inc()
	m.CycleDuration.Observe(res.Duration.Seconds())
	if res.Status == model.StatusUnavailable {
		return
	}
	m.RowsReturned.Set(float64(len(res.Rows)))
	m.Blacklisted.Set(float64(res.Blacklisted))
	m.LastSuccessUnix.Set(float64(res.StartedAt.Unix()))
}

// RecordSkipped counts a rejected scan trigger.
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.ScansSkipped.Inc()
}

// RecordNotification counts a Telegram send attempt.
func (m *Metrics) RecordNotification(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotificationsSent.WithLabelValues("error").Inc()
		return
	}
	m.NotificationsSent.WithLabelValues("ok").Inc()
}
