// Package metrics provides Prometheus-based metrics collection for portsweep.
// It tracks probe outcomes, probe and scan durations, and in-flight probe
// counts for operational visibility.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all portsweep metrics
	namespace = "portsweep"

	// Subsystems
	subsystemProbe = "probe"
	subsystemScan  = "scan"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	activeProbes  prometheus.Gauge

	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	openPorts    prometheus.Counter

	registry *prometheus.Registry
}

// New creates a new metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemProbe,
				Name:      "total",
				Help:      "Total number of probes performed by outcome status",
			},
			[]string{"status"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemProbe,
				Name:      "duration_seconds",
				Help:      "Duration of individual probe attempts in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"status"},
		),
		activeProbes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemProbe,
				Name:      "active",
				Help:      "Number of probes currently in flight",
			},
		),
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "total",
				Help:      "Total number of scans by terminal state",
			},
			[]string{"state"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "duration_seconds",
				Help:      "Duration of complete scan runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
			},
		),
		openPorts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScan,
				Name:      "open_ports_total",
				Help:      "Total number of open ports observed across scans",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.probesTotal,
		m.probeDuration,
		m.activeProbes,
		m.scansTotal,
		m.scanDuration,
		m.openPorts,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// RecordProbe records a completed probe with its outcome and duration.
func (m *Metrics) RecordProbe(status string, duration time.Duration) {
	m.probesTotal.WithLabelValues(status).Inc()
	m.probeDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "open" {
		m.openPorts.Inc()
	}
}

// ProbeStarted increments the in-flight probe gauge.
func (m *Metrics) ProbeStarted() {
	m.activeProbes.Inc()
}

// ProbeFinished decrements the in-flight probe gauge.
func (m *Metrics) ProbeFinished() {
	m.activeProbes.Dec()
}

// RecordScan records a finished scan run with its terminal state.
func (m *Metrics) RecordScan(state string, duration time.Duration) {
	m.scansTotal.WithLabelValues(state).Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// Registry returns the underlying Prometheus registry, mainly for tests
// and for exposing a scrape endpoint if one is ever wired up.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

// GetGlobalMetrics returns the process-wide metrics instance,
// creating it on first use.
func GetGlobalMetrics() *Metrics {
	globalOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}
