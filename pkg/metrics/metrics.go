package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "link_install"

// Package outcomes.
const (
	StatusPackaged = "packaged"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Recorder captures run metrics.
type Recorder interface {
	SetDependencies(n int)
	ObservePackage(status string, durationSeconds float64)
	ObserveRun(state string, durationSeconds float64)
	IncRollbackFailures()
	WriteTextfile(path string) error
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) SetDependencies(int)            {}
func (Noop) ObservePackage(string, float64) {}
func (Noop) ObserveRun(string, float64)     {}
func (Noop) IncRollbackFailures()           {}
func (Noop) WriteTextfile(string) error     { return nil }

// Prom implements Recorder backed by a private Prometheus registry.
// A link install is a short-lived process, so metrics are exported as a node-exporter textfile
// instead of being scraped.
type Prom struct {
	registry        *prometheus.Registry
	dependencies    prometheus.Gauge
	packages        *prometheus.CounterVec
	packageDuration prometheus.Histogram
	runDuration     *prometheus.GaugeVec
	rollbackFailed  prometheus.Counter
}

// NewProm creates the metrics and registers them in a new registry.
func NewProm() *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		dependencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dependencies",
			Help:      "Local dependencies discovered in the last run",
		}),
		packages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_total",
			Help:      "Local dependencies processed by outcome",
		}, []string{"status"}),
		packageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "package_duration_seconds",
			Help:      "Time spent packaging one local dependency",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run by final state",
		}, []string{"state"}),
		rollbackFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_failures_total",
			Help:      "Rollbacks that could not revert every action",
		}),
	}
	p.registry.MustRegister(p.dependencies, p.packages, p.packageDuration, p.runDuration, p.rollbackFailed)
	return p
}

func (p *Prom) SetDependencies(n int) {
	p.dependencies.Set(float64(n))
}

func (p *Prom) ObservePackage(status string, durationSeconds float64) {
	p.packages.WithLabelValues(status).Inc()
	if status != StatusSkipped {
		p.packageDuration.Observe(durationSeconds)
	}
}

func (p *Prom) ObserveRun(state string, durationSeconds float64) {
	p.runDuration.WithLabelValues(state).Set(durationSeconds)
}

func (p *Prom) IncRollbackFailures() {
	p.rollbackFailed.Inc()
}

// Registry returns the registry holding the run metrics.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// WriteTextfile writes the metrics in the text exposition format, atomically.
func (p *Prom) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}
