package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// Import Metrics
	ImportsTotal       *prometheus.CounterVec
	ImportRowsTotal    *prometheus.CounterVec
	ImportsPurgedTotal prometheus.Counter

	// Remote Source Metrics
	RemoteFetchDuration prometheus.Histogram

	// Report Metrics
	ReportDuration prometheus.Histogram
	ReportsTotal   *prometheus.CounterVec
	ExportsTotal   *prometheus.CounterVec

	// Cron Metrics
	CronRunsTotal *prometheus.CounterVec
}

// NewCollector creates a new metrics collector registered on reg.
// Passing prometheus.DefaultRegisterer exposes the metrics on promhttp.Handler().
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Total number of absence imports by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		ImportRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_total",
				Help:      "Total number of raw absence rows by normalization outcome",
			},
			[]string{"outcome"},
		),

		ImportsPurgedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_purged_total",
				Help:      "Total number of expired imports removed",
			},
		),

		RemoteFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_fetch_duration_seconds",
				Help:      "Duration of school API fetches in seconds",
				Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
		),

		ReportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_duration_seconds",
				Help:      "Duration of aggregation engine runs in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
			},
		),

		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Total number of generated reports by outcome",
			},
			[]string{"outcome"},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of rendered exports by format",
			},
			[]string{"format"},
		),

		CronRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cron_runs_total",
				Help:      "Total number of background job runs by job and outcome",
			},
			[]string{"job", "outcome"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordImport increments the import counter
func (c *Collector) RecordImport(source, outcome string) {
	c.ImportsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordRows adds n rows with the given normalization outcome
func (c *Collector) RecordRows(outcome string, n int) {
	if n <= 0 {
		return
	}
	c.ImportRowsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordReport increments the report counter
func (c *Collector) RecordReport(outcome string) {
	c.ReportsTotal.WithLabelValues(outcome).Inc()
}

// RecordExport increments the export counter
func (c *Collector) RecordExport(format string) {
	c.ExportsTotal.WithLabelValues(format).Inc()
}

// RecordPurged adds n purged imports
func (c *Collector) RecordPurged(n int) {
	c.ImportsPurgedTotal.Add(float64(n))
}

// RecordJobRun increments the background job counter
func (c *Collector) RecordJobRun(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	c.CronRunsTotal.WithLabelValues(job, outcome).Inc()
}
