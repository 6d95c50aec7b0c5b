// Package metrics declares the Prometheus collectors of the dashboard API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// ExportsTotal counts export attempts by format and result
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_dashboard_exports_total",
		Help: "Total export generations by format and result",
	}, []string{"format", "result"})

	// ExportDuration observes how long generating one export takes
	ExportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permit_dashboard_export_duration_seconds",
		Help:    "Duration of export generation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"format"})

	// ExportRows observes the row count of generated exports
	ExportRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "permit_dashboard_export_rows",
		Help:    "Rows written per export",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	})

	// CleanupDeletedTotal counts files removed by the retention sweep
	CleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permit_dashboard_cleanup_deleted_files_total",
		Help: "Total expired export files deleted",
	})

	// CleanupErrorsTotal counts per-file failures of the retention sweep
	CleanupErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permit_dashboard_cleanup_errors_total",
		Help: "Total per-file errors during export cleanup",
	})

	// LayoutWritesTotal counts layout saves and resets by result
	LayoutWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_dashboard_layout_writes_total",
		Help: "Total layout saves and resets by operation and result",
	}, []string{"operation", "result"})

	// DownloadsTotal counts gateway requests by result
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_dashboard_downloads_total",
		Help: "Total export download requests by result",
	}, []string{"result"})

	// JobRunsTotal counts background job executions by job and status
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permit_dashboard_job_runs_total",
		Help: "Total background job runs by job name and status",
	}, []string{"job", "status"})

	// PermitsImportedTotal counts permits upserted by the ETL
	PermitsImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "permit_dashboard_permits_imported_total",
		Help: "Total permit rows imported",
	})

	// HTTPRequestDuration observes request latency by route and status
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "permit_dashboard_http_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Result maps an error onto the result label
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
