// Package metrics provides Prometheus metrics for the Boa client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote procedure metrics
	rpcCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boa_rpc_calls_total",
			Help: "Total number of remote procedure calls",
		},
		[]string{"method", "status"},
	)

	rpcCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boa_rpc_call_duration_seconds",
			Help:    "Remote procedure call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Session metrics
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boa_login_attempts_total",
			Help: "Total login attempts",
		},
		[]string{"result"},
	)

	// Dataset cache metrics
	datasetCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boa_dataset_cache_lookups_total",
			Help: "Dataset catalog lookups by cache result",
		},
		[]string{"result"},
	)

	// Output transfer metrics
	outputFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boa_output_fetches_total",
			Help: "Total job output fetches",
		},
		[]string{"kind", "status"},
	)

	outputBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boa_output_bytes_total",
			Help: "Total decoded job output bytes received",
		},
	)

	// Archive metrics
	archiveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boa_archive_uploads_total",
			Help: "Total job output uploads to object storage",
		},
		[]string{"status"},
	)

	// History database metrics
	historyQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boa_history_query_duration_seconds",
			Help:    "Job history database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRPCCall records one remote procedure call.
func RecordRPCCall(method string, err error, duration time.Duration) {
	rpcCallsTotal.WithLabelValues(method, statusLabel(err)).Inc()
	rpcCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordLogin records a login attempt. result is "success", "connect" (the
// already-logged-in recovery path) or "failure".
func RecordLogin(result string) {
	loginAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordDatasetCacheLookup records a dataset catalog cache hit or miss.
func RecordDatasetCacheLookup(hit bool) {
	if hit {
		datasetCacheLookups.WithLabelValues("hit").Inc()
	} else {
		datasetCacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordOutputFetch records an output fetch. kind is "full", "range" or "cache".
func RecordOutputFetch(kind string, bytes int64, err error) {
	outputFetchesTotal.WithLabelValues(kind, statusLabel(err)).Inc()
	if bytes > 0 {
		outputBytesTotal.Add(float64(bytes))
	}
}

// RecordArchiveUpload records an upload of job output to object storage.
func RecordArchiveUpload(err error) {
	archiveUploadsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordHistoryQuery records a history database query duration.
func RecordHistoryQuery(query string, duration time.Duration) {
	historyQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder feeds client instrumentation into the collectors above. It
// satisfies client.Recorder.
type Recorder struct{}

func (Recorder) RPCCall(method string, err error, d time.Duration) { RecordRPCCall(method, err, d) }
func (Recorder) Login(result string) { RecordLogin(result) }
func (Recorder) DatasetCacheLookup(hit bool) { RecordDatasetCacheLookup(hit) }
func (Recorder) OutputFetch(kind string, n int64, err error) { RecordOutputFetch(kind, n, err) }
