package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal          *prometheus.CounterVec
	uploadRows            *prometheus.HistogramVec
	classifiedRowsTotal   *prometheus.CounterVec
	mappingEditsTotal     *prometheus.CounterVec
	aggregateBuildsTotal  *prometheus.CounterVec
	aggregateDuration     *prometheus.HistogramVec
	comparisonsTotal      *prometheus.CounterVec
	verificationRunsTotal *prometheus.CounterVec
	verificationDeviation *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bk",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "dataset",
			Name:      "uploads_total",
			Help:      "Total dataset uploads by outcome.",
		},
		[]string{"service", "status"},
	)
	uploadRows := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bk",
			Subsystem: "dataset",
			Name:      "upload_rows",
			Help:      "Distribution of row counts per accepted upload.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"service"},
	)
	classifiedRowsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "classifier",
			Name:      "rows_total",
			Help:      "Total classified rows by detection outcome.",
		},
		[]string{"service", "outcome"},
	)
	mappingEditsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "mapping",
			Name:      "edits_total",
			Help:      "Total applied mapping edits by kind.",
		},
		[]string{"service", "kind"},
	)
	aggregateBuildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "aggregate",
			Name:      "builds_total",
			Help:      "Total aggregate tree builds.",
		},
		[]string{"service"},
	)
	aggregateDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bk",
			Subsystem: "aggregate",
			Name:      "build_duration_seconds",
			Help:      "Aggregate tree build duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	comparisonsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "compare",
			Name:      "requests_total",
			Help:      "Total scenario comparisons by scenario pair.",
		},
		[]string{"service", "base", "target"},
	)
	verificationRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bk",
			Subsystem: "verification",
			Name:      "runs_total",
			Help:      "Total verification runs by verdict.",
		},
		[]string{"service", "verdict"},
	)
	verificationDeviation := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bk",
			Subsystem: "verification",
			Name:      "overall_deviation_pct",
			Help:      "Overall quantity deviation per computed run, in percent.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		uploadRows,
		classifiedRowsTotal,
		mappingEditsTotal,
		aggregateBuildsTotal,
		aggregateDuration,
		comparisonsTotal,
		verificationRunsTotal,
		verificationDeviation,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		uploadsTotal:          uploadsTotal,
		uploadRows:            uploadRows,
		classifiedRowsTotal:   classifiedRowsTotal,
		mappingEditsTotal:     mappingEditsTotal,
		aggregateBuildsTotal:  aggregateBuildsTotal,
		aggregateDuration:     aggregateDuration,
		comparisonsTotal:      comparisonsTotal,
		verificationRunsTotal: verificationRunsTotal,
		verificationDeviation: verificationDeviation,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource ids so the path label stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/datasets/"):
		rest := strings.TrimPrefix(path, "/v1/datasets/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/v1/datasets/{dataset_id}/" + rest[idx+1:]
		}
		return "/v1/datasets/{dataset_id}"
	case strings.HasPrefix(path, "/v1/verifications/"):
		rest := strings.TrimPrefix(path, "/v1/verifications/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/v1/verifications/{run_id}/" + rest[idx+1:]
		}
		return "/v1/verifications/{run_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(service, status string, rows int) {
	if status == "" {
		status = "unknown"
	}
	m.uploadsTotal.WithLabelValues(service, status).Inc()
	if status == "accepted" && rows > 0 {
		m.uploadRows.WithLabelValues(service).Observe(float64(rows))
	}
}

// RecordClassifiedRows counts classified rows by detection outcome
// (complete, incomplete).
func (m *HTTPServerMetrics) RecordClassifiedRows(service, outcome string, count int) {
	if count <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.classifiedRowsTotal.WithLabelValues(service, outcome).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordMappingEdits(service, kind string, count int) {
	if count <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.mappingEditsTotal.WithLabelValues(service, kind).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordAggregateBuild(service string, duration time.Duration) {
	m.aggregateBuildsTotal.WithLabelValues(service).Inc()
	m.aggregateDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordComparison(service, base, target string) {
	m.comparisonsTotal.WithLabelValues(service, base, target).Inc()
}

func (m *HTTPServerMetrics) RecordVerificationRun(service, verdict string, deviationPct float64) {
	if verdict == "" {
		verdict = "unknown"
	}
	m.verificationRunsTotal.WithLabelValues(service, verdict).Inc()
	if verdict == "pass" || verdict == "fail" {
		m.verificationDeviation.WithLabelValues(service).Observe(deviationPct)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
