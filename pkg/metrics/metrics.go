// Package metrics exposes the process-wide Prometheus registry for the
// job relay: HTTP surface metrics plus the core's own job-throughput,
// queue-depth, PTY I/O, and reap counters (SPEC_FULL.md's ambient stack).
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaywatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaywatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relaywatch_build_info",
			Help: "Build information",
		},
		[]string{"version"},
	)

	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaywatch_jobs_processed_total",
			Help: "Total jobs processed, by backend and outcome",
		},
		[]string{"backend", "outcome"}, // backend: cli|external; outcome: completed|error|waiting
	)

	activeProjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaywatch_active_projects",
			Help: "Number of projects currently running a job",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaywatch_queue_depth",
			Help: "Number of pending or answers_provided jobs awaiting dispatch",
		},
	)

	ptyReadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaywatch_pty_read_bytes_total",
			Help: "Total bytes read from worker PTYs",
		},
	)

	ptyReadOpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaywatch_pty_read_operations_total",
			Help: "Total worker PTY read operations",
		},
	)

	reapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaywatch_reap_total",
			Help: "Total records reaped by the supervisor's maintenance passes",
		},
		[]string{"kind"}, // stale_fixed, stale_orphaned, old_job, old_questions, old_lock
	)

	lockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaywatch_lock_contention_total",
			Help: "Total times a job claim attempt found the job already locked",
		},
	)

	rateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaywatch_rate_limit_hits_total",
			Help: "Total rate limit hits by IP",
		},
		[]string{"ip"},
	)

	healthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaywatch_health_check_duration_seconds",
			Help:    "Health check duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"check"},
	)

	healthCheckStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relaywatch_health_check_status",
			Help: "Health check status (1=healthy, 0.5=degraded, 0=unhealthy)",
		},
		[]string{"check"},
	)
)

// Init registers every metric with the default Prometheus registry and
// stamps the build-info gauge.
func Init(version string) {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		buildInfo,
		jobsProcessedTotal,
		activeProjects,
		queueDepth,
		ptyReadBytesTotal,
		ptyReadOpsTotal,
		reapTotal,
		lockContentionTotal,
		rateLimitHitsTotal,
		healthCheckDuration,
		healthCheckStatus,
	)
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one HTTP request's method, normalized path,
// status, and duration.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, normalizePath(path), strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, normalizePath(path)).Observe(duration.Seconds())
}

// RecordJobProcessed records one job's terminal or pausing outcome.
func RecordJobProcessed(backend, outcome string) {
	jobsProcessedTotal.WithLabelValues(backend, outcome).Inc()
}

// SetActiveProjects sets the current count of busy projects.
func SetActiveProjects(count int) {
	activeProjects.Set(float64(count))
}

// SetQueueDepth sets the current count of dispatch-eligible jobs.
func SetQueueDepth(count int) {
	queueDepth.Set(float64(count))
}

// RecordPTYRead records one PTY read operation's byte count.
func RecordPTYRead(bytes int) {
	ptyReadBytesTotal.Add(float64(bytes))
	ptyReadOpsTotal.Inc()
}

// RecordReap records one record reaped, grouped by kind.
func RecordReap(kind string) {
	reapTotal.WithLabelValues(kind).Inc()
}

// RecordLockContention records a failed non-blocking claim attempt.
func RecordLockContention() {
	lockContentionTotal.Inc()
}

// RecordRateLimitHit records a rejected request by client IP.
func RecordRateLimitHit(ip string) {
	rateLimitHitsTotal.WithLabelValues(ip).Inc()
}

// RecordHealthCheck records a health probe's duration and status.
func RecordHealthCheck(check string, duration time.Duration, status string) {
	healthCheckDuration.WithLabelValues(check).Observe(duration.Seconds())
	var value float64
	switch status {
	case "healthy":
		value = 1.0
	case "degraded":
		value = 0.5
	default:
		value = 0.0
	}
	healthCheckStatus.WithLabelValues(check).Set(value)
}

// normalizePath collapses dynamic job/project ids so path cardinality
// stays bounded.
func normalizePath(path string) string {
	const jobsPrefix = "/api/jobs/"
	if len(path) > len(jobsPrefix) && path[:len(jobsPrefix)] == jobsPrefix {
		rest := path[len(jobsPrefix):]
		if idx := indexByte(rest, '/'); idx > 0 {
			return jobsPrefix + ":id/" + rest[idx+1:]
		}
		return jobsPrefix + ":id"
	}
	const historyPrefix = "/api/history/"
	if len(path) > len(historyPrefix) && path[:len(historyPrefix)] == historyPrefix {
		return historyPrefix + ":project"
	}
	return path
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// MetricsMiddleware records HTTP request count and latency for every
// request except scrapes of /metrics itself.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.URL.Path != "/metrics" {
			RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("ResponseWriter does not implement http.Hijacker")
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
