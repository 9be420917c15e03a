package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcut_mate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capcut_mate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Download metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcut_mate_downloads_total",
			Help: "Total number of media downloads",
		},
		[]string{"status"}, // success, failure
	)

	downloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capcut_mate_download_duration_seconds",
			Help:    "Media download duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 90},
		},
	)

	// Probe metrics
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcut_mate_probes_total",
			Help: "Total number of ffprobe invocations",
		},
		[]string{"status"}, // success, failure
	)

	probeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capcut_mate_probe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30},
		},
	)

	// Duration cache metrics
	durationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capcut_mate_duration_cache_hits_total",
			Help: "Audio duration lookups served from the cache",
		},
	)

	durationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capcut_mate_duration_cache_misses_total",
			Help: "Audio duration lookups that had to download and probe",
		},
	)

	// Timeline metrics
	timelinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcut_mate_timelines_total",
			Help: "Total number of timeline generations",
		},
		[]string{"strategy"}, // equal, random
	)

	// Cleanup metrics
	tempFilesCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capcut_mate_temp_files_cleaned_total",
			Help: "Stale temp files removed by the cleanup routine",
		},
	)

	// Business error metrics
	businessErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capcut_mate_business_errors_total",
			Help: "Total number of business errors by code",
		},
		[]string{"code"},
	)
)

// PrometheusMiddleware creates a Fiber middleware for Prometheus metrics
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// RecordDownload records one media download outcome
func RecordDownload(success bool, seconds float64) {
	downloadsTotal.WithLabelValues(statusLabel(success)).Inc()
	downloadDuration.Observe(seconds)
}

// RecordProbe records one ffprobe invocation outcome
func RecordProbe(success bool, seconds float64) {
	probesTotal.WithLabelValues(statusLabel(success)).Inc()
	probeDuration.Observe(seconds)
}

// RecordDurationCacheHit increments the cache hit counter
func RecordDurationCacheHit() {
	durationCacheHits.Inc()
}

// RecordDurationCacheMiss increments the cache miss counter
func RecordDurationCacheMiss() {
	durationCacheMisses.Inc()
}

// RecordTimelines increments the timeline generation counter
func RecordTimelines(strategy string) {
	timelinesTotal.WithLabelValues(strategy).Inc()
}

// RecordTempFilesCleaned adds to the cleanup counter
func RecordTempFilesCleaned(count int) {
	tempFilesCleaned.Add(float64(count))
}

// RecordBusinessError counts a non-zero envelope code
func RecordBusinessError(code int) {
	businessErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
