package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	vitalsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_recorded_total",
			Help: "Total number of vitals records submitted",
		},
		[]string{"category"},
	)

	assessmentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessments_recorded_total",
			Help: "Total number of assessments submitted",
		},
		[]string{"kind"},
	)

	eligibilityDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_denied_total",
			Help: "Total number of assessment attempts denied by eligibility rules",
		},
		[]string{"kind"},
	)

	visitConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visit_conflicts_total",
			Help: "Total number of submissions rejected as same-day duplicates",
		},
		[]string{"kind"},
	)

	summaryBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summary_build_duration_seconds",
			Help:    "Patient summary list build duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	summaryFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_fetch_failures_total",
			Help: "Total number of sub-resource fetch failures during summary building",
		},
		[]string{"resource"},
	)

	// Records backend metrics
	recordsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_api_requests_total",
			Help: "Total number of requests to the records backend",
		},
		[]string{"method", "status"},
	)

	recordsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "records_api_request_duration_seconds",
			Help:    "Records backend request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	activityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_events_total",
			Help: "Total number of clinical activity events recorded",
		},
		[]string{"action"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses identifier segments so metric cardinality
// stays bounded regardless of how many patients the clinic serves.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(segment string) bool {
	// UUIDs are 36 chars with dashes at fixed positions
	if len(segment) == 36 && strings.Count(segment, "-") == 4 {
		return true
	}
	// Numeric identifiers
	if segment != "" {
		if _, err := strconv.Atoi(segment); err == nil {
			return true
		}
	}
	return false
}

// --- Business metric helpers ---

// RecordVitals records a successful vitals submission
func RecordVitals(category string) {
	vitalsRecorded.WithLabelValues(category).Inc()
}

// RecordAssessment records a successful assessment submission
func RecordAssessment(kind string) {
	assessmentsRecorded.WithLabelValues(kind).Inc()
}

// RecordEligibilityDenied records an assessment attempt blocked by eligibility rules
func RecordEligibilityDenied(kind string) {
	eligibilityDenied.WithLabelValues(kind).Inc()
}

// RecordVisitConflict records a same-day duplicate rejection
func RecordVisitConflict(kind string) {
	visitConflicts.WithLabelValues(kind).Inc()
}

// RecordSummaryBuild records a summary list build duration
func RecordSummaryBuild(duration time.Duration) {
	summaryBuildDuration.Observe(duration.Seconds())
}

// RecordSummaryFetchFailure records a sub-resource fetch failure during summary building
func RecordSummaryFetchFailure(resource string) {
	summaryFetchFailures.WithLabelValues(resource).Inc()
}

// RecordBackendRequest records a request to the records backend
func RecordBackendRequest(method string, status int, duration time.Duration) {
	recordsRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	recordsRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordActivityEvent records a clinical activity event write
func RecordActivityEvent(action string) {
	activityEvents.WithLabelValues(action).Inc()
}
