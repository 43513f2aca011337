package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgpkit_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sgpkit_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgpkit_propagations_total",
			Help: "Propagation calls by outcome.",
		},
		[]string{"result"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sgpkit_propagation_duration_seconds",
			Help:    "Duration of a single propagation call in seconds.",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	catalogSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgpkit_catalog_satellites",
			Help: "Number of element sets in the current catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgpkit_catalog_age_seconds",
			Help: "Seconds since the current catalog was fetched.",
		},
	)

	catalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgpkit_catalog_fetches_total",
			Help: "Catalog fetch attempts by result.",
		},
		[]string{"result"},
	)

	archiveInsertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sgpkit_archive_inserts_total",
			Help: "Element sets newly written to the archive.",
		},
	)

	registryPropagators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgpkit_registry_propagators",
			Help: "Initialized SGP4 propagators held for the current catalog.",
		},
	)

	passPredictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sgpkit_pass_predictions_total",
			Help: "Pass prediction requests served.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgpkit_stream_connections_total",
			Help: "Track stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgpkit_streams_active",
			Help: "Currently open track streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sgpkit_stream_messages_total",
			Help: "Track stream messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sgpkit_stream_bytes_total",
			Help: "Bytes written to track streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgpkit_stream_errors_total",
			Help: "Track stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		propagationDurationSeconds,
		catalogSatellites,
		catalogAgeSeconds,
		catalogFetchesTotal,
		archiveInsertsTotal,
		registryPropagators,
		passPredictionsTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one propagation call. result is "ok" or the error code name.
func RecordPropagation(d time.Duration, result string) {
	propagationsTotal.WithLabelValues(result).Inc()
	propagationDurationSeconds.Observe(d.Seconds())
}

// SetCatalogCount sets the number of element sets in the current catalog.
func SetCatalogCount(n int) {
	catalogSatellites.Set(float64(n))
}

// SetCatalogAge sets the age of the current catalog in seconds.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// IncCatalogFetch counts a fetch attempt ("success", "error" or "empty").
func IncCatalogFetch(result string) {
	catalogFetchesTotal.WithLabelValues(result).Inc()
}

// AddArchiveInserts counts element sets newly archived.
func AddArchiveInserts(n int) {
	archiveInsertsTotal.Add(float64(n))
}

// SetRegistryPropagators sets the number of cached propagators.
func SetRegistryPropagators(n int) {
	registryPropagators.Set(float64(n))
}

// IncPassPredictions counts a pass prediction request.
func IncPassPredictions() {
	passPredictionsTotal.Inc()
}

// IncStreamConnections counts a stream "connect" or "disconnect" event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() {
	streamsActive.Inc()
}

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() {
	streamsActive.Dec()
}

// IncStreamMessages counts one stream message.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// AddStreamBytes counts bytes written to streams.
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are exact paths recorded under their own label.
var knownRoutes = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/propagate":    true,
	"/api/v1/look":         true,
	"/api/v1/tle/metadata": true,
	"/api/v1/tle/fetch":    true,
}

// satelliteSubroutes are the leaf names allowed under /api/v1/satellites/{norad_id}/.
var satelliteSubroutes = map[string]bool{
	"look":    true,
	"passes":  true,
	"history": true,
	"track":   true,
}

const satellitesPrefix = "/api/v1/satellites/"

// normalizeRoute maps a request path to a bounded label set so that
// per-satellite paths and scanner noise do not explode metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	rest, ok := strings.CutPrefix(path, satellitesPrefix)
	if !ok {
		return "other"
	}
	id, sub, hasSub := strings.Cut(rest, "/")
	if !isDigits(id) {
		return "other"
	}
	if !hasSub {
		return satellitesPrefix + "{norad_id}"
	}
	if satelliteSubroutes[sub] {
		return satellitesPrefix + "{norad_id}/" + sub
	}
	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so streaming handlers keep working.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
