package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journalflow_intents_total",
			Help: "Editorial intents by outcome (ok or failure kind).",
		},
		[]string{"intent", "outcome"},
	)

	publishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journalflow_versions_published_total",
			Help: "Publication versions moved to published, by trigger.",
		},
		[]string{"trigger"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "journalflow_ready",
		Help: "1 when the last readiness probe succeeded.",
	})

	initOnce sync.Once
)

// Init registers collectors in the default registry. Safe to call repeatedly.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			intentsTotal, publishedTotal, readyGauge)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIntent counts one orchestrator intent. outcome is "ok" or a failure kind.
func ObserveIntent(intent, outcome string) {
	intentsTotal.WithLabelValues(intent, outcome).Inc()
}

// ObservePublished counts a version reaching published. trigger is "manual" or "schedule".
func ObservePublished(trigger string) {
	publishedTotal.WithLabelValues(trigger).Inc()
}

func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// Instrument records request count, latency and in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// routeShapes lists the parameterised routes; ":id" segments match anything.
var routeShapes = [][]string{
	{"v1", "journals", ":id"},
	{"v1", "journals", ":id", "users"},
	{"v1", "journals", ":id", "submissions"},
	{"v1", "journals", ":id", "library-files"},
	{"v1", "journals", ":id", "library-files", ":id"},
	{"v1", "journals", ":id", "library-files", ":id", "download"},
	{"v1", "journals", ":id", "activity", "stream"},
	{"v1", "submissions", ":id", "versions"},
	{"v1", "submissions", ":id", "versions", ":id", "schedule"},
	{"v1", "submissions", ":id", "versions", ":id", "publish"},
	{"v1", "submissions", ":id", "activity"},
	{"v1", "submissions", ":id", "files"},
	{"v1", "submissions", ":id", "files", ":id", "download"},
}

// CanonicalPath collapses identifiers so metric label cardinality stays bounded.
// Paths that match no known route are returned unchanged (without query).
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for _, shape := range routeShapes {
		if len(shape) != len(parts) {
			continue
		}
		match := true
		for i, seg := range shape {
			if seg != ":id" && seg != parts[i] {
				match = false
				break
			}
		}
		if match {
			return "/" + strings.Join(shape, "/")
		}
	}
	return "/" + trimmed
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps Server-Sent Events working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
