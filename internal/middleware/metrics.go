package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	requestDuration    *prometheus.HistogramVec
	inFlight           prometheus.Gauge
	submissions        *prometheus.CounterVec
	submissionDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codescan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "codescan_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "codescan_submissions_total",
			Help: "Finished snippet submissions by outcome",
		}, []string{"outcome"}),
		submissionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "codescan_submission_duration_seconds",
			Help:    "Submission duration from provisioning to stored run",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// Middleware records request duration labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := chimid.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// ObserveSubmission implements the analysis recorder.
func (m *Metrics) ObserveSubmission(outcome string, d time.Duration) {
	m.submissions.WithLabelValues(outcome).Inc()
	m.submissionDuration.Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
