// Package metrics exposes Prometheus collectors for the weather service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	weatherFetchesTotal          *prometheus.CounterVec
	weatherFetchDurationSeconds  prometheus.Histogram
	weatherRequestsTotal         *prometheus.CounterVec
	weatherWideningsTotal        prometheus.Counter
	weatherRevocationMitigations prometheus.Counter
	weatherUpdatesRejectedTotal  *prometheus.CounterVec
	weatherQNHHPa                prometheus.Gauge
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec
	simulationAircraft           prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		weatherFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wx_fetches_total",
				Help: "Completed weather fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		weatherFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wx_fetch_duration_seconds",
				Help:    "Wall time of a weather fetch including retries.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 90},
			},
		)

		weatherRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wx_http_requests_total",
				Help: "HTTP requests sent to the METAR data server, labeled by status code or \"error\".",
			},
			[]string{"code"},
		)

		weatherWideningsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wx_search_widenings_total",
				Help: "Fetches that repeated their search with the maximum radius.",
			},
		)

		weatherRevocationMitigations = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wx_revocation_mitigations_total",
				Help: "Fetches that disabled the certificate revocation check after it failed.",
			},
		)

		weatherUpdatesRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wx_updates_rejected_total",
				Help: "Weather update requests that did not start a fetch, labeled by reason.",
			},
			[]string{"reason"},
		)

		weatherQNHHPa = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wx_qnh_hpa",
				Help: "Most recently published QNH in hPa.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		simulationAircraft = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "simulation_aircraft",
				Help: "Number of simulated aircraft.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWeatherFetch records the outcome and duration of a completed fetch.
func ObserveWeatherFetch(outcome string, duration time.Duration) {
	Init()
	weatherFetchesTotal.WithLabelValues(outcome).Inc()
	weatherFetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveWeatherRequest records one HTTP exchange with the data server.
// A code of 0 means the request failed before a status was received.
func ObserveWeatherRequest(code int) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	weatherRequestsTotal.WithLabelValues(label).Inc()
}

// ObserveWeatherWidening counts a widened search.
func ObserveWeatherWidening() {
	Init()
	weatherWideningsTotal.Inc()
}

// ObserveRevocationMitigation counts a disabled revocation check.
func ObserveRevocationMitigation() {
	Init()
	weatherRevocationMitigations.Inc()
}

// ObserveUpdateRejected counts an update request that launched no fetch.
func ObserveUpdateRejected(reason string) {
	Init()
	weatherUpdatesRejectedTotal.WithLabelValues(reason).Inc()
}

// SetQNH publishes the current QNH.
func SetQNH(hPa float64) {
	Init()
	weatherQNHHPa.Set(hPa)
}

// SetSimulationAircraft publishes the number of simulated aircraft.
func SetSimulationAircraft(n int) {
	Init()
	simulationAircraft.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
