package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Model inferences by outcome (success, invalid, error).
	PredictionsTotal *prometheus.CounterVec

	// Distribution of predicted kWh. Watch for: drift away from the training range.
	PredictedEnergyKWh prometheus.Histogram

	// Dashboard calls to the prediction service. Watch for: error vs success ratio.
	PredictionAPICallsTotal *prometheus.CounterVec

	// Prediction service latency as seen by the dashboard.
	PredictionAPIDuration *prometheus.HistogramVec

	// Retry attempts for prediction calls. Watch for: high retries = unstable service.
	PredictionAPIRetriesTotal prometheus.Counter

	// Failed prediction calls by category (see client.CategorizeError).
	PredictionAPIErrorsTotal *prometheus.CounterVec

	// Circuit breaker state for prediction calls (0=closed, 1=open, 2=half_open).
	PredictionAPICircuitState prometheus.Gauge

	// History store appends by outcome.
	HistoryWritesTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Trees in the loaded model; 0 until the model is loaded.
	ModelTrees prometheus.Gauge

	uptimeGaugeOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionsTotal",
			Help: "Total number of prediction requests handled, by outcome",
		},
		[]string{"status"},
	)
	PredictedEnergyKWh = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "predictedEnergyKwh",
			Help:    "Predicted hourly energy consumption in kWh",
			Buckets: []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 2, 2.5, 3},
		},
	)
	PredictionAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionApiCallsTotal",
			Help: "Total number of prediction service calls made by the dashboard",
		},
		[]string{"status"},
	)
	PredictionAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "predictionApiDurationSeconds",
			Help:    "Prediction service latency in seconds (per call)",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
	PredictionAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "predictionApiRetriesTotal",
			Help: "Total number of retry attempts for prediction service calls",
		},
	)
	PredictionAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionApiErrorsTotal",
			Help: "Failed prediction service calls by error category",
		},
		[]string{"category"},
	)
	PredictionAPICircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "predictionApiCircuitState",
			Help: "Prediction service circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
	)
	HistoryWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "historyWritesTotal",
			Help: "Prediction history appends by outcome",
		},
		[]string{"status"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ModelTrees = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelTrees",
			Help: "Number of trees in the loaded model",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		PredictionsTotal, PredictedEnergyKWh,
		PredictionAPICallsTotal, PredictionAPIDuration, PredictionAPIRetriesTotal, PredictionAPIErrorsTotal,
		PredictionAPICircuitState,
		HistoryWritesTotal,
		RateLimitDeniedTotal,
		ModelTrees,
	)
}

// RegisterUptimeGauge exposes process uptime from the given source. Safe to call more than once;
// only the first call registers.
func RegisterUptimeGauge(uptimeSeconds func() float64) {
	uptimeGaugeOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "uptimeSeconds",
					Help: "Seconds since the process started serving",
				},
				uptimeSeconds,
			),
		)
	})
}

// RecordPrediction counts a handled prediction and, on success, observes the predicted value.
func RecordPrediction(status string, kwh float64) {
	PredictionsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		PredictedEnergyKWh.Observe(kwh)
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
