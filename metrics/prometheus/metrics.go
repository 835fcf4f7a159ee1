// Package prometheus provides Prometheus metrics for debate orchestration.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parley"

var (
	// debatesActive is a gauge of currently running debates.
	debatesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "debates_active",
			Help:      "Number of currently running debates",
		},
	)

	// debatesTotal is a counter of finished debates.
	debatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debates_total",
			Help:      "Total number of finished debates",
		},
		[]string{"status"}, // status: completed, failed, cancelled
	)

	// debateDuration is a histogram of total debate duration.
	debateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "debate_duration_seconds",
			Help:      "Histogram of total debate duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// turnDuration is a histogram of single-turn generation duration.
	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of one debater turn in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// tokensStreamedTotal is a counter of streamed token fragments.
	tokensStreamedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_streamed_total",
			Help:      "Total number of token fragments streamed to consumers",
		},
	)

	// eventsEmittedTotal is a counter of emitted debate events by type.
	eventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of debate events emitted",
		},
		[]string{"type"},
	)

	// providerRequestDuration is a histogram of LLM provider API call duration.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of LLM provider API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// providerRequestsTotal is a counter of provider API calls.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider API calls",
		},
		[]string{"provider", "model", "status"}, // status: success, error
	)

	// streamClientsActive is a gauge of connected stream consumers.
	streamClientsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients_active",
			Help:      "Number of currently connected stream consumers",
		},
		[]string{"transport"}, // transport: sse, websocket
	)

	// resultsPersistedTotal is a counter of persisted debate results.
	resultsPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_persisted_total",
			Help:      "Total number of debate results written to the store",
		},
		[]string{"status"}, // status: success, error
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		debatesActive,
		debatesTotal,
		debateDuration,
		turnDuration,
		tokensStreamedTotal,
		eventsEmittedTotal,
		providerRequestDuration,
		providerRequestsTotal,
		streamClientsActive,
		resultsPersistedTotal,
	}
)

// RecordDebateStart records a debate entering its run loop.
func RecordDebateStart() {
	debatesActive.Inc()
}

// RecordDebateEnd records a debate leaving its run loop.
func RecordDebateEnd(status string, durationSeconds float64) {
	debatesActive.Dec()
	debatesTotal.WithLabelValues(status).Inc()
	debateDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordTurn records one debater turn.
func RecordTurn(status string, durationSeconds float64) {
	turnDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordTokensStreamed records streamed token fragments.
func RecordTokensStreamed(n int) {
	if n > 0 {
		tokensStreamedTotal.Add(float64(n))
	}
}

// RecordEventEmitted records one emitted debate event.
func RecordEventEmitted(eventType string) {
	eventsEmittedTotal.WithLabelValues(eventType).Inc()
}

// RecordProviderRequest records a provider API call.
func RecordProviderRequest(provider, model, status string, durationSeconds float64) {
	providerRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
}

// RecordStreamClientConnected records a stream consumer attaching.
func RecordStreamClientConnected(transport string) {
	streamClientsActive.WithLabelValues(transport).Inc()
}

// RecordStreamClientDisconnected records a stream consumer detaching.
func RecordStreamClientDisconnected(transport string) {
	streamClientsActive.WithLabelValues(transport).Dec()
}

// RecordResultPersisted records a result store write.
func RecordResultPersisted(status string) {
	resultsPersistedTotal.WithLabelValues(status).Inc()
}
