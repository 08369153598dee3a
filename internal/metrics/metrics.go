// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_samples_ingested_total",
			Help: "Total number of samples accepted into a window",
		},
		[]string{"channel"},
	)

	SamplesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_samples_rejected_total",
			Help: "Total number of samples rejected at ingestion",
		},
		[]string{"reason"}, // "non_finite", "out_of_order", "unknown_channel"
	)

	// Engine Metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_tick_duration_seconds",
			Help:    "Duration of one engine tick in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	TickOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_tick_overruns_total",
			Help: "Ticks that took longer than the configured tick interval",
		},
	)

	SubjectsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_subjects_tracked",
			Help: "Current number of subjects held by the engine",
		},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_analyses_total",
			Help: "Channel analyses run during ticks",
		},
		[]string{"channel", "status"},
	)

	AnalysesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_analyses_discarded_total",
			Help: "Analysis results discarded because the subject left mid-tick",
		},
	)

	PatternLabels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_pattern_labels_total",
			Help: "Classifier labels produced per channel",
		},
		[]string{"channel", "label"},
	)

	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_violations_total",
			Help: "Confirmed violations by channel and reason kind",
		},
		[]string{"channel", "kind"},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_state_transitions_total",
			Help: "Violation state machine transitions",
		},
		[]string{"from", "to"},
	)

	SuspicionScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_suspicion_score",
			Help:    "Distribution of fused suspicion scores after a contributing tick",
			Buckets: []float64{5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	HandlerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_action_handler_failures_total",
			Help: "Host action callbacks that returned an error or panicked",
		},
	)

	ScheduledTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_scheduled_tasks_total",
			Help: "Scheduled tasks executed by kind",
		},
		[]string{"kind"},
	)

	// Alert Dispatch Metrics
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_dispatched_total",
			Help: "Alerts delivered to a sink",
		},
		[]string{"sink"},
	)

	AlertsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_failed_total",
			Help: "Alerts a sink failed to deliver",
		},
		[]string{"sink"},
	)

	AlertsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_dropped_total",
			Help: "Alerts dropped because the dispatch queue was full",
		},
	)

	AlertQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_alert_queue_depth",
			Help: "Current number of alerts waiting for delivery",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_circuit_breaker_state",
			Help: "Circuit breaker state per sink (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Persistence Metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_store_operations_total",
			Help: "Ledger store operations",
		},
		[]string{"operation", "result"},
	)

	StoreWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_store_writes_dropped_total",
			Help: "Ledger writes dropped because the write queue was full",
		},
	)

	// Messaging Metrics
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_messages_consumed_total",
			Help: "Messages consumed from the ingest topics",
		},
		[]string{"topic", "result"}, // "ok", "parse_failed", "rejected"
	)

	AlertsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_published_total",
			Help: "Alerts published to the in-game notice topic",
		},
	)

	ActionsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_actions_published_total",
			Help: "Violation decisions published to the actions topic",
		},
	)

	// HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "Admin API request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_websocket_connections",
			Help: "Current number of staff alert feed connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_websocket_messages_sent_total",
			Help: "Messages broadcast to the staff alert feed",
		},
	)
)

// RecordRejection records a sample rejected at ingestion.
func RecordRejection(reason string) {
	SamplesRejected.WithLabelValues(reason).Inc()
}

// RecordTick records the duration of one engine tick and flags overruns.
func RecordTick(duration, interval time.Duration) {
	TickDuration.Observe(duration.Seconds())
	if interval > 0 && duration > interval {
		TickOverruns.Inc()
	}
}

// RecordAnalysis records one channel analysis and its classifier label.
// An empty label means classification was not run.
func RecordAnalysis(channel, status, label string) {
	AnalysesTotal.WithLabelValues(channel, status).Inc()
	if label != "" {
		PatternLabels.WithLabelValues(channel, label).Inc()
	}
}

// RecordTransition records a state change. Equal states are ignored.
func RecordTransition(from, to string) {
	if from == to {
		return
	}
	StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordAlertDelivery records the outcome of one sink delivery.
func RecordAlertDelivery(sink string, err error) {
	if err != nil {
		AlertsFailed.WithLabelValues(sink).Inc()
		return
	}
	AlertsDispatched.WithLabelValues(sink).Inc()
}

// RecordStoreOperation records one ledger operation.
func RecordStoreOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StoreOperations.WithLabelValues(operation, result).Inc()
}

// RecordAPIRequest records admin API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetCircuitBreakerState publishes a breaker state as a gauge value.
func SetCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
