// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package metrics provides Prometheus instrumentation for the detection engine.

All collectors are registered with the default registry through promauto and
exposed by the admin API at /metrics:

	curl http://localhost:8466/metrics

# Available Metrics

Ingestion:
  - vigil_samples_ingested_total{channel}
  - vigil_samples_rejected_total{reason}

Engine:
  - vigil_tick_duration_seconds, vigil_tick_overruns_total
  - vigil_subjects_tracked
  - vigil_analyses_total{channel,status}, vigil_analyses_discarded_total
  - vigil_pattern_labels_total{channel,label}
  - vigil_violations_total{channel,kind}
  - vigil_state_transitions_total{from,to}
  - vigil_suspicion_score
  - vigil_action_handler_failures_total
  - vigil_scheduled_tasks_total{kind}

Alerts:
  - vigil_alerts_dispatched_total{sink}, vigil_alerts_failed_total{sink}
  - vigil_alerts_dropped_total, vigil_alert_queue_depth
  - vigil_circuit_breaker_state{name}

Persistence and messaging:
  - vigil_store_operations_total{operation,result}, vigil_store_writes_dropped_total
  - vigil_messages_consumed_total{topic,result}, vigil_alerts_published_total

HTTP and WebSocket:
  - vigil_http_requests_total{method,endpoint,status}
  - vigil_http_request_duration_seconds{method,endpoint}
  - vigil_websocket_connections, vigil_websocket_messages_sent_total

# Thread Safety

All helpers are safe for concurrent use.
*/
package metrics
