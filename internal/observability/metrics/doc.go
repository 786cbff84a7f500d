// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the failover layer metrics:
//   - Circuit breaker state and transitions per backend
//   - Attempts per backend and outcome
//   - Backends skipped by an open circuit
//   - End-to-end request results and duration
//   - Backend call latency
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "ai-failover/internal/observability/metrics"
//
//	cfg := circuitbreaker.DefaultConfig("claude")
//	cfg.Metrics = metrics.NewCircuitMetrics()
//
//	metrics.RecordAttempt("claude", metrics.OutcomeSuccess)
package metrics
