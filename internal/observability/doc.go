// Package observability groups the logging, metrics and tracing used by the failover layer.
//
// Subpackages:
//   - logging: slog loggers (JSON or tint) and request-scoped context helpers
//   - metrics: Prometheus collectors for circuits, attempts and backend latency
//   - tracing: OpenTelemetry tracer access and HTTP middleware
//
// Example usage:
//
//	import (
//	    "ai-failover/internal/observability/logging"
//	    "ai-failover/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger(os.Stderr)
//	    logger.Info("application started")
//
//	    metrics.RecordSkipped("claude")
//	}
package observability
