// Package tracing provides OpenTelemetry tracing integration.
//
// The failover chain opens one span per request and one child span per backend
// it tries, so a trace shows which backends were skipped, retried or used.
// The HTTP middleware traces the metrics endpoint served by the CLI.
//
// Example usage:
//
//	import "ai-failover/internal/observability/tracing"
//
//	func send(ctx context.Context) {
//	    ctx, span := tracing.StartSpan(ctx, nil, "send")
//	    defer span.End()
//	}
package tracing
