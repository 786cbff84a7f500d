// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON output for services, tint-colored text output for the CLI
//   - Request ID propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "ai-failover/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger(os.Stderr)
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func send(ctx context.Context) {
//	    logger := logging.WithRequestID(ctx, logging.FromContext(ctx))
//	    logger.Info("sending request")
//	}
package logging
