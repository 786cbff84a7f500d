package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"ai-failover/internal/observability/logging"
	"ai-failover/internal/observability/tracing"
	"ai-failover/internal/resilience/circuitbreaker"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// CircuitHealthResponse reports every backend circuit.
type CircuitHealthResponse struct {
	Healthy  bool            `json:"healthy"`
	Circuits []CircuitOutput `json:"circuits"`
}

// newMetricsMux exposes:
//   - GET /metrics: Prometheus metrics
//   - GET /health: liveness, always 200
//   - GET /health/circuits: 503 when every circuit is open and blocking calls, 200 otherwise
func newMetricsMux(circuits func() []circuitbreaker.Snapshot) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/circuits", circuitHealthHandler(circuits))
	return tracing.Middleware(logging.RequestIDMiddleware(mux))
}

// startMetricsServer serves newMetricsMux on addr until ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, addr string, circuits func() []circuitbreaker.Snapshot) *http.Server {
	server := &http.Server{
		Addr:         addr,
		Handler:      newMetricsMux(circuits),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	return server
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// circuitHealthHandler is unhealthy only when no backend can currently be tried.
// An open circuit with the breaker disabled still lets calls through.
func circuitHealthHandler(circuits func() []circuitbreaker.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snaps := circuits()

		healthy := false
		for _, s := range snaps {
			if !s.Enabled || s.State != gobreaker.StateOpen {
				healthy = true
				break
			}
		}

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(CircuitHealthResponse{
			Healthy:  healthy,
			Circuits: circuitOutputs(snaps),
		})
	}
}
