// Package main provides a CLI that sends prompts through the failover chain.
// Usage: ask [flags] [prompt...]
//
// The prompt is taken from -prompt, then from the remaining arguments, then from stdin.
// Backends, retries and circuit breaking come from FAILOVER_* environment variables
// (optionally loaded from a .env file).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ai-failover/internal/config"
	"ai-failover/internal/infra/llm"
	"ai-failover/internal/observability/logging"
	"ai-failover/internal/resilience"
	"ai-failover/internal/resilience/circuitbreaker"
	pkgconfig "ai-failover/pkg/config"
)

type options struct {
	prompt      string
	system      string
	maxTokens   int
	count       int
	concurrency int
	rps         float64
	timeout     time.Duration
	output      string
	logFormat   string
	envFile     string
	metricsAddr string
}

// Result is one answered (or failed) prompt.
type Result struct {
	Index   int    `json:"index"`
	Backend string `json:"backend,omitempty"`
	Model   string `json:"model,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

// CircuitOutput is the JSON form of a circuit snapshot.
type CircuitOutput struct {
	Backend             string     `json:"backend"`
	Enabled             bool       `json:"enabled"`
	State               string     `json:"state"`
	Requests            uint32     `json:"requests"`
	TotalFailures       uint32     `json:"total_failures"`
	ConsecutiveFailures uint32     `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// Output is the JSON document printed with -output json.
type Output struct {
	Results  []Result        `json:"results"`
	Circuits []CircuitOutput `json:"circuits"`
}

func main() {
	var opts options
	flag.StringVar(&opts.prompt, "prompt", "", "Prompt to send (default: remaining arguments or stdin)")
	flag.StringVar(&opts.system, "system", "", "Optional system prompt")
	flag.IntVar(&opts.maxTokens, "max-tokens", 0, "Override the provider's max tokens")
	flag.IntVar(&opts.count, "n", 1, "Number of times to send the prompt")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "Maximum concurrent requests")
	flag.Float64Var(&opts.rps, "rps", 0, "Requests per second limit (0 = unlimited)")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Overall timeout")
	flag.StringVar(&opts.output, "output", "text", "Output format: text or json")
	flag.StringVar(&opts.logFormat, "log", "text", "Log format: text or json")
	flag.StringVar(&opts.envFile, "env-file", ".env", "Environment file to load if present")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", pkgconfig.GetEnvString("METRICS_ADDR", ""),
		"Serve /metrics and /health on this address while running (e.g. :9090)")
	flag.Parse()

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	logger := initLogger(opts.logFormat)

	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("invalid output format %q (must be text or json)", opts.output)
	}
	if opts.count < 1 || opts.concurrency < 1 || opts.rps < 0 {
		return errors.New("-n and -concurrency must be positive and -rps non-negative")
	}

	prompt, err := readPrompt(opts.prompt, args, os.Stdin)
	if err != nil {
		return err
	}

	cfg, err := config.LoadResilienceConfig()
	if err != nil {
		return err
	}
	providers, err := cfg.ResolveProviders()
	if err != nil {
		return err
	}
	backends, err := llm.NewBackends(providers)
	if err != nil {
		return err
	}
	defer llm.CloseBackends(backends)

	client, err := resilience.New(resilience.Config[llm.Request, llm.Response]{
		Primary:   &backends[0],
		Fallbacks: backends[1:],
		Options:   cfg.Options(),
	}, resilience.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("failover chain ready",
		slog.Any("backends", client.Backends()),
		slog.Int("max_retries", cfg.MaxRetries),
		slog.Bool("circuit_breaker", cfg.CircuitBreakerEnabled))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	if opts.metricsAddr != "" {
		startMetricsServer(ctx, logger, opts.metricsAddr, client.Circuits)
	}

	req := llm.Request{System: opts.system, Prompt: prompt, MaxTokens: opts.maxTokens}
	results := sendAll(ctx, client, req, opts)

	if opts.output == "json" {
		return outputJSON(os.Stdout, results, client.Circuits())
	}
	outputText(os.Stdout, results, client.Circuits())
	return nil
}

// readPrompt picks the prompt from the flag, the arguments or stdin, in that order.
func readPrompt(flagValue string, args []string, stdin io.Reader) (string, error) {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(strings.Join(args, " ")); p != "" {
		return p, nil
	}

	data, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	if p := strings.TrimSpace(string(data)); p != "" {
		return p, nil
	}
	return "", errors.New("no prompt given (use -prompt, arguments or stdin)")
}

// sender is the part of the resilient client the CLI needs.
type sender interface {
	Send(ctx context.Context, req llm.Request) (llm.Response, error)
}

// sendAll sends req opts.count times, at most opts.concurrency at once and,
// when opts.rps is set, no faster than opts.rps per second.
// Individual failures are collected rather than cancelling the other sends.
func sendAll(ctx context.Context, client sender, req llm.Request, opts options) []Result {
	var limiter *rate.Limiter
	if opts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.rps), 1)
	}

	results := make([]Result, opts.count)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i := 0; i < opts.count; i++ {
		g.Go(func() error {
			res := Result{Index: i}
			start := time.Now()

			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					res.Error = err.Error()
					res.Elapsed = time.Since(start).String()
					mu.Lock()
					results[i] = res
					mu.Unlock()
					return nil
				}
			}

			resp, err := client.Send(gctx, req)
			res.Elapsed = time.Since(start).Round(time.Millisecond).String()
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Backend = resp.Backend
				res.Model = resp.Model
				res.Text = resp.Text
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func circuitOutputs(snaps []circuitbreaker.Snapshot) []CircuitOutput {
	out := make([]CircuitOutput, 0, len(snaps))
	for _, s := range snaps {
		co := CircuitOutput{
			Backend:             s.Name,
			Enabled:             s.Enabled,
			State:               s.State.String(),
			Requests:            s.Counts.Requests,
			TotalFailures:       s.Counts.TotalFailures,
			ConsecutiveFailures: s.Counts.ConsecutiveFailures,
		}
		if !s.OpenedAt.IsZero() {
			openedAt := s.OpenedAt
			co.OpenedAt = &openedAt
		}
		out = append(out, co)
	}
	return out
}

// outputText prints results in human-readable format.
func outputText(w io.Writer, results []Result, snaps []circuitbreaker.Snapshot) {
	for _, r := range results {
		if len(results) > 1 {
			fmt.Fprintf(w, "[%d] ", r.Index+1)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "error after %s: %s\n", r.Elapsed, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s (%s, %s)\n%s\n", r.Backend, r.Model, r.Elapsed, r.Text)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Circuits:")
	for _, c := range circuitOutputs(snaps) {
		fmt.Fprintf(w, "  %-12s %-10s requests=%d failures=%d consecutive_failures=%d\n",
			c.Backend, c.State, c.Requests, c.TotalFailures, c.ConsecutiveFailures)
	}
}

// outputJSON prints results in JSON format.
func outputJSON(w io.Writer, results []Result, snaps []circuitbreaker.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Output{Results: results, Circuits: circuitOutputs(snaps)}); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// initLogger initializes the default logger. Logs go to stderr so stdout stays clean.
func initLogger(format string) *slog.Logger {
	var logger *slog.Logger
	if format == "json" {
		logger = logging.NewLogger(os.Stderr)
	} else {
		logger = logging.NewTextLogger(os.Stderr)
	}
	slog.SetDefault(logger)
	return logger
}
