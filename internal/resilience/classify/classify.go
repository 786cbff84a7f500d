// Package classify maps backend failures onto the three recovery policies used by
// the resilience layer: retry the same backend, fall over to the next backend, or
// abort the whole chain.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Category is the recovery policy a failure calls for.
type Category int

const (
	// NonRecoverable failures abort the failover chain and surface to the caller.
	// This is the zero value so that anything unrecognized is never masked.
	NonRecoverable Category = iota

	// Retryable failures are retried on the same backend after a fixed delay.
	Retryable

	// Recoverable failures advance to the next backend without retrying.
	Recoverable
)

// String returns a string representation of the category.
func (c Category) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Recoverable:
		return "recoverable"
	case NonRecoverable:
		return "non-recoverable"
	default:
		return "unknown"
	}
}

// Sentinel failures for adapters that do not speak HTTP or gRPC.
var (
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("request timed out")
	ErrUnauthorized       = errors.New("credentials rejected")
	ErrNotFound           = errors.New("resource not found")
	ErrConnection         = errors.New("connection could not be established")
	ErrMalformedRequest   = errors.New("malformed request")
	ErrQuotaExhausted     = errors.New("quota exhausted")
)

// openAIQuotaCode is the error code OpenAI returns with HTTP 429 once the
// account has no remaining credit. Retrying it never helps.
const openAIQuotaCode = "insufficient_quota"

// Classify determines the category of a backend failure.
// It is pure: the same error always yields the same category.
func Classify(err error) Category {
	if err == nil {
		return NonRecoverable
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category
	}

	if c, ok := classifySentinel(err); ok {
		return c
	}

	if c, ok := classifyProvider(err); ok {
		return c
	}

	if st, ok := grpcStatus(err); ok {
		return classifyGRPC(st.Code())
	}

	if c, ok := classifyNetwork(err); ok {
		return c
	}

	return NonRecoverable
}

func classifySentinel(err error) (Category, bool) {
	switch {
	case errors.Is(err, ErrQuotaExhausted), errors.Is(err, ErrMalformedRequest):
		return NonRecoverable, true
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ErrTimeout):
		return Retryable, true
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConnection),
		errors.Is(err, gobreaker.ErrOpenState):
		return Recoverable, true
	case errors.Is(err, context.Canceled):
		return NonRecoverable, true
	case errors.Is(err, context.DeadlineExceeded):
		return Retryable, true
	}
	return NonRecoverable, false
}

func classifyProvider(err error) (Category, bool) {
	var oaiAPIErr *openai.APIError
	if errors.As(err, &oaiAPIErr) {
		if code, ok := oaiAPIErr.Code.(string); ok && code == openAIQuotaCode {
			return NonRecoverable, true
		}
		if oaiAPIErr.HTTPStatusCode > 0 {
			return classifyStatus(oaiAPIErr.HTTPStatusCode), true
		}
	}

	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) && oaiReqErr.HTTPStatusCode > 0 {
		return classifyStatus(oaiReqErr.HTTPStatusCode), true
	}

	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) && claudeErr.StatusCode > 0 {
		return classifyStatus(claudeErr.StatusCode), true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode), true
	}

	return NonRecoverable, false
}

// classifyStatus maps an HTTP status code onto a category.
func classifyStatus(code int) Category {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusGatewayTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		529: // Anthropic "overloaded"
		return Retryable
	case http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound:
		return Recoverable
	default:
		// 400, 402, 413, 422 and anything unexpected.
		return NonRecoverable
	}
}

func grpcStatus(err error) (*status.Status, bool) {
	var se interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &se) {
		return nil, false
	}
	return se.GRPCStatus(), true
}

func classifyGRPC(code codes.Code) Category {
	switch code {
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return Retryable
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound:
		return Recoverable
	default:
		return NonRecoverable
	}
}

func classifyNetwork(err error) (Category, bool) {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return Recoverable, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return Recoverable, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout() {
		return Recoverable, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable, true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) {
		return Retryable, true
	}

	return NonRecoverable, false
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ClassifiedError carries a backend failure together with its category.
type ClassifiedError struct {
	Category Category
	Err      error
}

// Wrap classifies err and wraps it. A nil error stays nil.
func Wrap(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClassifiedError{Category: Classify(err), Err: err}
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

// Unwrap returns the original failure.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// AbortsChain reports whether the failure must stop the failover chain.
func (e *ClassifiedError) AbortsChain() bool {
	return e.Category == NonRecoverable
}
