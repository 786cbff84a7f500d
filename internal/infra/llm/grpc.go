package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"ai-failover/internal/config"
	"ai-failover/internal/resilience/classify"
)

// jsonCodec carries Request and Response as JSON over gRPC so that a
// completion service can be reached without generated stubs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// GRPC calls a unary completion method on a remote service.
// Status codes returned by the service are classified like HTTP statuses,
// e.g. UNAVAILABLE is retried and INVALID_ARGUMENT aborts the chain.
type GRPC struct {
	conn   *grpc.ClientConn
	method string
	apiKey string
	model  string
	call   call
}

// NewGRPC creates a client for p.BaseURL. The connection is established lazily on
// the first call; extra dial options are appended after the insecure transport.
func NewGRPC(p config.ProviderConfig, opts ...grpc.DialOption) (*GRPC, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)

	conn, err := grpc.NewClient(p.BaseURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	return &GRPC{
		conn:   conn,
		method: p.Method,
		apiKey: p.APIKey(),
		model:  p.Model,
		call: call{
			backend:        p.Name,
			model:          p.Model,
			timeout:        p.Timeout,
			maxPromptRunes: p.MaxPromptRunes,
		},
	}, nil
}

// grpcRequest is the wire form of a completion request.
type grpcRequest struct {
	Request
	Model string `json:"model,omitempty"`
}

// Send implements resilience.Adapter.
func (g *GRPC) Send(ctx context.Context, req Request) (Response, error) {
	return g.call.run(ctx, req, func(ctx context.Context, req Request) (Response, error) {
		if g.apiKey != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+g.apiKey)
		}

		var resp Response
		if err := g.conn.Invoke(ctx, g.method, &grpcRequest{Request: req, Model: g.model}, &resp); err != nil {
			if isDialFailure(err) {
				return Response{}, fmt.Errorf("%w: %w", classify.ErrConnection, err)
			}
			return Response{}, err
		}
		return resp, nil
	})
}

// isDialFailure reports whether err is grpc-go's UNAVAILABLE for a connection that
// could not be established. Such a status does not wrap the underlying net error.
func isDialFailure(err error) bool {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unavailable {
		return false
	}
	msg := st.Message()
	return strings.Contains(msg, "while dialing") || strings.Contains(msg, "connection error")
}

// Close closes the underlying connection.
func (g *GRPC) Close() error {
	if err := g.conn.Close(); err != nil {
		slog.Error("failed to close gRPC connection",
			slog.String("backend", g.call.backend),
			slog.Any("error", err))
		return err
	}
	return nil
}
