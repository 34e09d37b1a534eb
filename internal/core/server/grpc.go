// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/solatis/stagekeeper/internal/core/api"
	"github.com/solatis/stagekeeper/internal/core/auth"
	"github.com/solatis/stagekeeper/internal/core/config"
)

// shutdownTimeout bounds GracefulStop before in-flight calls are cut off.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	config *config.RuleAPIConfig
	logger *slog.Logger
}

// NewGRPCServer creates a gRPC server with tracing, request deadlines, auth
// and the rule service registered.
func NewGRPCServer(cfg *config.RuleAPIConfig, service api.RuleServiceServer, authenticator *auth.Authenticator, logger *slog.Logger) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			timeoutInterceptor(cfg.RequestTimeout),
			loggingInterceptor(logger),
			authenticator.UnaryInterceptor(),
		),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}
	if cfg.MaxDocumentBytes > 0 {
		// Leave room for the request envelope around the rule document.
		opts = append(opts, grpc.MaxRecvMsgSize(int(cfg.MaxDocumentBytes)*2))
	}

	server := grpc.NewServer(opts...)
	api.RegisterRuleServiceServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}, nil
}

// Start binds the configured address and serves until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC requests on listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.logger.Info("rule API listening", "addr", listener.Addr().String())
	return s.server.Serve(listener)
}

// Shutdown marks the server NOT_SERVING and stops it gracefully, forcing a
// stop when ctx ends or after 30 seconds.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

// timeoutInterceptor applies the configured per-request deadline.
func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// loggingInterceptor logs one line per call with its status code.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc call",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
