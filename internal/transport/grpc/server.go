package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	googleGrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key reported next to the overall status.
const ServiceName = "zapshift.Booking"

// CheckFunc reports whether a dependency the server relies on is usable.
type CheckFunc func(ctx context.Context) error

// Server exposes the standard gRPC health protocol for orchestrators.
type Server struct {
	grpcServer *googleGrpc.Server
	health     *health.Server
	logger     *zap.Logger
}

func NewServer(logger *zap.Logger) *Server {
	s := googleGrpc.NewServer(
		googleGrpc.StatsHandler(otelgrpc.NewServerHandler()),
		googleGrpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		googleGrpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	grpc_prometheus.Register(s)

	return &Server{
		grpcServer: s,
		health:     hs,
		logger:     logger,
	}
}

func (s *Server) Serve(lis net.Listener) error {
	s.SetServing(true)

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}

	return nil
}

func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Watch runs check every interval and flips the health status on the
// result. It returns when ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration, check CheckFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			err := check(checkCtx)
			cancel()

			if ok := err == nil; ok != healthy {
				healthy = ok
				s.SetServing(ok)

				if ok {
					mylogger.Info(ctx, s.logger, "Dependency check recovered")
				} else {
					mylogger.Warn(ctx, s.logger, "Dependency check failed", zap.Error(err))
				}
			}
		}
	}
}

// GracefulStop reports NOT_SERVING and waits for in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
