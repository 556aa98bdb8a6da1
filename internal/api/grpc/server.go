// Package grpcapi hosts the gRPC surface of the service: the standard health
// service, mirroring application readiness, and reflection for grpcurl.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"virtual-secretary/internal/observability"
	"virtual-secretary/internal/observability/metrics"
)

// ServiceName is the health-checked service name.
const ServiceName = "virtual.secretary.Conversation"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    zerolog.Logger
}

// New builds the gRPC server with logging and metrics interceptors.
func New(m *metrics.Metrics, logger zerolog.Logger) *Server {
	log := logger.With().Str("component", "grpc").Logger()
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m, log)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m, log)),
	)

	// Register gRPC health check service
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	return &Server{grpc: g, health: hs, log: log}
}

// SetServing flips the health status of the server and the conversation service.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server started")
	return s.grpc.Serve(lis)
}

// GracefulStop marks the server not serving and drains open calls.
func (s *Server) GracefulStop() {
	s.log.Info().Msg("shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
