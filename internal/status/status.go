// Package status serves the enforcement state over the standard gRPC health
// protocol. A host application can Watch the service and block interaction
// while it is NOT_SERVING.
package status

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ppiankov/authguard/internal/model"
)

// Service is the health service name that tracks the session.
const Service = "authguard.v1.Session"

// Server is a gRPC server exposing session health.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// New creates a server reporting SERVING (session Active).
func New() *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.Set(model.Active)
	return s
}

// Set publishes st. Only Active is SERVING.
func (s *Server) Set(st model.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if st == model.Active {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, status)
}

// Serve listens on addr. Blocks until stopped.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn serves on an existing listener.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and stops the server.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
