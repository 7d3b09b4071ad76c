// Package health serves the standard gRPC health checking protocol for the relay.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service whose status follows the relay
const ServiceName = "pshare"

// Server is a gRPC server exposing grpc.health.v1.Health
type Server struct {
	addr   string
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a health server for addr. The relay service starts NOT_SERVING.
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		addr:   addr,
		logger: logger.Named("health"),
		grpc:   gs,
		health: hs,
	}
}

// Start listens on the configured address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("health server already started")
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = lis
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("health server failed", zap.Error(err))
		}
	}(s.done)

	s.logger.Info("gRPC health service listening", zap.Stringer("addr", lis.Addr()))
	return nil
}

// Addr returns the listening address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SetServing reports the relay as SERVING or NOT_SERVING
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service NOT_SERVING and stops the server gracefully
func (s *Server) Stop() {
	s.health.Shutdown()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	s.grpc.GracefulStop()
	if done != nil {
		<-done
	}
}
