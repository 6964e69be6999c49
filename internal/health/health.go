// Package health serves the standard gRPC health service for orchestrators.
package health

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the per-service entry reported next to the overall status.
const ServiceName = "chatrecorder.Recorder"

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server reports SERVING while every pinger answers.
type Server struct {
	grpc     *grpc.Server
	hs       *health.Server
	pingers  []Pinger
	interval time.Duration
	logger   *slog.Logger
}

// New creates a health server. Nil pingers are skipped.
func New(interval time.Duration, logger *slog.Logger, pingers ...Pinger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	var live []Pinger
	for _, p := range pingers {
		if p != nil {
			live = append(live, p)
		}
	}
	s := &Server{
		grpc:     grpc.NewServer(),
		hs:       health.NewServer(),
		pingers:  live,
		interval: interval,
		logger:   logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.hs)
	return s
}

// Refresh pings every dependency once and publishes the result.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, p := range s.pingers {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("[HEALTH] Dependency unreachable", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(ServiceName, status)
	return status
}

// Serve refreshes the status periodically and serves on lis until ctx is
// done. It returns after the gRPC server has stopped.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[HEALTH] gRPC health server listening", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Refresh(ctx)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			s.hs.Shutdown()
			s.grpc.GracefulStop()
			<-errCh
			s.logger.Info("[HEALTH] gRPC health server stopped")
			return nil
		}
	}
}
