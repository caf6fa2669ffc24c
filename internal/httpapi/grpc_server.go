package httpapi

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"aigate.org/internal/obs"
)

// GRPCHealthServer exposes the standard grpc.health.v1 service for platform
// probes. Serving status tracks the same readiness checks the HTTP /readyz
// endpoint runs.
type GRPCHealthServer struct {
	server    *grpc.Server
	health    *health.Server
	readiness readinessChecker
	interval  time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewGRPCHealthServer builds the server. The readiness checker is re-evaluated
// every interval; zero means the 15s default.
func NewGRPCHealthServer(r readinessChecker, interval time.Duration) *GRPCHealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &GRPCHealthServer{
		server:    grpc.NewServer(),
		health:    health.NewServer(),
		readiness: r,
		interval:  interval,
		stop:      make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// Serve blocks serving gRPC on lis until Stop is called.
func (s *GRPCHealthServer) Serve(lis net.Listener) error {
	go s.watch()
	return s.server.Serve(lis)
}

// Stop halts the readiness loop and drains in-flight RPCs.
func (s *GRPCHealthServer) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.server.GracefulStop()
}

func (s *GRPCHealthServer) watch() {
	s.refresh()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-s.stop:
			return
		}
	}
}

func (s *GRPCHealthServer) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.readiness.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.SetReady(false)
		obs.LogError("readiness check failed", err, nil)
	} else {
		obs.SetReady(true)
	}
	// Empty name covers clients probing without a service qualifier.
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(serviceName, status)
}
