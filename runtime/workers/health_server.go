package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpclog "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// RelayServiceName is the service reported by the health endpoint.
const RelayServiceName = "chat.relay.v1"

// ReadinessCheck reports whether a dependency the relay needs is usable.
type ReadinessCheck func(ctx context.Context) error

// HealthServerWorker exposes the standard gRPC health service.
// The relay is reported SERVING while the worker runs and its check passes,
// NOT_SERVING otherwise.
type HealthServerWorker struct {
	log           *slog.Logger
	address       string
	check         ReadinessCheck
	checkInterval time.Duration
	health        *health.Server
	ready         chan net.Addr
}

// NewHealthServerWorker polls check every checkInterval. A nil check always passes.
func NewHealthServerWorker(log *slog.Logger, address string, check ReadinessCheck, checkInterval time.Duration) *HealthServerWorker {
	if check == nil {
		check = func(context.Context) error { return nil }
	}
	if checkInterval <= 0 {
		checkInterval = 10 * time.Second
	}
	return &HealthServerWorker{
		log:           log,
		address:       address,
		check:         check,
		checkInterval: checkInterval,
		health:        health.NewServer(),
		ready:         make(chan net.Addr, 1),
	}
}

func (w *HealthServerWorker) Ready() <-chan net.Addr {
	return w.ready
}

func (w *HealthServerWorker) setServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	w.health.SetServingStatus(RelayServiceName, status)
	w.health.SetServingStatus("", status)
}

func (w *HealthServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpclog.UnaryLoggingInterceptor(w.log)))
	grpc_health_v1.RegisterHealthServer(s, w.health)
	serving := w.refresh(ctx, true)

	select {
	case w.ready <- listener.Addr():
	default:
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC health server", "address", listener.Addr().String(), "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			w.log.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
		close(errChan)
	}()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case err := <-errChan:
			w.setServing(false)
			return err
		case <-ticker.C:
			serving = w.refresh(ctx, serving)
		case <-ctx.Done():
			break loop
		}
	}

	w.setServing(false)
	w.health.Shutdown()
	s.GracefulStop()
	return ctx.Err()
}

// refresh runs the check, publishes the result and logs transitions from previous.
func (w *HealthServerWorker) refresh(ctx context.Context, previous bool) bool {
	checkCtx, cancel := context.WithTimeout(ctx, w.checkInterval)
	defer cancel()
	err := w.check(checkCtx)
	serving := err == nil
	w.setServing(serving)
	switch {
	case !serving && previous:
		w.log.Warn("Readiness check failed, reporting NOT_SERVING", "error", err)
	case serving && !previous:
		w.log.Info("Readiness check recovered, reporting SERVING")
	}
	return serving
}
