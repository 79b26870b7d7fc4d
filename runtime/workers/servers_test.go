package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestHTTPServerWorker_ServesUntilCancelled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	worker := NewHTTPServerWorker(log, "127.0.0.1:0", handler, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- worker.Run(ctx) }()

	addr := <-worker.Ready()
	resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
	req.NoError(err)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal("pong", string(body))

	cancel()
	select {
	case err := <-errChan:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		req.Fail("HTTP worker should stop on cancel")
	}
}

func TestHTTPServerWorker_ListenFailure(t *testing.T) {
	req := require.New(t)
	worker := NewHTTPServerWorker(logs.GetLoggerFromLevel(slog.LevelDebug), "not-an-address", http.NotFoundHandler(), time.Second)
	req.Error(worker.Run(context.Background()))
}

func TestHealthServerWorker_ReportsServing(t *testing.T) {
	req := require.New(t)
	var storeDown atomic.Bool
	check := func(context.Context) error {
		if storeDown.Load() {
			return stderrors.New("store unreachable")
		}
		return nil
	}
	worker := NewHealthServerWorker(logs.GetLoggerFromLevel(slog.LevelDebug), "127.0.0.1:0", check, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- worker.Run(ctx) }()
	addr := <-worker.Ready()

	conn, err := grpc.NewClient(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer func() { _ = conn.Close() }()
	client := grpc_health_v1.NewHealthClient(conn)

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()
	resp, err := client.Check(checkCtx, &grpc_health_v1.HealthCheckRequest{Service: RelayServiceName})
	req.NoError(err)
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())

	status := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(checkCtx, &grpc_health_v1.HealthCheckRequest{Service: RelayServiceName})
		if err != nil {
			return grpc_health_v1.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	// A failing check flips the status, a passing one restores it
	storeDown.Store(true)
	req.Eventually(func() bool {
		return status() == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	storeDown.Store(false)
	req.Eventually(func() bool {
		return status() == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errChan:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		req.Fail("health worker should stop on cancel")
	}
}
