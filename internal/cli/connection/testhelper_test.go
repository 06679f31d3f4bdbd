package connection

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/server/httpserver/handler"
	"github.com/yndnr/vault-go/internal/server/localserver"
	"github.com/yndnr/vault-go/internal/server/redisserver"
)

const testSecret = "vtas_cli-test-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) *service.Registry {
	t.Helper()
	r, err := service.NewRegistry(2, domain.NewParams(8, 4), service.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// startRESP serves the device protocol on a loopback port.
func startRESP(t *testing.T, registry *service.Registry) string {
	t.Helper()

	hash, err := domain.HashSecret(testSecret)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	cfg := redisserver.DefaultConfig()
	cfg.AdminSecretHash = hash

	srv := redisserver.New(cfg, registry, redisserver.WithLogger(discardLogger()))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
		cancel()
		<-done
	})
	return ln.Addr().String()
}

// startLocal serves the management socket in a short temp dir.
func startLocal(t *testing.T, registry *service.Registry) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "vlt")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	srv := localserver.New(filepath.Join(dir, "admin.sock"), localserver.NewHandler(registry),
		localserver.WithLogger(discardLogger()))
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
		cancel()
		<-done
	})
	return srv.Path()
}

// startHTTP serves the inspection API.
func startHTTP(t *testing.T, registry *service.Registry) string {
	t.Helper()
	ts := httptest.NewServer(handler.New(registry, discardLogger()))
	t.Cleanup(ts.Close)
	return ts.URL
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
