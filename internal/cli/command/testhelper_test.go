package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
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

// testEnv is one registry served on all three surfaces.
type testEnv struct {
	registry *service.Registry
	resp     string
	http     string
	socket   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry, err := service.NewRegistry(2, domain.NewParams(8, 4), service.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = registry.Close() })

	env := &testEnv{registry: registry}
	env.resp = startRESP(t, registry)
	env.socket = startLocal(t, registry)

	ts := httptest.NewServer(handler.New(registry, discardLogger()))
	t.Cleanup(ts.Close)
	env.http = ts.URL
	return env
}

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

func startLocal(t *testing.T, registry *service.Registry) string {
	t.Helper()

	// Unix socket paths are length limited; t.TempDir can be too long.
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

// run executes vault-cli against env and returns its stdout.
func (env *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)

	full := []string{
		"vault-cli",
		"--server", env.resp,
		"--http", env.http,
		"--socket", env.socket,
		"--timeout", "10s",
	}
	err := app.Run(append(full, args...))
	return out.String(), err
}

// mustRun is run that fails the test on error.
func (env *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, "", args...)
	if err != nil {
		t.Fatalf("vault-cli %s: %v", strings.Join(args, " "), err)
	}
	return out
}
