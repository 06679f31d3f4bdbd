package localserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/telemetry/logger"
)

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

// socketPath returns a short path; Unix socket paths are length limited.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "vlt")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "admin.sock")
}

func startServer(t *testing.T, h *Handler) *Server {
	t.Helper()
	srv := New(socketPath(t), h, WithLogger(discardLogger()))
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
	return srv
}

type client struct {
	t    *testing.T
	conn net.Conn
	sc   *bufio.Scanner
}

func dial(t *testing.T, path string) *client {
	t.Helper()
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	return &client{t: t, conn: conn, sc: bufio.NewScanner(conn)}
}

// do sends line and decodes the reply's data into data, if non-nil.
func (c *client) do(line string, data any) Response {
	c.t.Helper()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		c.t.Fatalf("write error = %v", err)
	}
	if !c.sc.Scan() {
		c.t.Fatalf("no reply to %q: %v", line, c.sc.Err())
	}

	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(c.sc.Bytes(), &raw); err != nil {
		c.t.Fatalf("Unmarshal(%s) error = %v", c.sc.Bytes(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			c.t.Fatalf("Unmarshal data error = %v", err)
		}
	}
	return raw.Response
}

func TestServer_Status(t *testing.T) {
	srv := startServer(t, NewHandler(newTestRegistry(t)))
	c := dial(t, srv.Path())

	var st Status
	resp := c.do("status", &st)
	if !resp.OK {
		t.Fatalf("status = %+v", resp)
	}
	if st.Devices != 2 || st.Quantum != 8 || st.Qset != 4 {
		t.Errorf("status = %+v", st)
	}
}

func TestServer_Devices(t *testing.T) {
	registry := newTestRegistry(t)
	dev, _ := registry.Device(1)
	if _, err := dev.Write(context.Background(), 0, []byte("abc")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	srv := startServer(t, NewHandler(registry))
	c := dial(t, srv.Path())

	var stats []service.DeviceStat
	if resp := c.do("devices", &stats); !resp.OK {
		t.Fatalf("devices = %+v", resp)
	}
	if len(stats) != 2 || stats[1].Size != 3 || stats[1].Name != "vault1" {
		t.Errorf("devices = %+v", stats)
	}
}

func TestServer_IoctlIsPrivileged(t *testing.T) {
	registry := newTestRegistry(t)
	srv := startServer(t, NewHandler(registry))
	c := dial(t, srv.Path())

	var res IoctlResult
	if resp := c.do("ioctl T-QUANTUM 16", &res); !resp.OK {
		t.Fatalf("ioctl T-QUANTUM = %+v", resp)
	}
	if got := registry.Params().Quantum(); got != 16 {
		t.Errorf("quantum = %d, want 16", got)
	}

	res = IoctlResult{}
	if resp := c.do("ioctl x-qset 6", &res); !resp.OK {
		t.Fatalf("ioctl X-QSET = %+v", resp)
	}
	if res.Out != 4 || res.Command != "X-QSET" {
		t.Errorf("X-QSET = %+v, want previous 4", res)
	}

	if resp := c.do("ioctl S-QSET", nil); resp.OK || resp.Code != "VT-ARG-4002" {
		t.Errorf("S-QSET without value = %+v, want VT-ARG-4002", resp)
	}
	if resp := c.do("ioctl BOGUS", nil); resp.Code != "VT-CTL-4000" {
		t.Errorf("unknown command = %+v, want VT-CTL-4000", resp)
	}
	if resp := c.do("ioctl T-QSET -1", nil); resp.Code != "VT-ARG-4000" {
		t.Errorf("invalid value = %+v, want VT-ARG-4000", resp)
	}
}

func TestServer_Trim(t *testing.T) {
	registry := newTestRegistry(t)
	dev, _ := registry.Device(0)
	if _, err := dev.Write(context.Background(), 0, []byte("abc")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	srv := startServer(t, NewHandler(registry))
	c := dial(t, srv.Path())

	if resp := c.do("trim 0", nil); !resp.OK {
		t.Fatalf("trim = %+v", resp)
	}
	if dev.Size() != 0 {
		t.Errorf("Size() after trim = %d", dev.Size())
	}
	if resp := c.do("trim 5", nil); resp.Code != "VT-DEV-4040" {
		t.Errorf("trim 5 = %+v, want VT-DEV-4040", resp)
	}
}

func TestServer_LogLevel(t *testing.T) {
	prev := logger.GetLevel()
	t.Cleanup(func() { _ = logger.SetLevel(prev) })

	srv := startServer(t, NewHandler(newTestRegistry(t)))
	c := dial(t, srv.Path())

	var level string
	if resp := c.do("loglevel debug", &level); !resp.OK || level != "debug" {
		t.Fatalf("loglevel debug = %+v, %q", resp, level)
	}
	if resp := c.do("loglevel verbose", nil); resp.Code != "VT-ARG-4000" {
		t.Errorf("loglevel verbose = %+v, want VT-ARG-4000", resp)
	}
}

func TestServer_ShutdownAndReload(t *testing.T) {
	called := make(chan struct{}, 1)
	var reloads atomic.Int32
	h := NewHandler(newTestRegistry(t),
		WithShutdown(func() { called <- struct{}{} }),
		WithReload(func() error { reloads.Add(1); return nil }),
	)
	srv := startServer(t, h)
	c := dial(t, srv.Path())

	if resp := c.do("reload", nil); !resp.OK || reloads.Load() != 1 {
		t.Errorf("reload = %+v, reloads = %d", resp, reloads.Load())
	}
	if resp := c.do("shutdown", nil); !resp.OK {
		t.Fatalf("shutdown = %+v", resp)
	}
	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not called")
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	srv := startServer(t, NewHandler(newTestRegistry(t)))
	c := dial(t, srv.Path())

	if resp := c.do("drain", nil); resp.OK || resp.Code != "VT-SYS-4000" {
		t.Errorf("drain = %+v, want VT-SYS-4000", resp)
	}
	if resp := c.do("reload", nil); resp.Code != "VT-SYS-4000" {
		t.Errorf("reload without hook = %+v, want VT-SYS-4000", resp)
	}
}

func TestServer_SocketLifecycle(t *testing.T) {
	path := socketPath(t)

	// A stale socket from a previous run is replaced.
	stale, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if ul, ok := stale.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	_ = stale.Close()

	srv := New(path, NewHandler(newTestRegistry(t)), WithLogger(discardLogger()))
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() over stale socket error = %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if fi.Mode().Perm() != socketMode {
		t.Errorf("socket mode = %o, want %o", fi.Mode().Perm(), socketMode)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket still exists after Shutdown: %v", err)
	}
}

func TestListen_RefusesRegularFile(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	srv := New(path, NewHandler(newTestRegistry(t)))
	if err := srv.Listen(); err == nil {
		t.Error("Listen() over a regular file succeeded")
	}
}
