package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
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

type recordingMetrics struct {
	mu          sync.Mutex
	requests    map[string]int
	rateLimited int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{requests: make(map[string]int)}
}

func (m *recordingMetrics) RecordRequest(surface, command, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[surface+" "+command+" "+status]++
}

func (m *recordingMetrics) ObserveRequestDuration(string, string, float64) {}

func (m *recordingMetrics) RecordRateLimited(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRouter_Routes(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "vault_devices 2\n")
	})
	router := NewRouter(&RouterConfig{
		Registry:       newTestRegistry(t),
		MetricsHandler: metricsHandler,
		Logger:         discardLogger(),
	})

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/v1/devices", http.StatusOK},
		{"/v1/devices/0", http.StatusOK},
		{"/v1/devices/9", http.StatusNotFound},
		{"/v1/params", http.StatusOK},
		{"/v1/sessions", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, router, tt.path)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d: %s", tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestNewRouter_NoMetricsHandler(t *testing.T) {
	router := NewRouter(&RouterConfig{Registry: newTestRegistry(t), Logger: discardLogger()})
	if rec := get(t, router, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	router := NewRouter(&RouterConfig{Registry: newTestRegistry(t), Logger: discardLogger()})

	rec := get(t, router, "/health")
	if id := rec.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req-") || len(id) != 4+26 {
		t.Errorf("generated X-Request-ID = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/params", nil)
	req.Header.Set("X-Request-ID", "req-client")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Request-ID"); id != "req-client" {
		t.Errorf("X-Request-ID = %q, want the client's", id)
	}
	if !strings.Contains(rec.Body.String(), `"request_id":"req-client"`) {
		t.Errorf("body does not carry request id: %s", rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	metrics := newRecordingMetrics()
	router := NewRouter(&RouterConfig{
		Registry:        newTestRegistry(t),
		Metrics:         metrics,
		Logger:          discardLogger(),
		GlobalRateLimit: 2,
	})

	for i := 0; i < 2; i++ {
		if rec := get(t, router, "/v1/params"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := get(t, router, "/v1/params")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-Error-Code") != "VT-SYS-4290" {
		t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
	}
	if metrics.rateLimited != 1 {
		t.Errorf("rateLimited = %d, want 1", metrics.rateLimited)
	}

	// Health checks are not limited.
	if rec := get(t, router, "/health"); rec.Code != http.StatusOK {
		t.Errorf("GET /health while limited = %d", rec.Code)
	}
}

func TestInstrument(t *testing.T) {
	metrics := newRecordingMetrics()
	router := NewRouter(&RouterConfig{
		Registry: newTestRegistry(t),
		Metrics:  metrics,
		Logger:   discardLogger(),
	})

	get(t, router, "/v1/devices/1")
	get(t, router, "/v1/devices/7")

	if got := metrics.requests["http GET /v1/devices/{index} 200"]; got != 1 {
		t.Errorf("200 count = %d, requests = %v", got, metrics.requests)
	}
	if got := metrics.requests["http GET /v1/devices/{index} 404"]; got != 1 {
		t.Errorf("404 count = %d, requests = %v", got, metrics.requests)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(discardLogger()), RequestID())

	rec := get(t, h, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "VT-SYS-5000") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "10.0.0.1:1234", nil, "10.0.0.1"},
		{"ipv6", "[::1]:8080", nil, "::1"},
		{"forwarded", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "1.2.3.4"},
		{"real ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_Shutdown(t *testing.T) {
	s := New("127.0.0.1:0", NewRouter(&RouterConfig{Registry: newTestRegistry(t), Logger: discardLogger()}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	errChan := make(chan error, 1)
	go func() { errChan <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Serve returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}
