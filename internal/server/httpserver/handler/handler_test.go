package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/storage/memory"
)

func newTestHandler(t *testing.T) (*Handler, *service.Registry) {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := service.NewRegistry(3, domain.NewParams(8, 4),
		service.WithLogger(discard),
		service.WithMemoryBudget(memory.NewBudget(1024)),
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = registry.Close() })
	return New(registry, discard), registry
}

func do(t *testing.T, h http.Handler, path string, data any) (*httptest.ResponseRecorder, *Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Request-ID", "req-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("Unmarshal data error = %v", err)
		}
	}
	return rec, &raw.Response
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, path := range []string{"/health", "/ready"} {
		rec, resp := do(t, h, path, nil)
		if rec.Code != http.StatusOK || resp.Code != "OK" {
			t.Errorf("GET %s = %d %+v", path, rec.Code, resp)
		}
		if resp.RequestID != "req-test" {
			t.Errorf("GET %s request_id = %q", path, resp.RequestID)
		}
	}
}

func TestHandler_ListDevices(t *testing.T) {
	h, registry := newTestHandler(t)
	dev, _ := registry.Device(2)
	if _, err := dev.Write(context.Background(), 8, []byte("xyz")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var body ListDevicesResponse
	rec, _ := do(t, h, "/v1/devices", &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body.Total != 3 || len(body.Devices) != 3 {
		t.Fatalf("devices = %+v", body)
	}
	if got := body.Devices[2]; got.Size != 11 || got.Segments != 1 || got.Name != "vault2" {
		t.Errorf("device 2 = %+v", got)
	}
}

func TestHandler_GetDevice(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"found", "/v1/devices/1", http.StatusOK, "OK"},
		{"out of range", "/v1/devices/3", http.StatusNotFound, "VT-DEV-4040"},
		{"not a number", "/v1/devices/abc", http.StatusBadRequest, "VT-ARG-4000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st service.DeviceStat
			rec, resp := do(t, h, tt.path, &st)
			if rec.Code != tt.wantStatus || resp.Code != tt.wantCode {
				t.Fatalf("GET %s = %d %s, want %d %s", tt.path, rec.Code, resp.Code, tt.wantStatus, tt.wantCode)
			}
			if tt.wantStatus == http.StatusOK && (st.Index != 1 || st.Capacity != 32) {
				t.Errorf("stat = %+v", st)
			}
			if tt.wantStatus != http.StatusOK && rec.Header().Get("X-Error-Code") != tt.wantCode {
				t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
			}
		})
	}
}

func TestHandler_Params(t *testing.T) {
	h, registry := newTestHandler(t)
	registry.Params().SetQuantum(16)

	var p ParamsResponse
	rec, _ := do(t, h, "/v1/params", &p)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := ParamsResponse{
		Quantum:        16,
		Qset:           4,
		DefaultQuantum: 8,
		DefaultQset:    4,
		Major:          domain.DynamicMajor,
		NrDevs:         3,
		MemoryLimit:    1024,
	}
	if p != want {
		t.Errorf("params = %+v, want %+v", p, want)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"VT-DEV-4040", http.StatusNotFound},
		{"VT-AUTH-4030", http.StatusForbidden},
		{"VT-DEV-4031", http.StatusForbidden},
		{"VT-AUTH-4010", http.StatusUnauthorized},
		{"VT-SYS-4290", http.StatusTooManyRequests},
		{"VT-DEV-4090", http.StatusConflict},
		{"VT-SYS-4990", http.StatusServiceUnavailable},
		{"VT-ARG-4002", http.StatusBadRequest},
		{"VT-CTL-4000", http.StatusBadRequest},
		{"VT-SYS-4000", http.StatusBadRequest},
		{"VT-SYS-5070", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
