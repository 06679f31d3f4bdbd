package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/vault-go/internal/core/service"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:8080", "http://localhost:8080"},
		{"with https prefix", "https://localhost:8080", "https://localhost:8080"},
		{"without prefix", "localhost:8080", "http://localhost:8080"},
		{"trailing slash", "localhost:8080/", "http://localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.server)
			if client.BaseURL() != tt.wantPrefix {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), tt.wantPrefix)
			}
		})
	}
}

func TestHTTPClient_Get_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q, want %q", r.Header.Get("User-Agent"), UserAgent)
		}
		if r.URL.Path != "/test/path" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/test/path")
		}
		w.Write([]byte(`{"code":"OK","message":"Success","data":{"status":"ok"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	var data map[string]string
	if err := client.GetData(context.Background(), "/test/path", &data); err != nil {
		t.Fatalf("GetData() error = %v", err)
	}
	if data["status"] != "ok" {
		t.Errorf("status = %q, want ok", data["status"])
	}
}

func TestHTTPClient_Devices(t *testing.T) {
	client := NewHTTPClient(startHTTP(t, newTestRegistry(t)))
	ctx := testContext(t)

	var list struct {
		Devices []service.DeviceStat `json:"devices"`
		Total   int                  `json:"total"`
	}
	if err := client.GetData(ctx, "/v1/devices", &list); err != nil {
		t.Fatalf("GetData() error = %v", err)
	}
	if list.Total != 2 || len(list.Devices) != 2 {
		t.Errorf("devices = %+v", list)
	}
}

func TestParseResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "enveloped error",
			status:  http.StatusNotFound,
			body:    `{"code":"VT-DEV-4040","message":"no such device","details":"device 9"}`,
			wantErr: "[VT-DEV-4040] no such device: device 9",
		},
		{
			name:    "plain error",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: "request failed with status 502",
		},
		{
			name:    "malformed success",
			status:  http.StatusOK,
			body:    `{`,
			wantErr: "parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(tt.status)
			rec.WriteString(tt.body)

			err := ParseResponse(rec.Result(), nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseResponse() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
