package handler

import (
	"time"

	"github.com/yndnr/vault-go/internal/core/service"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ListDevicesResponse is the response body for GET /v1/devices.
type ListDevicesResponse struct {
	Devices []service.DeviceStat `json:"devices" yaml:"devices"`
	Total   int                  `json:"total" yaml:"total"`
}

// ParamsResponse is the response body for GET /v1/params.
type ParamsResponse struct {
	Quantum        int   `json:"quantum" yaml:"quantum"`
	Qset           int   `json:"qset" yaml:"qset"`
	DefaultQuantum int   `json:"default_quantum" yaml:"default_quantum"`
	DefaultQset    int   `json:"default_qset" yaml:"default_qset"`
	Major          int   `json:"major" yaml:"major"`
	NrDevs         int   `json:"nr_devs" yaml:"nr_devs"`
	MemoryUsed     int64 `json:"memory_used" yaml:"memory_used"`
	MemoryLimit    int64 `json:"memory_limit" yaml:"memory_limit"`
}
