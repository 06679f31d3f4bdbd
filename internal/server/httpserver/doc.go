// Package httpserver provides the HTTP server of vault-server.
//
// The HTTP surface is read-only and intended for operators and scrapers:
//
//   - Health endpoints: /health, /ready
//   - Metrics: /metrics (Prometheus exposition format)
//   - Devices: /v1/devices, /v1/devices/{index}
//   - Parameters: /v1/params
//
// Features:
//
//   - Middleware chain: Recover, RequestID, RateLimit, Instrument, Audit
//   - Graceful shutdown with configurable timeout
//   - Prometheus metrics integration
package httpserver
