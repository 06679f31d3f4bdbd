// Package handler provides the HTTP request handlers of vault-server.
//
// The HTTP surface is read-only:
//
//   - health.go: liveness and readiness checks
//   - devices.go: device statistics and sizing parameters
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate the path
//   - Call the device registry
//   - Format and return the response envelope
//   - Map domain errors to HTTP status codes
package handler
