// Package logger provides structured logging for the vault server.
//
// It wraps log/slog. Every handler built by New redacts admin secrets
// (vtas_ prefixed values) and values stored under sensitive keys, and
// shares one process-wide level that can be changed at runtime.
//
//   - logger.go: construction, levels and the default logger
//   - context.go: request and connection IDs carried in a context
//   - redact.go: sensitive value masking
package logger
