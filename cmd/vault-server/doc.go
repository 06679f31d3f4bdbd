// Package main provides the entry point for vault-server.
//
// The server holds a fixed set of in-memory vault devices and exposes them
// through:
//
//   - RESP (Redis protocol) for device I/O and control commands
//   - HTTP for health checks, device statistics and Prometheus metrics
//   - Local Unix socket for privileged management (no secret required)
//
// Usage:
//
//	vault-server [flags]
//	vault-server -config /etc/vault-server/config.yaml
//	vault-server -set vault.nr_devs=8 -set log.level=debug
//
// The server loads configuration, creates the devices and starts all
// configured listeners. Only log.level is reloaded when the configuration
// file changes.
package main
