// Package main provides the entry point for vault-cli.
//
// vault-cli is the command-line client for vault-server:
//
//   - Device I/O over RESP (cat, write, stat, info)
//   - Control commands (ioctl), privileged with --secret or --local
//   - Inspection over HTTP (devices, params, health)
//   - Local management over the Unix socket (status, admin)
//
// Usage:
//
//	vault-cli cat 0
//	echo hello | vault-cli write 0 -
//	vault-cli --secret "$VAULT_ADMIN_SECRET" ioctl T-QUANTUM 2000
//	vault-cli -o json devices
package main
