// Package config defines the vault-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets before logging
//
// Values are loaded through internal/infra/confloader.
package config
