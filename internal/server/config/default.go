package config

import (
	"time"

	"github.com/yndnr/vault-go/internal/core/domain"
)

// Default configuration values.
const (
	DefaultNrDevs = 4

	DefaultRESPAddr        = "127.0.0.1:6390"
	DefaultRESPMaxConns    = 1024
	DefaultRESPIdleTimeout = 5 * time.Minute
	DefaultRESPMaxBulk     = 1 << 20
	DefaultLocalSocket     = "/var/run/vault-server/vault-server.sock"
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultShutdownTimeout = 10 * time.Second

	DefaultRateLimit = 1000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Vault: VaultSection{
			NrDevs:  DefaultNrDevs,
			Quantum: domain.DefaultQuantum,
			Qset:    domain.DefaultQset,
		},
		Server: ServerSection{
			RESP: RESPConfig{
				Enabled:     true,
				Addr:        DefaultRESPAddr,
				MaxConns:    DefaultRESPMaxConns,
				IdleTimeout: DefaultRESPIdleTimeout,
				MaxBulk:     DefaultRESPMaxBulk,
			},
			Local: LocalConfig{
				Enabled: true,
				Path:    DefaultLocalSocket,
			},
			HTTP: HTTPConfig{
				Enabled: true,
				Addr:    DefaultHTTPAddr,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Security: SecuritySection{
			RateLimit: DefaultRateLimit,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
