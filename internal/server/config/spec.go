package config

import "time"

// ServerConfig is the root configuration for vault-server.
type ServerConfig struct {
	Vault    VaultSection    `koanf:"vault" json:"vault" yaml:"vault"`
	Server   ServerSection   `koanf:"server" json:"server" yaml:"server"`
	Security SecuritySection `koanf:"security" json:"security" yaml:"security"`
	Log      LogSection      `koanf:"log" json:"log" yaml:"log"`
}

// VaultSection configures the device set. Read once at startup.
type VaultSection struct {
	// Major is the major device number; 0 selects a dynamic one.
	Major int `koanf:"major" json:"major" yaml:"major"`
	// Minor is the minor number of the first device.
	Minor int `koanf:"minor" json:"minor" yaml:"minor"`
	// NrDevs is the number of devices.
	NrDevs int `koanf:"nr_devs" json:"nr_devs" yaml:"nr_devs"`
	// Quantum and Qset are the compiled defaults restored by RESET.
	Quantum int `koanf:"quantum" json:"quantum" yaml:"quantum"`
	Qset    int `koanf:"qset" json:"qset" yaml:"qset"`
	// MaxMemory caps bytes held by all devices together; 0 is unlimited.
	MaxMemory int64 `koanf:"max_memory" json:"max_memory" yaml:"max_memory"`
}

// ServerSection configures the listeners.
type ServerSection struct {
	RESP            RESPConfig    `koanf:"resp" json:"resp" yaml:"resp"`
	Local           LocalConfig   `koanf:"local" json:"local" yaml:"local"`
	HTTP            HTTPConfig    `koanf:"http" json:"http" yaml:"http"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RESPConfig configures the RESP device protocol server.
type RESPConfig struct {
	Enabled     bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr        string        `koanf:"addr" json:"addr" yaml:"addr"`
	MaxConns    int           `koanf:"max_conns" json:"max_conns" yaml:"max_conns"`
	IdleTimeout time.Duration `koanf:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
	// MaxBulk bounds a single READ length or WRITE payload.
	MaxBulk int `koanf:"max_bulk" json:"max_bulk" yaml:"max_bulk"`
}

// LocalConfig configures the privileged management socket.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" json:"path" yaml:"path"`
}

// HTTPConfig configures the status and metrics server.
type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
}

// SecuritySection configures privilege and abuse limits.
type SecuritySection struct {
	// AdminSecretHash is the argon2id hash of the admin secret. Empty
	// disables AUTH; only the local socket is privileged then.
	AdminSecretHash string `koanf:"admin_secret_hash" json:"admin_secret_hash" yaml:"admin_secret_hash"`
	// RateLimit is RESP commands per second per peer; 0 disables it.
	RateLimit int `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
}

// LogSection configures logging. Level is reloaded when the file changes.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}
