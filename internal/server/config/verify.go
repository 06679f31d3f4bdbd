package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/telemetry/logger"
)

// Verify validates the configuration and returns every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyVault(&cfg.Vault),
		verifyServer(&cfg.Server),
		verifySecurity(&cfg.Security),
		verifyLog(&cfg.Log),
	)
}

func verifyVault(cfg *VaultSection) error {
	var errs []error
	if cfg.Major < 0 || cfg.Major > 4095 {
		errs = append(errs, fmt.Errorf("vault.major must be in [0, 4095], got %d", cfg.Major))
	}
	if cfg.Minor < 0 || cfg.Minor+cfg.NrDevs > 1<<20 {
		errs = append(errs, fmt.Errorf("vault.minor %d leaves no room for %d devices", cfg.Minor, cfg.NrDevs))
	}
	if cfg.NrDevs < 0 {
		errs = append(errs, fmt.Errorf("vault.nr_devs must not be negative, got %d", cfg.NrDevs))
	}
	if err := domain.ValidateValue(domain.FieldQuantum, cfg.Quantum); err != nil {
		errs = append(errs, fmt.Errorf("vault.quantum: %w", err))
	}
	if err := domain.ValidateValue(domain.FieldQset, cfg.Qset); err != nil {
		errs = append(errs, fmt.Errorf("vault.qset: %w", err))
	}
	if cfg.MaxMemory < 0 {
		errs = append(errs, fmt.Errorf("vault.max_memory must not be negative, got %d", cfg.MaxMemory))
	}
	return errors.Join(errs...)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if cfg.RESP.Enabled {
		if err := verifyAddr("server.resp.addr", cfg.RESP.Addr); err != nil {
			errs = append(errs, err)
		}
		if cfg.RESP.MaxConns < 1 {
			errs = append(errs, errors.New("server.resp.max_conns must be at least 1"))
		}
		if cfg.RESP.MaxBulk < 1 {
			errs = append(errs, errors.New("server.resp.max_bulk must be at least 1"))
		}
	}
	if cfg.HTTP.Enabled {
		if err := verifyAddr("server.http.addr", cfg.HTTP.Addr); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Local.Enabled && cfg.Local.Path == "" {
		errs = append(errs, errors.New("server.local.path is required when the local socket is enabled"))
	}
	if cfg.RESP.Enabled && cfg.HTTP.Enabled && cfg.RESP.Addr == cfg.HTTP.Addr {
		errs = append(errs, fmt.Errorf("server.resp.addr and server.http.addr both use %s", cfg.RESP.Addr))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func verifyAddr(key, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	var errs []error
	if cfg.AdminSecretHash != "" && !strings.HasPrefix(cfg.AdminSecretHash, "$argon2id$") {
		errs = append(errs, errors.New("security.admin_secret_hash must be an argon2id hash"))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, errors.New("security.rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
		return nil
	}
	return fmt.Errorf("log.format: unknown format %q", cfg.Format)
}
