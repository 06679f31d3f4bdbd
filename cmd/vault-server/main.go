package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/infra/buildinfo"
	"github.com/yndnr/vault-go/internal/infra/confloader"
	"github.com/yndnr/vault-go/internal/infra/shutdown"
	"github.com/yndnr/vault-go/internal/server/config"
	"github.com/yndnr/vault-go/internal/server/httpserver"
	"github.com/yndnr/vault-go/internal/server/localserver"
	"github.com/yndnr/vault-go/internal/server/redisserver"
	"github.com/yndnr/vault-go/internal/storage/memory"
	"github.com/yndnr/vault-go/internal/telemetry/logger"
	"github.com/yndnr/vault-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// overrideFlag collects repeated -set key=value flags.
type overrideFlag map[string]any

func (o overrideFlag) String() string {
	parts := make([]string, 0, len(o))
	for k, v := range o {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (o overrideFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	o[key] = value
	return nil
}

func run() error {
	overrides := overrideFlag{}
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Var(overrides, "set", "Override a configuration key (key=value, repeatable)")
	flag.Parse()

	if *showVersion {
		fmt.Println("vault-server " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	bi := buildinfo.Get()
	log.Info("starting vault-server",
		"version", bi.Version,
		"commit", bi.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()

	registry, err := initRegistry(cfg, metrics, slogLogger)
	if err != nil {
		return fmt.Errorf("init devices: %w", err)
	}
	metrics.MustRegister(metric.NewCollector(registry))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, slogLogger)

	// Hooks run in reverse order: listeners first, devices last.
	shutdownHandler.OnShutdown("devices", func(context.Context) error {
		return registry.Close()
	})

	reload := func() error {
		return reloadConfig(*configFile, overrides)
	}

	if cfg.Server.RESP.Enabled {
		respServer := redisserver.New(&redisserver.Config{
			Addr:            cfg.Server.RESP.Addr,
			IdleTimeout:     cfg.Server.RESP.IdleTimeout,
			MaxConns:        cfg.Server.RESP.MaxConns,
			MaxBulk:         cfg.Server.RESP.MaxBulk,
			RateLimit:       cfg.Security.RateLimit,
			AdminSecretHash: cfg.Security.AdminSecretHash,
		}, registry,
			redisserver.WithLogger(slogLogger),
			redisserver.WithMetrics(metrics),
		)
		g.Go(func() error {
			if err := respServer.ListenAndServe(gctx); err != nil {
				return fmt.Errorf("resp server: %w", err)
			}
			return nil
		})
		shutdownHandler.OnShutdown("resp", respServer.Shutdown)
	}

	if cfg.Server.HTTP.Enabled {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Registry:        registry,
			MetricsHandler:  metrics.Handler(),
			Metrics:         metrics,
			Logger:          slogLogger,
			GlobalRateLimit: cfg.Security.RateLimit,
			EnableAudit:     true,
		})
		httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)
		g.Go(func() error {
			log.Info("http server listening", "address", cfg.Server.HTTP.Addr)
			if err := httpServer.ListenAndServe(); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		shutdownHandler.OnShutdown("http", httpServer.Shutdown)
	}

	if cfg.Server.Local.Enabled {
		localHandler := localserver.NewHandler(registry,
			localserver.WithShutdown(stop),
			localserver.WithReload(reload),
		)
		localServer := localserver.New(cfg.Server.Local.Path, localHandler, localserver.WithLogger(slogLogger))
		g.Go(func() error {
			if err := localServer.ListenAndServe(gctx); err != nil {
				return fmt.Errorf("local server: %w", err)
			}
			return nil
		})
		shutdownHandler.OnShutdown("local", localServer.Shutdown)
	}

	if *configFile != "" {
		watcher, err := startWatcher(*configFile, reload, slogLogger)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
			shutdownHandler.OnShutdown("watcher", func(context.Context) error {
				return watcher.Close()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop",
		"devices", registry.Len(),
		"major", registry.Major())

	// Wait returns on a signal, on a "shutdown" from the local socket, or
	// when a listener fails and cancels gctx.
	shutdownErr := shutdownHandler.Wait(gctx)
	stop()

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return errors.Join(err, shutdownErr)
	}
	if shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		return shutdownErr
	}

	log.Info("server stopped gracefully")
	return nil
}

func newLoader(configFile string, overrides map[string]any) *confloader.Loader {
	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads configuration from file, environment and flags.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	if err := newLoader(configFile, overrides).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// reloadConfig re-reads the configuration and applies the keys that may
// change at runtime. Everything else keeps its startup value.
func reloadConfig(configFile string, overrides map[string]any) error {
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return err
	}

	prev := logger.GetLevel()
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	logger.Info("configuration reloaded", "log_level", logger.GetLevel(), "previous_log_level", prev)
	return nil
}

func startWatcher(configFile string, reload func() error, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		if err := reload(); err != nil {
			log.Warn("config reload failed, keeping current settings", "file", path, "error", err)
		}
	})
	return watcher, nil
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}

// initRegistry creates the devices.
func initRegistry(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) (*service.Registry, error) {
	params := domain.NewParams(cfg.Vault.Quantum, cfg.Vault.Qset)

	return service.NewRegistry(cfg.Vault.NrDevs, params,
		service.WithMajor(cfg.Vault.Major),
		service.WithMinorBase(cfg.Vault.Minor),
		service.WithMemoryBudget(memory.NewBudget(cfg.Vault.MaxMemory)),
		service.WithObserver(metrics),
		service.WithLogger(log),
	)
}
