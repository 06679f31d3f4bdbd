package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Registry holds the devices served by the /v1 endpoints.
	Registry *service.Registry

	// MetricsHandler serves /metrics. Nil disables the endpoint.
	MetricsHandler http.Handler

	// Metrics records per-route request counts. Nil disables it.
	Metrics Metrics

	// Logger for request logging.
	Logger *slog.Logger

	// GlobalRateLimit is the rate limit per IP (requests/second). 0 disables it.
	GlobalRateLimit int

	// EnableAudit enables request logging for /v1 requests.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit: 1000,
		EnableAudit:     true,
	}
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Registry, log)

	// Order: Recover -> RequestID -> RateLimit -> Instrument -> Audit -> Handler
	apiMiddlewares := []Middleware{Recover(log), RequestID()}
	if cfg.GlobalRateLimit > 0 {
		apiMiddlewares = append(apiMiddlewares, RateLimit(cfg.GlobalRateLimit, cfg.Metrics))
	}
	if cfg.Metrics != nil {
		apiMiddlewares = append(apiMiddlewares, Instrument(cfg.Metrics))
	}
	if cfg.EnableAudit {
		apiMiddlewares = append(apiMiddlewares, Audit(log))
	}
	apiHandler := Chain(h, apiMiddlewares...)

	mux := http.NewServeMux()

	// Health endpoints are never rate limited.
	healthHandler := Chain(h, Recover(log), RequestID())
	mux.Handle("GET /health", healthHandler)
	mux.Handle("GET /ready", healthHandler)

	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", Chain(cfg.MetricsHandler, Recover(log)))
	}

	mux.Handle("GET /v1/devices", apiHandler)
	mux.Handle("GET /v1/devices/{index}", apiHandler)
	mux.Handle("GET /v1/params", apiHandler)

	return mux
}
