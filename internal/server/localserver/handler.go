package localserver

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/core/service"
	"github.com/yndnr/vault-go/internal/infra/buildinfo"
	"github.com/yndnr/vault-go/internal/telemetry/logger"
)

// Response is one reply line.
type Response struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Status is the reply to "status".
type Status struct {
	Version       string `json:"version" yaml:"version"`
	Commit        string `json:"commit" yaml:"commit"`
	GoVersion     string `json:"go_version" yaml:"go_version"`
	UptimeSeconds int64  `json:"uptime_seconds" yaml:"uptime_seconds"`
	Devices       int    `json:"devices" yaml:"devices"`
	Major         int    `json:"major" yaml:"major"`
	Quantum       int    `json:"quantum" yaml:"quantum"`
	Qset          int    `json:"qset" yaml:"qset"`
	MemoryUsed    int64  `json:"memory_used" yaml:"memory_used"`
	MemoryLimit   int64  `json:"memory_limit" yaml:"memory_limit"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
}

// IoctlResult is the reply to "ioctl".
type IoctlResult struct {
	Command string `json:"command" yaml:"command"`
	Result  int    `json:"result" yaml:"result"`
	Out     int    `json:"out" yaml:"out"`
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithShutdown sets the function "shutdown" calls.
func WithShutdown(fn func()) HandlerOption {
	return func(h *Handler) { h.shutdown = fn }
}

// WithReload sets the function "reload" calls.
func WithReload(fn func() error) HandlerOption {
	return func(h *Handler) { h.reload = fn }
}

// Handler handles local management commands.
type Handler struct {
	registry *service.Registry
	started  time.Time
	shutdown func()
	reload   func() error
}

// NewHandler creates a new Handler.
func NewHandler(registry *service.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: registry,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute executes a local management command.
func (h *Handler) Execute(ctx context.Context, cmd string, args []string) Response {
	ctx = domain.WithCredentials(ctx, domain.Credentials{Privileged: true, Peer: "local"})

	var (
		data any
		err  error
	)
	switch strings.ToLower(cmd) {
	case "status":
		data = h.handleStatus()
	case "devices":
		data, err = h.registry.Stats(ctx)
	case "ioctl":
		data, err = h.handleIoctl(ctx, args)
	case "trim":
		err = h.handleTrim(ctx, args)
	case "loglevel":
		data, err = h.handleLogLevel(args)
	case "reload":
		err = h.handleReload()
	case "shutdown":
		err = h.handleShutdown()
	default:
		err = domain.ErrBadRequest.WithDetails("unknown command: " + cmd)
	}

	if err != nil {
		return errorResponse(err)
	}
	return Response{OK: true, Data: data}
}

func errorResponse(err error) Response {
	var de *domain.DomainError
	if errors.As(err, &de) {
		msg := de.Message
		if de.Details != "" {
			msg += ": " + de.Details
		}
		return Response{Code: de.Code, Message: msg}
	}
	return Response{Code: domain.ErrInternal.Code, Message: err.Error()}
}

func (h *Handler) handleStatus() Status {
	bi := buildinfo.Get()
	quantum, qset := h.registry.Params().Snapshot()
	budget := h.registry.Budget()

	return Status{
		Version:       bi.Version,
		Commit:        bi.Commit,
		GoVersion:     bi.GoVersion,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Devices:       h.registry.Len(),
		Major:         h.registry.Major(),
		Quantum:       quantum,
		Qset:          qset,
		MemoryUsed:    budget.Used(),
		MemoryLimit:   budget.Limit(),
		LogLevel:      logger.GetLevel(),
	}
}

func (h *Handler) handleIoctl(ctx context.Context, args []string) (IoctlResult, error) {
	if len(args) < 1 || len(args) > 2 {
		return IoctlResult{}, domain.ErrBadRequest.WithDetails("usage: ioctl <command> [value]")
	}
	code, err := domain.LookupCode(args[0])
	if err != nil {
		return IoctlResult{}, err
	}

	var v int
	if len(args) == 2 {
		if v, err = strconv.Atoi(args[1]); err != nil {
			return IoctlResult{}, domain.ErrInvalidArgument.WithDetails("value is not an integer")
		}
	}
	arg, out := domain.BindArg(code, v, len(args) == 2)

	ret, err := h.registry.Controller().Dispatch(ctx, code, arg)
	if err != nil {
		return IoctlResult{}, err
	}

	res := IoctlResult{Result: ret, Out: *out}
	if cmd, err := domain.Decode(code, arg); err == nil {
		res.Command = cmd.Name()
	}
	return res, nil
}

func (h *Handler) handleTrim(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return domain.ErrBadRequest.WithDetails("usage: trim <dev>")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return domain.ErrInvalidArgument.WithDetails("device is not an integer")
	}
	dev, err := h.registry.Device(i)
	if err != nil {
		return err
	}
	return dev.Trim(ctx)
}

func (h *Handler) handleLogLevel(args []string) (string, error) {
	switch len(args) {
	case 0:
	case 1:
		if err := logger.SetLevel(args[0]); err != nil {
			return "", domain.ErrInvalidArgument.WithCause(err).WithDetails(args[0])
		}
	default:
		return "", domain.ErrBadRequest.WithDetails("usage: loglevel [level]")
	}
	return logger.GetLevel(), nil
}

func (h *Handler) handleReload() error {
	if h.reload == nil {
		return domain.ErrBadRequest.WithDetails("reload is not available")
	}
	if err := h.reload(); err != nil {
		return domain.ErrInternal.WithCause(err).WithDetails(err.Error())
	}
	return nil
}

func (h *Handler) handleShutdown() error {
	if h.shutdown == nil {
		return domain.ErrBadRequest.WithDetails("shutdown is not available")
	}
	go h.shutdown()
	return nil
}
