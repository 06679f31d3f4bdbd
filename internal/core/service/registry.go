package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/storage/memory"
)

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	major     int
	minorBase int
	budget    *memory.Budget
	observer  Observer
	logger    *slog.Logger
}

// WithMajor sets the major number. 0 selects DynamicMajor.
func WithMajor(major int) RegistryOption {
	return func(o *registryOptions) { o.major = major }
}

// WithMinorBase sets the minor number of device 0.
func WithMinorBase(minor int) RegistryOption {
	return func(o *registryOptions) { o.minorBase = minor }
}

// WithMemoryBudget caps the bytes all devices may hold together.
func WithMemoryBudget(b *memory.Budget) RegistryOption {
	return func(o *registryOptions) { o.budget = b }
}

// WithObserver sets the operation observer.
func WithObserver(obs Observer) RegistryOption {
	return func(o *registryOptions) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(o *registryOptions) { o.logger = l }
}

// Registry is the fixed set of devices created at startup.
type Registry struct {
	devices []*Device
	major   int
	params  *domain.Params
	budget  *memory.Budget
	ctl     *Controller
	logger  *slog.Logger
}

// NewRegistry creates n devices, each snapshotting params.
func NewRegistry(n int, params *domain.Params, opts ...RegistryOption) (*Registry, error) {
	if n < 0 {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("device count %d", n))
	}
	if params == nil {
		params = domain.DefaultParams()
	}

	o := registryOptions{
		observer: NopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.major == 0 {
		o.major = domain.DynamicMajor
	}

	r := &Registry{
		devices: make([]*Device, n),
		major:   o.major,
		params:  params,
		budget:  o.budget,
		ctl:     NewController(params, o.observer, o.logger),
		logger:  o.logger,
	}
	for i := range r.devices {
		r.devices[i] = newDevice(i, domain.MkDev(o.major, o.minorBase+i), params, o.budget,
			r.ctl, o.observer, o.logger)
	}

	o.logger.Info("devices registered", "count", n, "major", o.major, "minor_base", o.minorBase,
		"params", params.String())
	return r, nil
}

// Len returns the number of devices.
func (r *Registry) Len() int { return len(r.devices) }

// Major returns the major number in use.
func (r *Registry) Major() int { return r.major }

// Params returns the shared sizing parameters.
func (r *Registry) Params() *domain.Params { return r.params }

// Budget returns the memory budget, or nil if unbounded.
func (r *Registry) Budget() *memory.Budget { return r.budget }

// Controller returns the control command dispatcher.
func (r *Registry) Controller() *Controller { return r.ctl }

// Device returns device i.
func (r *Registry) Device(i int) (*Device, error) {
	if i < 0 || i >= len(r.devices) {
		return nil, domain.ErrDeviceNotFound.WithDetails(domain.DeviceName(i))
	}
	return r.devices[i], nil
}

// Devices returns all devices in index order.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Open opens device i with mode and returns a positioned handle.
func (r *Registry) Open(ctx context.Context, i int, mode domain.AccessMode) (*File, error) {
	dev, err := r.Device(i)
	if err != nil {
		return nil, err
	}
	if err := dev.Open(ctx, mode); err != nil {
		return nil, err
	}
	return newFile(dev, mode), nil
}

// Stats returns a snapshot of every device.
func (r *Registry) Stats(ctx context.Context) ([]DeviceStat, error) {
	out := make([]DeviceStat, 0, len(r.devices))
	for _, dev := range r.devices {
		st, err := dev.Stat(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Close frees every device's storage.
func (r *Registry) Close() error {
	for _, dev := range r.devices {
		dev.close()
	}
	r.logger.Info("devices released", "count", len(r.devices))
	return nil
}
