package service

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/yndnr/vault-go/internal/core/domain"
	"github.com/yndnr/vault-go/internal/storage/memory"
)

// DeviceStat is a point-in-time view of a device.
type DeviceStat struct {
	Index    int           `json:"index" yaml:"index"`
	Name     string        `json:"name" yaml:"name"`
	DevNum   domain.DevNum `json:"devnum" yaml:"devnum"`
	Size     int64         `json:"size" yaml:"size"`
	Quantum  int           `json:"quantum" yaml:"quantum"`
	Qset     int           `json:"qset" yaml:"qset"`
	Capacity int64         `json:"capacity" yaml:"capacity" table:"wide"`
	Segments int           `json:"segments" yaml:"segments" table:"wide"`
	Resident int64         `json:"resident_bytes" yaml:"resident_bytes" table:"wide"`
}

// Device couples one sparse store with its size under a single lock.
type Device struct {
	index  int
	devNum domain.DevNum

	params   *domain.Params
	ctl      *Controller
	observer Observer
	logger   *slog.Logger

	// sem guards store and size. Weight 1, acquired per call.
	sem   *semaphore.Weighted
	store *memory.Store
	// size is written only under sem; Seek reads it without the lock.
	size atomic.Int64
}

func newDevice(index int, devNum domain.DevNum, params *domain.Params, budget *memory.Budget,
	ctl *Controller, observer Observer, logger *slog.Logger) *Device {
	quantum, qset := params.Snapshot()
	return &Device{
		index:    index,
		devNum:   devNum,
		params:   params,
		ctl:      ctl,
		observer: observer,
		logger:   logger.With("device", domain.DeviceName(index)),
		sem:      semaphore.NewWeighted(1),
		store:    memory.New(quantum, qset, memory.WithBudget(budget)),
	}
}

// Index returns the device's registry index.
func (d *Device) Index() int { return d.index }

// Name returns the device node name.
func (d *Device) Name() string { return domain.DeviceName(d.index) }

// DevNum returns the device number.
func (d *Device) DevNum() domain.DevNum { return d.devNum }

// Size returns the current size without taking the lock.
func (d *Device) Size() int64 { return d.size.Load() }

func (d *Device) lock(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.observer.ObserveInterrupted(d.index)
		return domain.ErrInterrupted.WithCause(err)
	}
	return nil
}

func (d *Device) unlock() {
	d.sem.Release(1)
}

// Open prepares the device for a new handle. A write-only open
// truncates the device.
func (d *Device) Open(ctx context.Context, mode domain.AccessMode) error {
	if mode != domain.WriteOnly {
		return nil
	}
	return d.Trim(ctx)
}

// Release is called when a handle is closed. Devices live for the whole
// process, so there is nothing to drop.
func (d *Device) Release() error {
	return nil
}

// Read returns up to n bytes at off. It returns no bytes and no error at
// or past the end of data, and never crosses a segment boundary.
func (d *Device) Read(ctx context.Context, off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 {
		return nil, domain.ErrInvalidArgument
	}

	if err := d.lock(ctx); err != nil {
		return nil, err
	}
	defer d.unlock()

	size := d.size.Load()
	if off >= size {
		return nil, nil
	}
	if int64(n) > size-off {
		n = int(size - off)
	}

	data := d.store.Read(off, n)
	d.observer.ObserveRead(d.index, len(data))
	return data, nil
}

// Write stores as much of p at off as fits in one segment and returns the
// count. Zero bytes with no error means off is beyond capacity.
func (d *Device) Write(ctx context.Context, off int64, p []byte) (int, error) {
	if off < 0 {
		return 0, domain.ErrInvalidArgument
	}

	if err := d.lock(ctx); err != nil {
		return 0, err
	}
	defer d.unlock()

	n, err := d.store.Write(off, p)
	if end := off + int64(n); n > 0 && end > d.size.Load() {
		d.size.Store(end)
	}

	d.observer.ObserveWrite(d.index, n, err)
	if err != nil {
		d.logger.Warn("segment allocation failed", "offset", off, "error", err)
	}
	return n, err
}

// Trim frees all data and re-reads quantum/qset from the shared Params.
func (d *Device) Trim(ctx context.Context) error {
	if err := d.lock(ctx); err != nil {
		return err
	}
	defer d.unlock()

	d.trimLocked()
	return nil
}

func (d *Device) trimLocked() {
	quantum, qset := d.params.Snapshot()
	d.store.Trim(quantum, qset)
	d.size.Store(0)

	d.observer.ObserveTrim(d.index)
	d.logger.Debug("device trimmed", "quantum", quantum, "qset", qset)
}

// Seek computes a new position from pos, delta and whence. SeekEnd uses
// an unlocked snapshot of the size. The caller stores the result.
func (d *Device) Seek(pos, delta int64, whence domain.Whence) (int64, error) {
	var newPos int64
	switch whence {
	case domain.SeekSet:
		newPos = delta
	case domain.SeekCur:
		newPos = pos + delta
	case domain.SeekEnd:
		newPos = d.size.Load() + delta
	default:
		return 0, domain.ErrInvalidArgument.WithDetails("unknown whence")
	}

	if newPos < 0 {
		return 0, domain.ErrInvalidArgument.WithDetails("negative position")
	}
	return newPos, nil
}

// Control runs a control command on behalf of this device's caller.
func (d *Device) Control(ctx context.Context, cmd domain.Command) (int, error) {
	return d.ctl.Execute(ctx, cmd)
}

// Stat returns a consistent snapshot of the device.
func (d *Device) Stat(ctx context.Context) (DeviceStat, error) {
	if err := d.lock(ctx); err != nil {
		return DeviceStat{}, err
	}
	defer d.unlock()

	return DeviceStat{
		Index:    d.index,
		Name:     d.Name(),
		DevNum:   d.devNum,
		Size:     d.size.Load(),
		Quantum:  d.store.Quantum(),
		Qset:     d.store.Qset(),
		Capacity: d.store.Capacity(),
		Segments: d.store.Allocated(),
		Resident: d.store.Resident(),
	}, nil
}

// close frees every segment. Used by Registry.Close.
func (d *Device) close() {
	// Shutdown waits for in-flight operations; it is not interruptible.
	_ = d.sem.Acquire(context.Background(), 1)
	defer d.unlock()

	d.trimLocked()
}
