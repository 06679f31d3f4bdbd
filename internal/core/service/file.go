package service

import (
	"context"
	"sync"

	"github.com/yndnr/vault-go/internal/core/domain"
)

// File is an open handle on a device. It carries the access mode and
// the current position; the device itself keeps no per-handle state.
type File struct {
	dev  *Device
	mode domain.AccessMode

	mu     sync.Mutex
	pos    int64
	closed bool
}

func newFile(dev *Device, mode domain.AccessMode) *File {
	return &File{dev: dev, mode: mode}
}

// Device returns the underlying device.
func (f *File) Device() *Device { return f.dev }

// Mode returns the access mode the handle was opened with.
func (f *File) Mode() domain.AccessMode { return f.mode }

// Pos returns the current position.
func (f *File) Pos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Read reads up to n bytes at the current position and advances it.
// A short or empty result is not an error.
func (f *File) Read(ctx context.Context, n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, domain.ErrBadHandle
	}
	if !f.mode.CanRead() {
		return nil, domain.ErrAccessMode.WithDetails("read on " + f.mode.String())
	}

	data, err := f.dev.Read(ctx, f.pos, n)
	if err != nil {
		return nil, err
	}
	f.pos += int64(len(data))
	return data, nil
}

// Write writes p at the current position and advances it by the count
// written, which may be short.
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, domain.ErrBadHandle
	}
	if !f.mode.CanWrite() {
		return 0, domain.ErrAccessMode.WithDetails("write on " + f.mode.String())
	}

	n, err := f.dev.Write(ctx, f.pos, p)
	f.pos += int64(n)
	return n, err
}

// Seek moves the position and returns it.
func (f *File) Seek(delta int64, whence domain.Whence) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, domain.ErrBadHandle
	}

	pos, err := f.dev.Seek(f.pos, delta, whence)
	if err != nil {
		return 0, err
	}
	f.pos = pos
	return pos, nil
}

// Control runs a control command. The handle's mode is not consulted.
func (f *File) Control(ctx context.Context, code domain.Code, arg domain.Arg) (int, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()

	if closed {
		return 0, domain.ErrBadHandle
	}
	return f.dev.ctl.Dispatch(ctx, code, arg)
}

// Close releases the handle. Closing twice returns ErrBadHandle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return domain.ErrBadHandle
	}
	f.closed = true
	return f.dev.Release()
}
