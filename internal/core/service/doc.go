// Package service provides the vault device services.
//
// This package contains:
//
//   - Device: one sparse store plus its size, serialized by an
//     interruptible per-device lock
//   - Registry: the fixed set of devices created at startup
//   - Controller: validation and dispatch of control commands against
//     the shared sizing Params
//   - File: an open handle on a device with its own position and mode
//
// Lock waits honour context cancellation and report
// domain.ErrInterrupted; once a critical section starts it runs to
// completion.
package service
