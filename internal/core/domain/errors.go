// Package domain defines the core value types of the vault store.
package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable, machine-readable code.
// Codes use the format VT-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "VT-CTL-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the caller should retry the whole operation.
// Only an interrupted lock wait qualifies; every other error is terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

// ============================================================================
// Control Errors (CTL)
// ============================================================================

var (
	// ErrInvalidCommand indicates an unknown or malformed control command code.
	ErrInvalidCommand = NewDomainError("VT-CTL-4000", "inappropriate control command")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument, e.g. a negative seek target.
	ErrInvalidArgument = NewDomainError("VT-ARG-4000", "invalid argument")

	// ErrBadAddress indicates the caller-supplied memory region is invalid.
	ErrBadAddress = NewDomainError("VT-ARG-4002", "bad address")
)

// ============================================================================
// Authorization Errors (AUTH)
// ============================================================================

var (
	// ErrPermissionDenied indicates the privilege check failed.
	ErrPermissionDenied = NewDomainError("VT-AUTH-4030", "operation not permitted")

	// ErrAuthFailed indicates the presented admin secret did not verify.
	ErrAuthFailed = NewDomainError("VT-AUTH-4010", "invalid admin secret")
)

// ============================================================================
// Device Errors (DEV)
// ============================================================================

var (
	// ErrDeviceNotFound indicates the device index is outside the registry.
	ErrDeviceNotFound = NewDomainError("VT-DEV-4040", "no such device")

	// ErrAccessMode indicates the operation is not allowed by the handle's open mode.
	ErrAccessMode = NewDomainError("VT-DEV-4031", "operation not permitted by open mode")

	// ErrBadHandle indicates an unknown or already closed handle.
	ErrBadHandle = NewDomainError("VT-DEV-4090", "bad file handle")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInterrupted indicates the lock wait was cancelled. Callers retry.
	ErrInterrupted = NewDomainError("VT-SYS-4990", "interrupted, retry the operation")

	// ErrOutOfMemory indicates a segment allocation failed.
	ErrOutOfMemory = NewDomainError("VT-SYS-5070", "out of memory")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("VT-SYS-5000", "internal error")

	// ErrBadRequest indicates a malformed request on a wire surface.
	ErrBadRequest = NewDomainError("VT-SYS-4000", "bad request")

	// ErrRateLimited indicates the peer exceeded its command budget.
	ErrRateLimited = NewDomainError("VT-SYS-4290", "too many requests")
)
