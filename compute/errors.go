// Package compute defines the backend-agnostic ComputeDevice contract
// (spec §4.2, §9): buffer lifecycle, command-stream submission, and the
// four numeric kernels every backend (CPU, GPU, ...) must implement with
// identical semantics.
package compute

import (
	"errors"
	"fmt"
)

// Error kinds per spec §7. Policy: validate eagerly and surface at the call
// site; never auto-retry.
var (
	// ErrInvalidArgument marks shape/size mismatches, an empty dataset, an
	// unknown backend tag, an out-of-range device index, or an unsupported
	// dtype.
	ErrInvalidArgument = errors.New("compute: invalid argument")

	// ErrResourceExhausted marks a rejected buffer allocation or
	// command-stream submission.
	ErrResourceExhausted = errors.New("compute: resource exhausted")

	// ErrBackendFailure marks a kernel dispatch or transfer reported as
	// failed by the underlying device API.
	ErrBackendFailure = errors.New("compute: backend failure")

	// ErrIoFailure marks an import/export stream error.
	ErrIoFailure = errors.New("compute: io failure")

	// ErrCancelled marks a cooperative-cancellation exit.
	ErrCancelled = errors.New("compute: cancelled")
)

// WrapInvalidArgument annotates msg as an ErrInvalidArgument.
func WrapInvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// WrapResourceExhausted annotates msg as an ErrResourceExhausted.
func WrapResourceExhausted(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResourceExhausted, fmt.Sprintf(format, args...))
}

// WrapBackendFailure annotates which dispatch stage failed (upload, forward,
// backward, apply, readback per §7) as an ErrBackendFailure.
func WrapBackendFailure(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackendFailure, stage, err)
}

// WrapIoFailure annotates msg as an ErrIoFailure.
func WrapIoFailure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIoFailure, fmt.Sprintf(format, args...))
}
