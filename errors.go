package babz

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (never panicked) from Options validation in New.
var (
	ErrInvalidThreads          = errors.New("babz: threads must be >= 1")
	ErrInvalidCopyingDistance  = errors.New("babz: copying distance must be >= 1")
	ErrInvalidAdaptiveDistance = errors.New("babz: adaptive distance must be >= 1")
)

// Error wraps a recoverable failure in the engine's own API surface (today,
// only invalid Options passed to New). It mirrors the teacher library's
// Error[T] shape: an operation tag plus the wrapped cause, with Unwrap
// support for errors.Is/errors.As.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("babz: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ContractViolation is panicked, never returned, when the engine detects
// that its own invariants have been broken (an unknown NodeStatus value, a
// negative busy counter, recomputation failing on a well-formed path, a
// branching with zero alternatives). The core does not attempt to recover
// from a corrupted search state: see the package's error-handling design for
// why this deliberately departs from the teacher's pervasive
// recover-at-the-boundary convention.
type ContractViolation struct {
	// Invariant names the broken invariant or contract (e.g. "I1", "n_busy >= 0").
	Invariant string
	// Detail gives a human-readable description of the observed state.
	Detail string
}

func (v *ContractViolation) Error() string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("babz: contract violation (%s): %s", v.Invariant, v.Detail)
}

// violate panics with a *ContractViolation built from the given invariant
// name and a formatted detail message. It never returns.
func violate(invariant, format string, args ...any) {
	panic(&ContractViolation{Invariant: invariant, Detail: fmt.Sprintf(format, args...)})
}
