package codegen

import (
	"errors"
	"fmt"

	"github.com/chazu/bcgen/ir"
)

// ErrNotAllocated is returned when register-mode compilation is asked to
// emit an instruction the allocator has not assigned locations to.
var ErrNotAllocated = errors.New("flow graph has no location assignment")

// InvariantError is raised for broken internal contracts. See
// ir.InvariantError.
type InvariantError = ir.InvariantError

// UnimplementedError is the hard fault raised when an instruction kind has
// no lowering in the active mode.
type UnimplementedError struct {
	Kind       ir.Kind
	Optimizing bool
	What       string // "locations" or "emit"
}

func (e *UnimplementedError) Error() string {
	mode := "unoptimized"
	if e.Optimizing {
		mode = "optimized"
	}
	return fmt.Sprintf("%s: %s not implemented in %s code", e.Kind, e.What, mode)
}

// BailoutError aborts one compilation attempt. The caller may retry with a
// different strategy, typically unoptimized code.
type BailoutError struct {
	Function      string
	Reason        string
	Unimplemented bool
}

func (e *BailoutError) Error() string {
	if e.Function == "" {
		return "bailout: " + e.Reason
	}
	return fmt.Sprintf("bailout in %s: %s", e.Function, e.Reason)
}

// IsBailout reports whether err aborted a compilation attempt in a way a
// fallback strategy can recover from.
func IsBailout(err error) bool {
	var b *BailoutError
	return errors.As(err, &b)
}

func unimplemented(kind ir.Kind, optimizing bool, what string) {
	panic(&UnimplementedError{Kind: kind, Optimizing: optimizing, What: what})
}
