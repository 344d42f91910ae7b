package ir

import (
	"fmt"
	"strings"
)

// PcDescriptorKind classifies a PcDescriptor row.
type PcDescriptorKind uint8

const (
	PcDeopt           PcDescriptorKind = 1 << iota // deoptimization continuation
	PcIcCall                                       // instance call through an inline cache
	PcUnoptStaticCall                              // static call in unoptimized code
	PcRuntimeCall                                  // call into a runtime entry
	PcOsrEntry                                     // on-stack-replacement entry
	PcReturn                                       // return from the function
	PcOther                                        // any other safepointed site

	PcAnyKind PcDescriptorKind = 0xff
)

var pcKindNames = []struct {
	kind PcDescriptorKind
	name string
}{
	{PcDeopt, "deopt"},
	{PcIcCall, "ic-call"},
	{PcUnoptStaticCall, "unopt-call"},
	{PcRuntimeCall, "runtime-call"},
	{PcOsrEntry, "osr-entry"},
	{PcReturn, "return"},
	{PcOther, "other"},
}

func (k PcDescriptorKind) String() string {
	if k == PcAnyKind {
		return "any"
	}
	var parts []string
	for _, e := range pcKindNames {
		if k&e.kind != 0 {
			parts = append(parts, e.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return strings.Join(parts, "|")
}

// ParsePcDescriptorKind resolves a printed descriptor kind.
func ParsePcDescriptorKind(s string) (PcDescriptorKind, bool) {
	for _, e := range pcKindNames {
		if e.name == s {
			return e.kind, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Deopt ids
// ---------------------------------------------------------------------------

// NoDeoptID marks instructions that cannot deoptimize.
const NoDeoptID = -1

// deoptIDStep keeps room for the "after" id of every allocated id.
const deoptIDStep = 2

// DeoptAfter returns the id of the continuation point following the
// instruction with the given deopt id.
func DeoptAfter(id int) int {
	if id == NoDeoptID {
		return NoDeoptID
	}
	return id + 1
}

// ---------------------------------------------------------------------------
// Invariant violations
// ---------------------------------------------------------------------------

// InvariantError is raised (as a panic) when a checked internal contract is
// broken. It is never a recoverable compilation outcome.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

// Invariantf panics with an *InvariantError.
func Invariantf(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}
