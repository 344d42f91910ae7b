package codegen

import (
	"github.com/chazu/bcgen/ir"
)

// ---------------------------------------------------------------------------
// Emitter registry
// ---------------------------------------------------------------------------

// emitter is the lowering of one instruction kind: its operand contract
// and its emission. Both modes share one entry; the emit function checks
// the mode itself.
type emitter struct {
	locations func(instr ir.Instruction, optimizing bool) *ir.LocationSummary
	emit      func(c *Compiler, instr ir.Instruction)
}

// comparisonEmitter emits the test of a comparison against labels and
// returns which outcome the instruction after the test handles.
type comparisonEmitter func(c *Compiler, cmp ir.Comparison, labels BranchLabels) Condition

var (
	emitters    = map[ir.Kind]emitter{}
	comparisons = map[ir.Kind]comparisonEmitter{}
)

// register installs the lowering of kind. T is the concrete node type.
func register[T ir.Instruction](kind ir.Kind,
	locations func(instr T, optimizing bool) *ir.LocationSummary,
	emit func(c *Compiler, instr T)) {
	if _, dup := emitters[kind]; dup {
		panic("duplicate emitter for " + kind.Name())
	}
	emitters[kind] = emitter{
		locations: func(instr ir.Instruction, optimizing bool) *ir.LocationSummary {
			return locations(instr.(T), optimizing)
		},
		emit: func(c *Compiler, instr ir.Instruction) {
			emit(c, instr.(T))
		},
	}
}

// registerComparison installs the test emitter of a comparison kind.
func registerComparison[T ir.Comparison](kind ir.Kind,
	emit func(c *Compiler, cmp T, labels BranchLabels) Condition) {
	comparisons[kind] = func(c *Compiler, cmp ir.Comparison, labels BranchLabels) Condition {
		return emit(c, cmp.(T), labels)
	}
}

// unimplementedEmitter is the lowering of every kind without a bytecode
// sequence. Summaries may be requested in register mode, where the
// allocator skips the instruction; everything else faults.
func unimplementedEmitter(kind ir.Kind) emitter {
	return emitter{
		locations: func(_ ir.Instruction, optimizing bool) *ir.LocationSummary {
			if !optimizing {
				unimplemented(kind, optimizing, "locations")
			}
			return nil
		},
		emit: func(c *Compiler, _ ir.Instruction) {
			unimplemented(kind, c.opts.Optimizing, "emit")
		},
	}
}

func lookup(kind ir.Kind) emitter {
	if e, ok := emitters[kind]; ok {
		return e
	}
	return unimplementedEmitter(kind)
}

func isImplemented(kind ir.Kind) bool {
	_, ok := emitters[kind]
	return ok
}

// LocationsFor returns the operand contract of instr for the given mode.
// For kinds without a lowering it panics with *UnimplementedError in stack
// mode and returns nil in register mode.
func LocationsFor(instr ir.Instruction, optimizing bool) *ir.LocationSummary {
	return lookup(instr.Kind()).locations(instr, optimizing)
}

// ImplementedKinds returns the kinds that have a lowering, in kind order.
func ImplementedKinds() []ir.Kind {
	var out []ir.Kind
	for _, k := range ir.Kinds() {
		if isImplemented(k) {
			out = append(out, k)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Summary helpers
// ---------------------------------------------------------------------------

// makeSummary builds the common summary shape: inputs in any register, or
// pinned to the call-convention registers R0..Rn-1 at call boundaries.
func makeSummary(numInputs int, out ir.Location, call ir.ContainsCall) *ir.LocationSummary {
	locs := ir.NewLocationSummary(numInputs, 0, call)
	for i := 0; i < numInputs; i++ {
		if call == ir.NoCall {
			locs.SetIn(i, ir.RequiresRegister())
		} else {
			locs.SetIn(i, ir.RegisterLocation(i))
		}
	}
	if !out.IsInvalid() {
		locs.SetOut(out)
	}
	return locs
}

// summary returns a locations function with a fixed shape.
func summary[T ir.Instruction](numInputs int, out ir.Location, call ir.ContainsCall) func(T, bool) *ir.LocationSummary {
	return func(T, bool) *ir.LocationSummary {
		return makeSummary(numInputs, out, call)
	}
}

// callSummary is the summary of calls whose arguments are pushed: no
// register inputs, result in R0.
func callSummary[T ir.Instruction](T, bool) *ir.LocationSummary {
	return ir.CallSummary()
}
