package codegen

import "github.com/chazu/bcgen/bytecode"

// DefaultOptimizationCounterThreshold is the usage count at which
// unoptimized code asks for optimization.
const DefaultOptimizationCounterThreshold = 30000

// Options configures one compilation. Everything that influences emission
// is passed here rather than read from process state.
type Options struct {
	// Optimizing selects register mode. Otherwise code is emitted for the
	// operand stack.
	Optimizing bool

	// Asserts enables checked internal contracts. A violation panics with
	// *InvariantError.
	Asserts bool

	// TypeChecks is passed to boolean assertions.
	TypeChecks bool

	// EmitEdgeCounters adds edge counters at block entries of unoptimized
	// code.
	EmitEdgeCounters bool

	// OptimizationCounterThreshold enables the hot check in unoptimized
	// code when positive.
	OptimizationCounterThreshold int

	// Symbols, when set, interns call selectors across compilations.
	Symbols *bytecode.SymbolTable
}

// DefaultOptions returns options for unoptimized compilation.
func DefaultOptions() Options {
	return Options{
		Asserts:                      true,
		TypeChecks:                   true,
		OptimizationCounterThreshold: DefaultOptimizationCounterThreshold,
	}
}

func (o Options) mode() string {
	if o.Optimizing {
		return "optimized"
	}
	return "unoptimized"
}
