package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindStrictCompare, strictCompareLocations, emitStrictCompare)
	registerComparison(ir.KindStrictCompare, emitStrictComparison)
}

// ---------------------------------------------------------------------------
// Branch labels and conditions
// ---------------------------------------------------------------------------

// BranchLabels are the targets of one comparison: where control goes when
// it holds, when it does not, and which of the two (if any) is emitted
// next.
type BranchLabels struct {
	True        *bytecode.Label
	False       *bytecode.Label
	FallThrough *bytecode.Label
}

// Condition says which outcome reaches the instruction right after a test.
// Tests skip that instruction for the other outcome.
type Condition uint8

const (
	NextIsTrue Condition = iota
	NextIsFalse
)

func (cond Condition) String() string {
	if cond == NextIsTrue {
		return "next-is-true"
	}
	return "next-is-false"
}

// conditionFor picks the outcome handled next: the true side when control
// falls through to the false block, otherwise the false side.
func conditionFor(labels BranchLabels) Condition {
	if labels.FallThrough == labels.False {
		return NextIsTrue
	}
	return NextIsFalse
}

// CreateBranchLabels returns the labels of a branch's successors, with the
// fall-through set to whichever is emitted next.
func (c *Compiler) CreateBranchLabels(br *ir.Branch) BranchLabels {
	labels := BranchLabels{
		True:  c.JumpLabel(br.True),
		False: c.JumpLabel(br.False),
	}
	switch {
	case c.CanFallThroughTo(br.False):
		labels.FallThrough = labels.False
	case c.CanFallThroughTo(br.True):
		labels.FallThrough = labels.True
	}
	return labels
}

// emitBranchOnCondition emits the jumps following a test. At most two
// jumps are emitted and none to the block that follows.
func (c *Compiler) emitBranchOnCondition(cond Condition, labels BranchLabels) {
	if cond == NextIsTrue {
		c.asm.Jump(labels.True)
		if labels.FallThrough != labels.False {
			c.asm.Jump(labels.False)
		}
		return
	}
	c.asm.Jump(labels.False)
	if labels.FallThrough != labels.True {
		c.asm.Jump(labels.True)
	}
}

// EmitComparison emits the test of cmp and returns its condition.
func (c *Compiler) EmitComparison(cmp ir.Comparison, labels BranchLabels) Condition {
	emit, ok := comparisons[cmp.Kind()]
	if !ok {
		unimplemented(cmp.Kind(), c.opts.Optimizing, "emit")
	}
	return emit(c, cmp, labels)
}

// ---------------------------------------------------------------------------
// Branch
// ---------------------------------------------------------------------------

// branchLocations is the comparison's summary without an output: a fused
// comparison materializes no value.
func branchLocations(br *ir.Branch, optimizing bool) *ir.LocationSummary {
	locs := LocationsFor(br.Comparison, optimizing)
	if locs == nil {
		return nil
	}
	locs.SetOut(ir.NoLocation())
	br.Comparison.SetLocs(locs)
	return locs
}

func emitBranch(c *Compiler, br *ir.Branch) {
	labels := c.CreateBranchLabels(br)
	cond := c.EmitComparison(br.Comparison, labels)
	c.emitBranchOnCondition(cond, labels)
}

// emitComparisonValue materializes a comparison as a boolean.
func (c *Compiler) emitComparisonValue(cmp ir.Comparison) {
	isTrue, isFalse, done := c.asm.NewLabel(), c.asm.NewLabel(), c.asm.NewLabel()
	labels := BranchLabels{True: isTrue, False: isFalse, FallThrough: isFalse}
	cond := c.EmitComparison(cmp, labels)
	c.emitBranchOnCondition(cond, labels)

	if c.opts.Optimizing {
		result := cmp.Locs().Out().Reg()
		c.asm.Bind(isFalse)
		c.asm.LoadConstant(result, false)
		c.asm.Jump(done)
		c.asm.Bind(isTrue)
		c.asm.LoadConstant(result, true)
		c.asm.Bind(done)
		return
	}
	c.asm.Bind(isFalse)
	c.asm.PushConstant(false)
	c.asm.Jump(done)
	c.asm.Bind(isTrue)
	c.asm.PushConstant(true)
	c.asm.Bind(done)
}

// ---------------------------------------------------------------------------
// StrictCompare
// ---------------------------------------------------------------------------

func strictCompareLocations(cmp *ir.StrictCompare, _ bool) *ir.LocationSummary {
	call := ir.NoCall
	if cmp.NeedsNumberCheck {
		call = ir.Call
	}
	return makeSummary(2, ir.RequiresRegister(), call)
}

func emitStrictCompare(c *Compiler, cmp *ir.StrictCompare) {
	c.emitComparisonValue(cmp)
}

var strictOps = [2][2][2]bytecode.Opcode{
	// [optimizing][numberCheck][ne]
	{{bytecode.OpIfEqStrictTOS, bytecode.OpIfNeStrictTOS}, {bytecode.OpIfEqStrictNumTOS, bytecode.OpIfNeStrictNumTOS}},
	{{bytecode.OpIfEqStrict, bytecode.OpIfNeStrict}, {bytecode.OpIfEqStrictNum, bytecode.OpIfNeStrictNum}},
}

// emitStrictComparison emits a skip-next test. The test runs the next
// instruction when the outcome chosen by conditionFor holds, so the
// opcode flips between == and != with the block layout.
func emitStrictComparison(c *Compiler, cmp *ir.StrictCompare, labels BranchLabels) Condition {
	c.assert(cmp.Op == ir.TokenEqStrict || cmp.Op == ir.TokenNeStrict,
		"strict compare with operator %s", cmp.Op.Name())

	cond := conditionFor(labels)
	testNe := cmp.Op == ir.TokenNeStrict
	if cond == NextIsFalse {
		testNe = !testNe
	}
	op := strictOps[b2i(c.opts.Optimizing)][b2i(cmp.NeedsNumberCheck)][b2i(testNe)]
	if c.opts.Optimizing {
		locs := cmp.Locs()
		c.asm.Emit(op, locs.In(0).Reg(), locs.In(1).Reg())
	} else {
		c.asm.Emit(op)
	}

	if cmp.NeedsNumberCheck && cmp.TokenPos().IsReal() {
		c.RecordSafepoint(cmp.Locs())
		c.AddCurrentDescriptor(ir.PcRuntimeCall, ir.NoDeoptID, cmp.TokenPos())
	}
	return cond
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
