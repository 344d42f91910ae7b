package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindBooleanNegate, summary[*ir.BooleanNegate](1, ir.RequiresRegister(), ir.NoCall), emitBooleanNegate)
	register(ir.KindAssertBoolean, summary[*ir.AssertBoolean](1, ir.SameAsFirstInput(), ir.Call), emitAssertBoolean)
	register(ir.KindAssertAssignable, summary[*ir.AssertAssignable](2, ir.SameAsFirstInput(), ir.NoCall), emitAssertAssignable)
	register(ir.KindCheckStackOverflow, summary[*ir.CheckStackOverflow](0, ir.NoLocation(), ir.Call), emitCheckStackOverflow)
	register(ir.KindDebugStepCheck, summary[*ir.DebugStepCheck](0, ir.NoLocation(), ir.NoCall), emitDebugStepCheck)
}

func emitBooleanNegate(c *Compiler, n *ir.BooleanNegate) {
	if c.opts.Optimizing {
		locs := n.Locs()
		c.asm.Emit(bytecode.OpBooleanNegate, locs.Out().Reg(), locs.In(0).Reg())
		return
	}
	c.asm.Emit(bytecode.OpBooleanNegateTOS)
}

// emitAssertBoolean checks the value on top of the stack. The operand is 1
// when full type checks are enabled; otherwise only null is rejected.
func emitAssertBoolean(c *Compiler, a *ir.AssertBoolean) {
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpPush, a.Locs().In(0).Reg())
	}
	c.asm.Emit(bytecode.OpAssertBoolean, b2i(c.opts.TypeChecks))
	c.RecordSafepoint(a.Locs())
	c.AddCurrentDescriptor(ir.PcOther, a.DeoptID(), a.TokenPos())
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpDrop1)
	}
}

// emitAssertAssignable checks the value against the destination type. The
// instantiator type arguments sit above the value and are consumed by the
// check; the value stays in place.
func emitAssertAssignable(c *Compiler, a *ir.AssertAssignable) {
	if c.opts.Optimizing {
		locs := a.Locs()
		c.asm.Emit(bytecode.OpPush, locs.In(0).Reg())
		c.asm.Emit(bytecode.OpPush, locs.In(1).Reg())
	}
	c.asm.Emit(bytecode.OpAssertAssignable, c.asm.AddConstant(a.DstType), c.asm.AddConstant(a.DstName))
	c.RecordSafepoint(a.Locs())
	c.AddCurrentDescriptor(ir.PcOther, a.DeoptID(), a.TokenPos())
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpDrop1)
	}
}

func emitCheckStackOverflow(c *Compiler, s *ir.CheckStackOverflow) {
	c.asm.Emit(bytecode.OpCheckStack)
	c.RecordSafepoint(s.Locs())
	c.AddCurrentDescriptor(ir.PcRuntimeCall, ir.NoDeoptID, s.TokenPos())
}

func emitDebugStepCheck(c *Compiler, d *ir.DebugStepCheck) {
	c.asm.Emit(bytecode.OpDebugStep)
	c.AddCurrentDescriptor(d.StubKind, ir.NoDeoptID, d.TokenPos())
}
