package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindConstant, summary[*ir.Constant](0, ir.RequiresRegister(), ir.NoCall), emitConstant)
	register(ir.KindParameter, summary[*ir.Parameter](0, ir.Any(), ir.NoCall), func(*Compiler, *ir.Parameter) {})
	register(ir.KindPhi, phiLocations, func(*Compiler, *ir.Phi) {})
	register(ir.KindLoadLocal, summary[*ir.LoadLocal](0, ir.NoLocation(), ir.NoCall), emitLoadLocal)
	register(ir.KindStoreLocal, summary[*ir.StoreLocal](1, ir.NoLocation(), ir.NoCall), emitStoreLocal)
	register(ir.KindPushArgument, summary[*ir.PushArgument](1, ir.NoLocation(), ir.NoCall), emitPushArgument)
	register(ir.KindParallelMove, summary[*ir.ParallelMove](0, ir.NoLocation(), ir.NoCall), emitParallelMove)
}

func phiLocations(phi *ir.Phi, _ bool) *ir.LocationSummary {
	locs := ir.NewLocationSummary(phi.InputCount(), 0, ir.NoCall)
	for i := 0; i < phi.InputCount(); i++ {
		locs.SetIn(i, ir.Any())
	}
	locs.SetOut(ir.Any())
	return locs
}

// emitConstant materializes a constant. On the operand stack a constant
// nobody reads is not pushed.
func emitConstant(c *Compiler, k *ir.Constant) {
	if c.opts.Optimizing {
		if out := k.Locs().Out(); out.IsRegister() {
			c.asm.LoadConstant(out.Reg(), k.Value)
		}
		return
	}
	if k.HasTemp() {
		c.asm.PushConstant(k.Value)
	}
}

func emitLoadLocal(c *Compiler, l *ir.LoadLocal) {
	if c.opts.Optimizing {
		c.Bailout("LoadLocal %s in optimized code", l.Local.Name)
	}
	c.asm.Emit(bytecode.OpPush, c.frameSlot(l.Local))
}

func emitStoreLocal(c *Compiler, s *ir.StoreLocal) {
	if c.opts.Optimizing {
		c.Bailout("StoreLocal %s in optimized code", s.Local.Name)
	}
	slot := c.frameSlot(s.Local)
	if s.HasTemp() {
		c.asm.Emit(bytecode.OpStoreLocal, slot)
	} else {
		c.asm.Emit(bytecode.OpPopLocal, slot)
	}
}

// emitPushArgument pushes an outgoing argument. In stack mode the value is
// already on the stack.
func emitPushArgument(c *Compiler, p *ir.PushArgument) {
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpPush, p.Locs().In(0).Reg())
	}
}

func emitParallelMove(c *Compiler, pm *ir.ParallelMove) {
	if c.opts.Optimizing {
		c.moves.emit(pm)
	}
}
