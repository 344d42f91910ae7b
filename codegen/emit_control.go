package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindGraphEntry, summary[*ir.GraphEntry](0, ir.NoLocation(), ir.NoCall), emitGraphEntry)
	register(ir.KindTargetEntry, summary[*ir.TargetEntry](0, ir.NoLocation(), ir.NoCall), emitTargetEntry)
	register(ir.KindJoinEntry, summary[*ir.JoinEntry](0, ir.NoLocation(), ir.NoCall), emitJoinEntry)
	register(ir.KindCatchBlockEntry, summary[*ir.CatchBlockEntry](0, ir.NoLocation(), ir.NoCall), emitCatchBlockEntry)

	register(ir.KindGoto, summary[*ir.Goto](0, ir.NoLocation(), ir.NoCall), emitGoto)
	register(ir.KindBranch, branchLocations, emitBranch)
	register(ir.KindReturn, summary[*ir.Return](1, ir.NoLocation(), ir.NoCall), emitReturn)
	register(ir.KindThrow, summary[*ir.Throw](0, ir.NoLocation(), ir.Call), emitThrow)
	register(ir.KindReThrow, summary[*ir.ReThrow](0, ir.NoLocation(), ir.Call), emitReThrow)
}

// ---------------------------------------------------------------------------
// Block entries
// ---------------------------------------------------------------------------

func emitGraphEntry(c *Compiler, e *ir.GraphEntry) {
	if e.NormalEntry != nil && !c.CanFallThroughTo(e.NormalEntry) {
		c.asm.Jump(c.JumpLabel(e.NormalEntry))
	}
}

func emitTargetEntry(c *Compiler, _ *ir.TargetEntry) {
	c.emitEdgeCounter()
}

func emitJoinEntry(c *Compiler, _ *ir.JoinEntry) {
	c.emitEdgeCounter()
}

// emitEdgeCounter counts executions of the block in unoptimized code.
func (c *Compiler) emitEdgeCounter() {
	if c.opts.Optimizing || !c.opts.EmitEdgeCounters {
		return
	}
	c.asm.Emit(bytecode.OpIncEdgeCounter, c.edgeCounters)
	c.edgeCounters++
}

// emitCatchBlockEntry registers the handler, moves the pending exception
// and stack trace into their variables and resets the frame, which may
// hold leftovers of the throwing frame state.
func emitCatchBlockEntry(c *Compiler, e *ir.CatchBlockEntry) {
	c.AddExceptionHandler(e.CatchTryIndex, c.CurrentBlock().TryIndex, c.asm.CodeSize(),
		e.HandledTypes, e.NeedsStackTrace)
	if e.ExceptionVar != nil {
		c.asm.Emit(bytecode.OpMoveSpecial, c.frameSlot(e.ExceptionVar), bytecode.SpecialException)
	}
	if e.StackTraceVar != nil {
		c.asm.Emit(bytecode.OpMoveSpecial, c.frameSlot(e.StackTraceVar), bytecode.SpecialStackTrace)
	}
	c.asm.Emit(bytecode.OpSetFrame, c.StackSize())
}

// frameSlot maps a frame variable to its slot. Index 0 is reserved.
func (c *Compiler) frameSlot(v *ir.LocalVariable) int {
	c.assert(v.Index != 0, "frame variable %q uses reserved index 0", v.Name)
	return v.FrameSlot()
}

// ---------------------------------------------------------------------------
// Control transfer
// ---------------------------------------------------------------------------

func emitGoto(c *Compiler, g *ir.Goto) {
	if g.Move != nil && c.opts.Optimizing {
		c.moves.emit(g.Move)
	}
	if !c.CanFallThroughTo(g.Target) {
		c.asm.Jump(c.JumpLabel(g.Target))
	}
}

func emitReturn(c *Compiler, r *ir.Return) {
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpReturn, r.Locs().In(0).Reg())
		return
	}
	c.asm.Emit(bytecode.OpReturnTOS)
}

func emitThrow(c *Compiler, t *ir.Throw) {
	c.asm.Emit(bytecode.OpThrow, 0)
	c.RecordSafepoint(t.Locs())
	c.AddCurrentDescriptor(ir.PcOther, t.DeoptID(), t.TokenPos())
	c.asm.Emit(bytecode.OpTrap)
}

func emitReThrow(c *Compiler, t *ir.ReThrow) {
	c.SetNeedsStackTrace(t.CatchTryIndex)
	c.asm.Emit(bytecode.OpThrow, 1)
	c.RecordSafepoint(t.Locs())
	c.AddCurrentDescriptor(ir.PcOther, t.DeoptID(), t.TokenPos())
	c.asm.Emit(bytecode.OpTrap)
}
