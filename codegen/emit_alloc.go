package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindAllocateObject, summary[*ir.AllocateObject](0, ir.RequiresRegister(), ir.Call), emitAllocateObject)
	register(ir.KindAllocateContext, summary[*ir.AllocateContext](0, ir.RequiresRegister(), ir.Call), emitAllocateContext)
	register(ir.KindCloneContext, summary[*ir.CloneContext](1, ir.RequiresRegister(), ir.Call), emitCloneContext)
	register(ir.KindCreateArray, summary[*ir.CreateArray](2, ir.RequiresRegister(), ir.Call), emitCreateArray)
	register(ir.KindInstantiateType, summary[*ir.InstantiateType](1, ir.RequiresRegister(), ir.Call), emitInstantiateType)
	register(ir.KindInstantiateTypeArguments, summary[*ir.InstantiateTypeArguments](1, ir.RequiresRegister(), ir.Call), emitInstantiateTypeArguments)
}

// pushInputs pushes the register inputs of instr in order. Stack mode has
// them on the stack already.
func (c *Compiler) pushInputs(instr ir.Instruction) {
	if !c.opts.Optimizing {
		return
	}
	locs := instr.Locs()
	for i := 0; i < locs.InputCount(); i++ {
		c.asm.Emit(bytecode.OpPush, locs.In(i).Reg())
	}
}

// emitAllocateObject allocates an instance. A generic class has its type
// arguments pushed as the only argument and allocates through AllocateT.
func emitAllocateObject(c *Compiler, a *ir.AllocateObject) {
	if a.ArgumentCount() == 1 {
		c.asm.PushConstant(a.Class)
		c.asm.Emit(bytecode.OpAllocateT)
	} else {
		c.asm.Emit(bytecode.OpAllocate, c.asm.AddConstant(a.Class))
	}
	c.RecordSafepoint(a.Locs())
	c.AddCurrentDescriptor(ir.PcOther, ir.NoDeoptID, a.TokenPos())
	c.popResult(a)
}

func emitAllocateContext(c *Compiler, a *ir.AllocateContext) {
	if c.opts.Optimizing {
		c.Bailout("AllocateContext in optimized code")
	}
	c.asm.Emit(bytecode.OpAllocateContext, a.NumVariables)
	c.RecordSafepoint(a.Locs())
	c.AddCurrentDescriptor(ir.PcOther, ir.NoDeoptID, a.TokenPos())
}

func emitCloneContext(c *Compiler, cc *ir.CloneContext) {
	if c.opts.Optimizing {
		c.Bailout("CloneContext in optimized code")
	}
	c.asm.Emit(bytecode.OpCloneContext)
	c.RecordSafepoint(cc.Locs())
	c.AddCurrentDescriptor(ir.PcOther, ir.NoDeoptID, cc.TokenPos())
}

func emitCreateArray(c *Compiler, a *ir.CreateArray) {
	c.pushInputs(a)
	c.asm.Emit(bytecode.OpCreateArrayTOS)
	c.RecordSafepoint(a.Locs())
	c.AddCurrentDescriptor(ir.PcOther, a.DeoptID(), a.TokenPos())
	c.popResult(a)
}

// ---------------------------------------------------------------------------
// Type instantiation
// ---------------------------------------------------------------------------

func emitInstantiateType(c *Compiler, it *ir.InstantiateType) {
	c.pushInputs(it)
	c.asm.Emit(bytecode.OpInstantiateType, c.asm.AddConstant(it.Type))
	c.RecordSafepoint(it.Locs())
	c.AddCurrentDescriptor(ir.PcOther, it.DeoptID(), it.TokenPos())
	c.popResult(it)
}

// emitInstantiateTypeArguments passes a flag telling the runtime it may
// return the vector unchanged when the instantiator is null.
func emitInstantiateTypeArguments(c *Compiler, it *ir.InstantiateTypeArguments) {
	c.pushInputs(it)
	c.asm.Emit(bytecode.OpInstantiateTypeArgumentsTOS,
		b2i(it.TypeArguments.RawInstantiatedRaw), c.asm.AddConstant(it.TypeArguments))
	c.RecordSafepoint(it.Locs())
	c.AddCurrentDescriptor(ir.PcOther, it.DeoptID(), it.TokenPos())
	c.popResult(it)
}
