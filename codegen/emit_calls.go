package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindInstanceCall, callSummary[*ir.InstanceCall], emitInstanceCall)
	register(ir.KindStaticCall, callSummary[*ir.StaticCall], emitStaticCall)
	register(ir.KindClosureCall, summary[*ir.ClosureCall](1, ir.RegisterLocation(0), ir.Call), emitClosureCall)
	register(ir.KindPolymorphicInstanceCall, callSummary[*ir.PolymorphicInstanceCall], emitPolymorphicInstanceCall)
	register(ir.KindStringInterpolate, summary[*ir.StringInterpolate](1, ir.RegisterLocation(0), ir.Call), emitStringInterpolate)
	register(ir.KindNativeCall, summary[*ir.NativeCall](0, ir.NoLocation(), ir.Call), emitNativeCall)
}

// popResult moves a call result from the operand stack into the output
// register. In stack mode the result stays on the stack.
func (c *Compiler) popResult(instr ir.Instruction) {
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpPopLocal, instr.Locs().Out().Reg())
	}
}

// argumentsDescriptor returns the pool index of the descriptor for argc
// arguments, the last len(names) of them named.
func (c *Compiler) argumentsDescriptor(argc int, names []string) int {
	return c.asm.AddConstant(ir.NewArgumentsDescriptor(argc, names))
}

func (c *Compiler) selectorID(selector string) uint32 {
	if c.opts.Symbols == nil {
		return 0
	}
	return c.opts.Symbols.Intern(selector)
}

// ---------------------------------------------------------------------------
// Calls with pushed arguments
// ---------------------------------------------------------------------------

// emitInstanceCall dispatches through a fresh inline cache that tests one
// or two argument classes.
func emitInstanceCall(c *Compiler, call *ir.InstanceCall) {
	argc := call.ArgumentCount()
	ic := &ir.ICData{
		Selector:       call.Selector,
		SelectorID:     c.selectorID(call.Selector),
		ArgsDescriptor: ir.NewArgumentsDescriptor(argc, call.ArgNames),
		NumArgsTested:  call.NumArgsTested,
		DeoptID:        call.DeoptID(),
	}
	op := bytecode.OpInstanceCall1
	if call.NumArgsTested == 2 {
		op = bytecode.OpInstanceCall2
	}
	c.asm.Emit(op, argc, c.asm.AddConstant(ic))
	c.RecordAfterCall(call, ir.PcIcCall)
	c.popResult(call)
}

func emitStaticCall(c *Compiler, call *ir.StaticCall) {
	argc := call.ArgumentCount()
	c.asm.PushConstant(call.Function)
	c.asm.Emit(bytecode.OpStaticCall, argc, c.argumentsDescriptor(argc, call.ArgNames))
	c.RecordAfterCall(call, ir.PcUnoptStaticCall)
	c.popResult(call)
}

// emitClosureCall calls the closure in input 0, which takes the place of
// the function above the arguments.
func emitClosureCall(c *Compiler, call *ir.ClosureCall) {
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpPush, call.Locs().In(0).Reg())
	}
	argc := call.ArgumentCount()
	c.asm.Emit(bytecode.OpStaticCall, argc, c.argumentsDescriptor(argc, call.ArgNames))
	c.RecordAfterCall(call, ir.PcDeopt)
	c.popResult(call)
}

// emitPolymorphicInstanceCall gives up: dispatch over many receiver classes
// has no bytecode form.
func emitPolymorphicInstanceCall(c *Compiler, call *ir.PolymorphicInstanceCall) {
	c.Bailout("%s", call)
}

// emitStringInterpolate calls the interpolation helper with the values
// array as its only argument.
func emitStringInterpolate(c *Compiler, s *ir.StringInterpolate) {
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpPush, s.Locs().In(0).Reg())
	}
	const argc = 1
	c.asm.PushConstant(s.CallFunction)
	c.asm.Emit(bytecode.OpStaticCall, argc, c.argumentsDescriptor(argc, nil))
	c.RecordAfterCall(s, ir.PcUnoptStaticCall)
	c.popResult(s)
}

// ---------------------------------------------------------------------------
// Native calls
// ---------------------------------------------------------------------------

// emitNativeCall pushes the resolved entry point and the argc tag as raw
// words and calls through the native trampoline.
func emitNativeCall(c *Compiler, n *ir.NativeCall) {
	if n.LinkLazily || n.Native == nil {
		c.Bailout("native call %s needs lazy linking", n.Function.Name)
	}
	pool := c.asm.Pool()
	target := pool.AddImmediate(n.Native.Address)
	argcTag := pool.AddImmediate(ir.NativeArgcTag(n.Function))
	c.asm.Emit(bytecode.OpPushConstant, target)
	c.asm.Emit(bytecode.OpPushConstant, argcTag)
	if n.Bootstrap {
		c.asm.Emit(bytecode.OpNativeBootstrapCall)
	} else {
		c.asm.Emit(bytecode.OpNativeCall)
	}
	c.RecordSafepoint(n.Locs())
	c.AddCurrentDescriptor(ir.PcOther, ir.NoDeoptID, n.TokenPos())
}
