package codegen

import (
	"context"
	"fmt"

	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bcgen.codegen")

// ---------------------------------------------------------------------------
// Compiler: per-function emission state
// ---------------------------------------------------------------------------

// Compiler lowers one flow graph. It is single-use and not safe for
// concurrent use; independent graphs get independent compilers.
type Compiler struct {
	graph *ir.FlowGraph
	opts  Options
	asm   *bytecode.Assembler

	order   []*ir.Block
	labels  map[*ir.Block]*bytecode.Label
	current int // index of the block being emitted in order

	code            *Code
	needsStackTrace map[int]bool
	edgeCounters    int
	moves           *moveResolver
}

func newCompiler(g *ir.FlowGraph, opts Options) *Compiler {
	c := &Compiler{
		graph:           g,
		opts:            opts,
		asm:             bytecode.NewAssembler(nil),
		labels:          make(map[*ir.Block]*bytecode.Label),
		needsStackTrace: make(map[int]bool),
	}
	c.moves = &moveResolver{c: c}
	c.code = &Code{
		Name:      functionName(g),
		Optimized: opts.Optimizing,
		Pool:      c.asm.Pool(),
	}
	if g.Function != nil {
		c.code.NumParameters = g.Function.NumParameters
	}
	return c
}

func functionName(g *ir.FlowGraph) string {
	if g.Function == nil {
		return "<anonymous>"
	}
	return g.Function.Name
}

// Compile lowers g to bytecode. Unimplemented instruction kinds and
// unsupported specializations abort the attempt with a *BailoutError;
// a broken internal contract panics with *InvariantError.
func Compile(ctx context.Context, g *ir.FlowGraph, opts Options) (code *Code, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := newCompiler(g, opts)

	defer func() {
		if r := recover(); r != nil {
			err = c.recoverPanic(r)
			code = nil
		}
	}()

	if err := c.initializeLocationSummaries(); err != nil {
		return nil, err
	}
	if !opts.Optimizing {
		c.prepareOperandStack()
	}
	c.order = g.CodegenBlockOrder()
	for _, b := range c.order {
		c.labels[b] = c.asm.NewLabel()
	}

	c.emitFrameEntry()
	for i, b := range c.order {
		c.current = i
		c.emitBlock(b)
	}

	code = c.finalize()
	if opts.Asserts {
		if _, err := code.CheckStack(); err != nil {
			bailoutsTotal.Inc()
			return nil, &BailoutError{Function: code.Name, Reason: err.Error()}
		}
	}
	compilationsTotal(opts.Optimizing).Inc()
	bytecodeBytesTotal.Add(len(code.Bytecode))
	log.Debugf("compiled %s (%s): %d bytes, %d descriptors",
		code.Name, opts.mode(), len(code.Bytecode), len(code.Descriptors))
	return code, nil
}

// recoverPanic converts the fail-fast panics of emission into errors.
// Invariant violations and unknown panics propagate.
func (c *Compiler) recoverPanic(r any) error {
	name := functionName(c.graph)
	switch e := r.(type) {
	case *UnimplementedError:
		bailoutsTotal.Inc()
		log.Debugf("bailout in %s: %s", name, e)
		return &BailoutError{Function: name, Reason: e.Error(), Unimplemented: true}
	case *BailoutError:
		bailoutsTotal.Inc()
		e.Function = name
		log.Debugf("bailout in %s: %s", name, e.Reason)
		return e
	case *bytecode.EncodingError:
		bailoutsTotal.Inc()
		log.Debugf("bailout in %s: %s", name, e)
		return &BailoutError{Function: name, Reason: e.Error()}
	}
	panic(r)
}

// Bailout aborts the current compilation attempt.
func (c *Compiler) Bailout(format string, args ...any) {
	panic(&BailoutError{Reason: fmt.Sprintf(format, args...)})
}

// assert checks a contract when asserts are enabled.
func (c *Compiler) assert(cond bool, format string, args ...any) {
	if c.opts.Asserts && !cond {
		ir.Invariantf(format, args...)
	}
}

// IsOptimizing reports whether code is emitted in register mode.
func (c *Compiler) IsOptimizing() bool { return c.opts.Optimizing }

// Assembler returns the assembler code is emitted into.
func (c *Compiler) Assembler() *bytecode.Assembler { return c.asm }

// StackSize is the number of frame slots below the operand stack.
func (c *Compiler) StackSize() int {
	if c.opts.Optimizing {
		return c.graph.SpillSlotCount
	}
	return c.graph.NumStackLocals
}

// ---------------------------------------------------------------------------
// Location summaries
// ---------------------------------------------------------------------------

// initializeLocationSummaries gives every instruction its summary in stack
// mode. In register mode the allocator has already done so; instructions
// it skipped must be unimplemented kinds, which fault on emission.
func (c *Compiler) initializeLocationSummaries() error {
	var err error
	c.graph.ForEachInstruction(func(b *ir.Block, instr ir.Instruction) {
		if err != nil || instr.Kind().IsBlockEntry() || isValueOnly(instr) {
			return
		}
		if _, fused := isFusedComparison(instr); fused {
			// Summarized together with its branch.
			return
		}
		if !c.opts.Optimizing {
			instr.SetLocs(LocationsFor(instr, false))
			return
		}
		if instr.Locs() == nil && hasLowering(instr) {
			err = fmt.Errorf("%w: %s in %s", ErrNotAllocated, instr, b)
		}
	})
	return err
}

func hasLowering(instr ir.Instruction) bool {
	if br, ok := instr.(*ir.Branch); ok {
		return isImplemented(br.Comparison.Kind())
	}
	return isImplemented(instr.Kind())
}

// isValueOnly reports instructions that define values without code.
func isValueOnly(instr ir.Instruction) bool {
	switch instr.Kind() {
	case ir.KindParameter, ir.KindPhi:
		return true
	}
	return false
}

// isFusedComparison reports whether instr is the comparison owned by a
// branch. Its summary is the branch's.
func isFusedComparison(instr ir.Instruction) (*ir.Branch, bool) {
	cmp, ok := instr.(ir.Comparison)
	if !ok || instr.Block() == nil {
		return nil, false
	}
	br, ok := instr.Block().Last().(*ir.Branch)
	if !ok || br.Comparison != cmp {
		return nil, false
	}
	return br, true
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

// prepareOperandStack checks that the graph has a stack form: each value
// is pushed where it is defined and popped by its only reader in the same
// block. Values
// nobody reads are marked so that they are never pushed or are dropped
// right away. Parameters stay in the frame and pushed arguments belong to
// their call, so neither is counted.
func (c *Compiler) prepareOperandStack() {
	reads := make(map[ir.Instruction]int)
	c.graph.ForEachInstruction(func(b *ir.Block, instr ir.Instruction) {
		if instr.Kind() == ir.KindPhi {
			c.Bailout("%s in unoptimized code", instr)
		}
		for _, in := range instr.Inputs() {
			reads[in]++
			if in.Kind() != ir.KindParameter && in.Block() != b {
				c.Bailout("%s reads %s across a block boundary", instr, in)
			}
		}
	})
	c.graph.ForEachInstruction(func(_ *ir.Block, instr ir.Instruction) {
		switch instr.Kind() {
		case ir.KindParameter, ir.KindPushArgument:
			return
		}
		if !instr.Kind().HasOutput() {
			return
		}
		switch n := reads[instr]; {
		case n == 0:
			instr.SetHasTemp(false)
		case n > 1:
			c.Bailout("%s is read %d times; the operand stack holds it once", instr, n)
		}
	})
}

// pushParameters pushes the frame slots of parameter operands of instr
// ahead of its emission. The pushes land on top of the stack, so the
// parameters must be the trailing operands.
func (c *Compiler) pushParameters(instr ir.Instruction) {
	operands := ir.OperandsOf(instr)
	first := -1
	for i := 0; i < operands.InputCount(); i++ {
		if _, ok := operands.InputAt(i).(*ir.Parameter); ok {
			if first < 0 {
				first = i
			}
			continue
		}
		if first >= 0 {
			c.Bailout("%s: parameter operand %d precedes stack operand %d", instr, first, i)
		}
	}
	if first < 0 {
		return
	}
	for i := first; i < operands.InputCount(); i++ {
		c.asm.Emit(bytecode.OpPush, c.parameterSlot(operands.InputAt(i).(*ir.Parameter)))
	}
}

// parameterSlot is the frame slot of a parameter: the last one sits right
// below the frame pointer.
func (c *Compiler) parameterSlot(p *ir.Parameter) int {
	return p.Index - c.code.NumParameters
}

// ---------------------------------------------------------------------------
// Linearization
// ---------------------------------------------------------------------------

// emitFrameEntry sets up the frame before the first block.
func (c *Compiler) emitFrameEntry() {
	params := c.code.NumParameters
	if c.opts.Optimizing {
		c.asm.Emit(bytecode.OpEntryOptimized, params, c.graph.SpillSlotCount)
		return
	}
	c.asm.Emit(bytecode.OpEntry, params, c.graph.NumStackLocals)
	fn := c.graph.Function
	if c.opts.OptimizationCounterThreshold > 0 && fn != nil && fn.Optimizable {
		c.asm.Emit(bytecode.OpHotCheck, c.opts.OptimizationCounterThreshold)
	}
}

func (c *Compiler) emitBlock(b *ir.Block) {
	c.asm.Bind(c.labels[b])
	c.emitInstruction(b.Entry)
	if b.EntryMove != nil && c.opts.Optimizing {
		c.moves.emit(b.EntryMove)
	}
	for _, instr := range b.Instrs {
		c.emitInstruction(instr)
	}
}

func (c *Compiler) emitInstruction(instr ir.Instruction) {
	if c.opts.Asserts {
		operands := ir.OperandsOf(instr)
		if locs := instr.Locs(); locs != nil && locs.InputCount() != operands.InputCount() {
			ir.Invariantf("%s has %d inputs but its summary has %d",
				instr, operands.InputCount(), locs.InputCount())
		}
	}
	if !c.opts.Optimizing {
		c.pushParameters(instr)
	}
	lookup(instr.Kind()).emit(c, instr)
	c.emitInstructionEpilogue(instr)
}

// emitInstructionEpilogue drops unused values from the operand stack.
func (c *Compiler) emitInstructionEpilogue(instr ir.Instruction) {
	if c.opts.Optimizing || !instr.Kind().HasOutput() || instr.HasTemp() {
		return
	}
	switch instr.Kind() {
	case ir.KindConstant, ir.KindPushArgument, ir.KindStoreLocal,
		ir.KindParameter, ir.KindPhi:
		return
	}
	c.asm.Emit(bytecode.OpDrop1)
}

// CanFallThroughTo reports whether b is emitted right after the current
// block.
func (c *Compiler) CanFallThroughTo(b *ir.Block) bool {
	next := c.current + 1
	return next < len(c.order) && c.order[next] == b
}

// JumpLabel returns the label bound at the start of b.
func (c *Compiler) JumpLabel(b *ir.Block) *bytecode.Label {
	l, ok := c.labels[b]
	if !ok {
		ir.Invariantf("%s is not in the block order", b)
	}
	return l
}

// CurrentBlock returns the block being emitted.
func (c *Compiler) CurrentBlock() *ir.Block {
	return c.order[c.current]
}

// ---------------------------------------------------------------------------
// Finalization
// ---------------------------------------------------------------------------

func (c *Compiler) finalize() *Code {
	code := c.code
	code.Bytecode = c.asm.Bytes()
	code.FrameSize = c.StackSize()
	code.EdgeCounters = c.edgeCounters
	for i := range code.Handlers {
		if c.needsStackTrace[code.Handlers[i].TryIndex] {
			code.Handlers[i].NeedsStackTrace = true
		}
	}
	return code
}
