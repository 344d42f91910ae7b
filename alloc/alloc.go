// Package alloc assigns frame locations to a flow graph for register-mode
// code generation.
//
// The assignment is deliberately naive: every SSA value owns one frame
// register for its whole lifetime, parameters stay in their incoming
// slots below the frame pointer, and fixed call-convention registers are
// satisfied with explicit parallel moves around the instruction. It is
// what tools and tests use in place of a real register allocator.
package alloc

import (
	"fmt"

	"github.com/chazu/bcgen/ir"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bcgen.alloc")

// SummaryFunc returns the register-mode operand contract of an
// instruction, or nil when the instruction has no lowering.
type SummaryFunc func(instr ir.Instruction, optimizing bool) *ir.LocationSummary

// Result describes the frame layout chosen for a graph.
type Result struct {
	Reserved  int // call-convention registers R0..Reserved-1
	Values    int // registers holding SSA values
	Scratch   int // registers for instruction temps
	Skipped   int // instructions left without a summary
	MovesUsed int // parallel moves inserted
}

// SpillSlotCount is the frame size in registers.
func (r Result) SpillSlotCount() int {
	return r.Reserved + r.Values + r.Scratch
}

type allocator struct {
	g         *ir.FlowGraph
	summarize SummaryFunc
	res       Result
	numParams int
	defined   []int // slots of tagged values defined so far, in linear order
}

// Allocate assigns locations to every instruction of g that has a
// lowering, inserts the moves its summaries require and sets
// g.SpillSlotCount. g must have its edges computed.
func Allocate(g *ir.FlowGraph, summarize SummaryFunc) (Result, error) {
	a := &allocator{g: g, summarize: summarize}
	if g.Function != nil {
		a.numParams = g.Function.NumParameters
	}
	if n := len(g.GraphEntry().Parameters); n > a.numParams {
		a.numParams = n
	}

	order := g.CodegenBlockOrder()
	summaries := make(map[ir.Instruction]*ir.LocationSummary)
	for _, b := range order {
		for _, instr := range b.Instrs {
			locs := summarize(instr, true)
			if locs == nil {
				a.res.Skipped++
				continue
			}
			summaries[instr] = locs
			a.reserve(locs)
		}
	}
	a.res.Values = g.NumSSATemps()

	for _, b := range order {
		for _, phi := range phis(b) {
			a.define(phi)
		}
		// Moves are inserted while walking; iterate over a snapshot.
		for _, instr := range append([]ir.Instruction(nil), b.Instrs...) {
			locs, ok := summaries[instr]
			if !ok {
				continue
			}
			if err := a.assign(b, instr, locs); err != nil {
				return a.res, err
			}
		}
		if gt, ok := b.Last().(*ir.Goto); ok {
			a.phiMoves(b, gt)
		}
	}

	g.SpillSlotCount = a.res.SpillSlotCount()
	log.Debugf("allocated %s: %d reserved, %d values, %d scratch, %d moves",
		functionName(g), a.res.Reserved, a.res.Values, a.res.Scratch, a.res.MovesUsed)
	return a.res, nil
}

func functionName(g *ir.FlowGraph) string {
	if g.Function == nil {
		return "<anonymous>"
	}
	return g.Function.Name
}

func phis(b *ir.Block) []*ir.Phi {
	if je, ok := b.Entry.(*ir.JoinEntry); ok {
		return je.Phis
	}
	return nil
}

// reserve grows the call-convention register range to cover the fixed
// registers locs names.
func (a *allocator) reserve(locs *ir.LocationSummary) {
	grow := func(loc ir.Location) {
		if loc.IsRegister() && loc.Reg()+1 > a.res.Reserved {
			a.res.Reserved = loc.Reg() + 1
		}
	}
	for i := 0; i < locs.InputCount(); i++ {
		grow(locs.In(i))
	}
	for i := 0; i < locs.TempCount(); i++ {
		grow(locs.Temp(i))
	}
	grow(locs.Out())
	if locs.TempCount() > a.res.Scratch {
		a.res.Scratch = locs.TempCount()
	}
}

// ---------------------------------------------------------------------------
// Value locations
// ---------------------------------------------------------------------------

// valueSlot is the frame slot holding the value defined by v.
func (a *allocator) valueSlot(v ir.Instruction) int {
	if p, ok := v.(*ir.Parameter); ok {
		return p.Index - a.numParams
	}
	return a.res.Reserved + v.SSATemp()
}

// locationOf returns where the value of v lives. Parameters are registers
// with negative indices. A pushed argument stands for the value it pushed.
func (a *allocator) locationOf(v ir.Instruction) (ir.Location, error) {
	if push, ok := v.(*ir.PushArgument); ok {
		return a.locationOf(push.InputAt(0))
	}
	if _, ok := v.(*ir.Parameter); !ok && v.SSATemp() < 0 {
		return ir.NoLocation(), fmt.Errorf("%s defines no value", v)
	}
	return ir.RegisterLocation(a.valueSlot(v)), nil
}

func (a *allocator) scratchSlot(i int) int {
	return a.res.Reserved + a.res.Values + i
}

// define records v as holding a tagged value from here on. Pushed
// arguments live on the operand stack, not in their slot.
func (a *allocator) define(v ir.Instruction) {
	if v.Kind() == ir.KindPushArgument {
		return
	}
	if v.SSATemp() >= 0 && v.Representation() == ir.Tagged {
		a.defined = append(a.defined, a.valueSlot(v))
	}
}

// ---------------------------------------------------------------------------
// Per-instruction assignment
// ---------------------------------------------------------------------------

func (a *allocator) assign(b *ir.Block, instr ir.Instruction, locs *ir.LocationSummary) error {
	operands := ir.OperandsOf(instr)
	if locs.InputCount() != operands.InputCount() {
		return fmt.Errorf("%s: summary has %d inputs, instruction has %d",
			instr, locs.InputCount(), operands.InputCount())
	}

	var before, after *ir.ParallelMove
	addBefore := func(dest, src ir.Location) {
		if before == nil {
			before = ir.NewParallelMove()
		}
		before.AddMove(dest, src)
	}
	addAfter := func(dest, src ir.Location) {
		if after == nil {
			after = ir.NewParallelMove()
		}
		after.AddMove(dest, src)
	}

	fixedFirst := locs.InputCount() > 0 && locs.In(0).IsRegister()
	for i, in := range operands.Inputs() {
		value, err := a.locationOf(in)
		if err != nil {
			return fmt.Errorf("%s input %d: %w", instr, i, err)
		}
		switch want := locs.In(i); {
		case want.IsRegister():
			addBefore(want, value)
		case want.IsUnallocated():
			locs.SetIn(i, value)
		default:
			return fmt.Errorf("%s input %d: unsupported location %s", instr, i, want)
		}
	}

	for i := 0; i < locs.TempCount(); i++ {
		if locs.Temp(i).IsUnallocated() {
			locs.SetTemp(i, ir.RegisterLocation(a.scratchSlot(i)))
		}
	}

	if out := locs.Out(); !out.IsInvalid() && operands.SSATemp() >= 0 {
		home := ir.RegisterLocation(a.valueSlot(operands))
		switch {
		case out.IsUnallocated() && out.Policy() == ir.PolicySameAsFirstInput:
			if in0 := locs.In(0); fixedFirst {
				locs.SetOut(in0)
				addAfter(home, in0)
			} else {
				addBefore(home, in0)
				locs.SetIn(0, home)
				locs.SetOut(home)
			}
		case out.IsUnallocated():
			locs.SetOut(home)
		case out.IsRegister():
			addAfter(home, out)
		}
	}

	if locs.ContainsCall() {
		for _, slot := range a.defined {
			locs.LiveRegisters().Add(slot)
		}
	}

	instr.SetLocs(locs)
	if env := instr.Env(); env != nil {
		if err := a.assignEnvironment(env); err != nil {
			return fmt.Errorf("%s: %w", instr, err)
		}
	}

	if before != nil {
		a.insert(b, b.IndexOf(instr), before)
	}
	if after != nil {
		a.insert(b, b.IndexOf(instr)+1, after)
	}
	a.define(operands)
	return nil
}

// insert places a move at position i of b. Moves carry an empty summary
// so that code generation knows they were allocated.
func (a *allocator) insert(b *ir.Block, i int, pm *ir.ParallelMove) {
	pm.SetLocs(ir.NewLocationSummary(0, 0, ir.NoCall))
	b.InsertAt(i, pm)
	a.res.MovesUsed++
}

func (a *allocator) assignEnvironment(env *ir.Environment) error {
	for e := env; e != nil; e = e.Outer() {
		locs := make([]ir.Location, e.Length())
		for i, v := range e.Values() {
			loc, err := a.locationOf(v)
			if err != nil {
				return fmt.Errorf("environment slot %d: %w", i, err)
			}
			locs[i] = loc
		}
		e.SetLocations(locs)
	}
	return nil
}

// phiMoves attaches the moves feeding the successor's phis to the Goto
// that leaves b.
func (a *allocator) phiMoves(b *ir.Block, gt *ir.Goto) {
	join := gt.Target
	ps := phis(join)
	if len(ps) == 0 {
		return
	}
	pred := -1
	for i, p := range join.Preds {
		if p == b {
			pred = i
			break
		}
	}
	if pred < 0 {
		ir.Invariantf("%s is not a predecessor of %s", b, join)
	}
	pm := ir.NewParallelMove()
	for _, phi := range ps {
		src, err := a.locationOf(phi.InputAt(pred))
		if err != nil {
			ir.Invariantf("phi input of %s: %v", join, err)
		}
		pm.AddMove(ir.RegisterLocation(a.valueSlot(phi)), src)
	}
	gt.Move = pm
	a.res.MovesUsed++
}
