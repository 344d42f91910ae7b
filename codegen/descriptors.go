package codegen

import (
	"github.com/chazu/bcgen/ir"
)

// ---------------------------------------------------------------------------
// Safepoints, PC descriptors, deopt points and exception handlers
// ---------------------------------------------------------------------------

// RecordSafepoint records the tagged frame slots live at the current
// offset. Register mode uses the live set the allocator computed for the
// call; otherwise every frame slot is reported, which over-approximates
// the live values but is always safe for the collector.
func (c *Compiler) RecordSafepoint(locs *ir.LocationSummary) {
	slots := c.StackSize()
	var live []int
	if c.opts.Optimizing && locs != nil && locs.LiveRegisters().Len() > 0 {
		live = locs.LiveRegisters().Slice()
	} else {
		live = make([]int, slots)
		for i := range live {
			live[i] = i
		}
	}
	c.code.StackMaps = append(c.code.StackMaps, StackMap{
		PC:        c.asm.CodeSize(),
		SlotCount: slots,
		Live:      live,
	})
}

// AddCurrentDescriptor records a descriptor at the current offset.
func (c *Compiler) AddCurrentDescriptor(kind ir.PcDescriptorKind, deoptID int, pos ir.TokenPosition) {
	tryIndex := ir.InvalidTryIndex
	if len(c.order) > 0 {
		tryIndex = c.CurrentBlock().TryIndex
	}
	c.code.Descriptors = append(c.code.Descriptors, PcDescriptor{
		PC:       c.asm.CodeSize(),
		Kind:     kind,
		DeoptID:  deoptID,
		TokenPos: pos,
		TryIndex: tryIndex,
	})
}

// AddDeoptIndexAtCall records the deopt continuation after a call in
// optimized code together with the environment to rebuild there.
func (c *Compiler) AddDeoptIndexAtCall(deoptID int, pos ir.TokenPosition, env *ir.Environment) {
	c.AddCurrentDescriptor(ir.PcDeopt, deoptID, pos)
	if env != nil {
		c.code.DeoptInfos = append(c.code.DeoptInfos, DeoptInfo{
			PC:      c.asm.CodeSize(),
			DeoptID: deoptID,
			Env:     env,
		})
	}
}

// RecordAfterCall marks the point right after a call instruction: the
// safepoint of the call and exactly one descriptor. In optimized code the
// descriptor is a deopt point whose environment no longer holds the
// call's pushed arguments; in unoptimized code it carries kind.
func (c *Compiler) RecordAfterCall(instr ir.Instruction, kind ir.PcDescriptorKind) {
	c.RecordSafepoint(instr.Locs())
	after := ir.DeoptAfter(instr.DeoptID())
	if !c.opts.Optimizing {
		c.AddCurrentDescriptor(kind, after, instr.TokenPos())
		return
	}
	// The environment belongs to the IR; drop from a copy.
	env := instr.Env().Copy()
	if env != nil {
		env.DropArguments(argumentCount(instr), c.opts.Asserts)
	}
	c.AddDeoptIndexAtCall(after, instr.TokenPos(), env)
}

func argumentCount(instr ir.Instruction) int {
	if call, ok := instr.(ir.CallInstruction); ok {
		return call.ArgumentCount()
	}
	return 0
}

// AddExceptionHandler registers the handler of try index tryIndex at pc.
func (c *Compiler) AddExceptionHandler(tryIndex, outerTryIndex, pc int, types []*ir.Type, needsStackTrace bool) {
	c.code.Handlers = append(c.code.Handlers, ExceptionHandler{
		TryIndex:        tryIndex,
		OuterTryIndex:   outerTryIndex,
		PC:              pc,
		HandledTypes:    types,
		NeedsStackTrace: needsStackTrace,
	})
}

// SetNeedsStackTrace marks the handler of tryIndex as needing the stack
// trace. The handler may be registered before or after the rethrow.
func (c *Compiler) SetNeedsStackTrace(tryIndex int) {
	c.needsStackTrace[tryIndex] = true
}
