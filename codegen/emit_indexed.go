package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindLoadIndexed, summary[*ir.LoadIndexed](2, ir.RequiresRegister(), ir.NoCall), emitLoadIndexed)
	register(ir.KindStoreIndexed, summary[*ir.StoreIndexed](3, ir.NoLocation(), ir.NoCall), emitStoreIndexed)
}

// loadIndexedOps selects the register-mode load by element representation.
var loadIndexedOps = map[ir.Representation]bytecode.Opcode{
	ir.Tagged:           bytecode.OpLoadIndexed,
	ir.UnboxedInt32:     bytecode.OpLoadIndexedInt32,
	ir.UnboxedUint32:    bytecode.OpLoadIndexedUint32,
	ir.UnboxedInt64:     bytecode.OpLoadIndexedInt64,
	ir.UnboxedDouble:    bytecode.OpLoadIndexedDouble,
	ir.UnboxedFloat32x4: bytecode.OpLoadIndexedFloat32x4,
	ir.UnboxedInt32x4:   bytecode.OpLoadIndexedInt32x4,
	ir.UnboxedFloat64x2: bytecode.OpLoadIndexedFloat64x2,
}

// emitLoadIndexed reads one element. Register mode carries the element
// class so the interpreter knows the element width.
func emitLoadIndexed(c *Compiler, l *ir.LoadIndexed) {
	if !c.opts.Optimizing {
		c.assert(l.ClassID == ir.ArrayCid, "LoadIndexedTOS on %s", l.ClassID)
		c.asm.Emit(bytecode.OpLoadIndexedTOS)
		return
	}
	rep, ok := ir.ElementRepresentation(l.ClassID)
	if !ok {
		c.Bailout("LoadIndexed on non-indexable %s", l.ClassID)
	}
	op, ok := loadIndexedOps[rep]
	if !ok {
		c.Bailout("LoadIndexed of %s elements", rep)
	}
	if got := l.InputAt(1).Representation(); got != ir.Tagged {
		c.Bailout("LoadIndexed: representation mismatch on index (%s)", got)
	}
	locs := l.Locs()
	c.asm.Emit(op, locs.Out().Reg(), locs.In(0).Reg(), locs.In(1).Reg(), int(l.ClassID))
}

// emitStoreIndexed writes one element. Only tagged arrays have a store
// instruction.
func emitStoreIndexed(c *Compiler, s *ir.StoreIndexed) {
	if !c.opts.Optimizing {
		c.assert(s.ClassID == ir.ArrayCid, "StoreIndexedTOS on %s", s.ClassID)
		c.asm.Emit(bytecode.OpStoreIndexedTOS)
		return
	}
	for i := 1; i < s.InputCount(); i++ {
		want := s.RequiredInputRepresentation(i)
		if got := s.InputAt(i).Representation(); got != want {
			c.Bailout("StoreIndexed: representation mismatch on input %d (%s, want %s)", i, got, want)
		}
	}
	if s.ClassID != ir.ArrayCid {
		c.Bailout("StoreIndexed into %s", s.ClassID)
	}
	locs := s.Locs()
	c.asm.Emit(bytecode.OpStoreIndexed, locs.In(0).Reg(), locs.In(1).Reg(), locs.In(2).Reg())
}
