package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func init() {
	register(ir.KindLoadStaticField, summary[*ir.LoadStaticField](1, ir.RequiresRegister(), ir.NoCall), emitLoadStaticField)
	register(ir.KindStoreStaticField, storeStaticFieldLocations, emitStoreStaticField)
	register(ir.KindInitStaticField, summary[*ir.InitStaticField](1, ir.NoLocation(), ir.Call), emitInitStaticField)
	register(ir.KindLoadField, summary[*ir.LoadField](1, ir.RequiresRegister(), ir.NoCall), emitLoadField)
	register(ir.KindStoreInstanceField, summary[*ir.StoreInstanceField](2, ir.NoLocation(), ir.NoCall), emitStoreInstanceField)
	register(ir.KindLoadClassId, summary[*ir.LoadClassId](1, ir.RequiresRegister(), ir.NoCall), emitLoadClassId)
}

// staticValueSlot is the word offset of the value in a field holder.
const staticValueSlot = ir.StaticValueOffset / ir.WordSize

// ---------------------------------------------------------------------------
// Static fields
// ---------------------------------------------------------------------------

// emitLoadStaticField reads through the holder in register mode. The stack
// form names the canonical field in the pool.
func emitLoadStaticField(c *Compiler, l *ir.LoadStaticField) {
	if c.opts.Optimizing {
		locs := l.Locs()
		c.asm.Emit(bytecode.OpLoadField, locs.Out().Reg(), locs.In(0).Reg(), staticValueSlot)
		return
	}
	c.asm.Emit(bytecode.OpPushStatic, c.asm.AddConstant(l.Field.Original()))
}

func storeStaticFieldLocations(*ir.StoreStaticField, bool) *ir.LocationSummary {
	locs := ir.NewLocationSummary(1, 1, ir.NoCall)
	locs.SetIn(0, ir.RequiresRegister())
	locs.SetTemp(0, ir.RequiresRegister())
	return locs
}

func emitStoreStaticField(c *Compiler, s *ir.StoreStaticField) {
	if c.opts.Optimizing {
		locs := s.Locs()
		holder := locs.Temp(0).Reg()
		c.asm.LoadConstant(holder, s.Field.Original())
		c.asm.Emit(bytecode.OpStoreField, holder, staticValueSlot, locs.In(0).Reg())
		return
	}
	c.asm.Emit(bytecode.OpStoreStaticTOS, c.asm.AddConstant(s.Field.Original()))
}

// emitInitStaticField runs the field initializer, which may run arbitrary
// code.
func emitInitStaticField(c *Compiler, i *ir.InitStaticField) {
	if c.opts.Optimizing {
		c.Bailout("InitStaticField %s in optimized code", i.Field.Name)
	}
	c.asm.Emit(bytecode.OpInitStaticTOS)
	c.RecordSafepoint(i.Locs())
	c.AddCurrentDescriptor(ir.PcOther, i.DeoptID(), i.TokenPos())
}

// ---------------------------------------------------------------------------
// Instance fields
// ---------------------------------------------------------------------------

func fieldSlot(c *Compiler, name string, offset int) int {
	c.assert(offset%ir.WordSize == 0, "field %s offset %d is not word aligned", name, offset)
	return offset / ir.WordSize
}

func emitLoadField(c *Compiler, l *ir.LoadField) {
	slot := fieldSlot(c, l.Name, l.Offset)
	if c.opts.Optimizing {
		locs := l.Locs()
		c.asm.Emit(bytecode.OpLoadField, locs.Out().Reg(), locs.In(0).Reg(), slot)
		return
	}
	c.asm.Emit(bytecode.OpLoadFieldTOS, slot)
}

func emitStoreInstanceField(c *Compiler, s *ir.StoreInstanceField) {
	slot := fieldSlot(c, s.Name, s.Offset)
	if c.opts.Optimizing {
		locs := s.Locs()
		c.asm.Emit(bytecode.OpStoreField, locs.In(0).Reg(), slot, locs.In(1).Reg())
		return
	}
	c.asm.Emit(bytecode.OpStoreFieldTOS, slot)
}

func emitLoadClassId(c *Compiler, l *ir.LoadClassId) {
	if c.opts.Optimizing {
		locs := l.Locs()
		c.asm.Emit(bytecode.OpLoadClassId, locs.Out().Reg(), locs.In(0).Reg())
		return
	}
	c.asm.Emit(bytecode.OpLoadClassIdTOS)
}
