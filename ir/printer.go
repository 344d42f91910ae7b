package ir

import (
	"fmt"
	"strings"
)

// valueName is how a definition is referenced from other instructions.
func valueName(v Instruction) string {
	if v == nil {
		return "<nil>"
	}
	if t := v.SSATemp(); t >= 0 {
		return fmt.Sprintf("v%d", t)
	}
	return v.Kind().Name()
}

// render formats "vN <- Name:deopt(args)".
func render(b *Base, args ...string) string {
	var sb strings.Builder
	if b.ssaTemp >= 0 {
		fmt.Fprintf(&sb, "v%d <- ", b.ssaTemp)
	}
	sb.WriteString(b.kind.Name())
	if b.deoptID != NoDeoptID {
		fmt.Fprintf(&sb, ":%d", b.deoptID)
	}
	sb.WriteString("(")
	sb.WriteString(strings.Join(args, ", "))
	sb.WriteString(")")
	return sb.String()
}

func inputNames(b *Base) []string {
	names := make([]string, len(b.inputs))
	for i, in := range b.inputs {
		names[i] = valueName(in)
	}
	return names
}

func argumentNames(args []*PushArgument) []string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = valueName(a)
	}
	return names
}

func (e *GraphEntry) String() string {
	if e.NormalEntry == nil {
		return "GraphEntry"
	}
	return "GraphEntry -> " + e.NormalEntry.String()
}

func (e *TargetEntry) String() string { return e.blockLabel() }
func (e *JoinEntry) String() string   { return "join " + e.blockLabel() }

func (e *CatchBlockEntry) String() string {
	return fmt.Sprintf("catch %s (try %d)", e.blockLabel(), e.CatchTryIndex)
}

func (b *Base) blockLabel() string {
	if b.block == nil {
		return "B?"
	}
	return b.block.String()
}

func (g *Goto) String() string {
	s := "goto"
	if g.deoptID != NoDeoptID {
		s += fmt.Sprintf(":%d", g.deoptID)
	}
	return s + " " + g.Target.String()
}

func (b *Branch) String() string {
	return fmt.Sprintf("Branch if %s goto (%s, %s)", b.Comparison, b.True, b.False)
}

func (r *Return) String() string  { return render(&r.Base, inputNames(&r.Base)...) }
func (t *Throw) String() string   { return render(&t.Base) }
func (t *ReThrow) String() string { return render(&t.Base, fmt.Sprintf("try %d", t.CatchTryIndex)) }

func (c *Constant) String() string {
	return render(&c.Base, "#"+FormatConstant(c.Value))
}

func (p *Parameter) String() string { return render(&p.Base, fmt.Sprintf("%d", p.Index)) }
func (p *Phi) String() string       { return render(&p.Base, inputNames(&p.Base)...) }

func (l *LoadLocal) String() string {
	return render(&l.Base, l.Local.Name)
}

func (s *StoreLocal) String() string {
	return render(&s.Base, s.Local.Name, valueName(s.inputs[0]))
}

func (p *PushArgument) String() string { return render(&p.Base, inputNames(&p.Base)...) }

func (pm *ParallelMove) String() string {
	moves := make([]string, len(pm.Moves))
	for i, m := range pm.Moves {
		moves[i] = m.Dest.String() + " <- " + m.Src.String()
	}
	return "ParallelMove " + strings.Join(moves, ", ")
}

func (l *LoadStaticField) String() string {
	return render(&l.Base, l.Field.Name, valueName(l.inputs[0]))
}

func (s *StoreStaticField) String() string {
	return render(&s.Base, s.Field.Name, valueName(s.inputs[0]))
}

func (s *InitStaticField) String() string {
	return render(&s.Base, s.Field.Name, valueName(s.inputs[0]))
}

func (l *LoadField) String() string {
	return render(&l.Base, valueName(l.inputs[0]), fmt.Sprintf("%s {%d}", l.Name, l.Offset))
}

func (s *StoreInstanceField) String() string {
	return render(&s.Base, fmt.Sprintf("%s {%d}", s.Name, s.Offset), valueName(s.inputs[0]), valueName(s.inputs[1]))
}

func (l *LoadClassId) String() string { return render(&l.Base, inputNames(&l.Base)...) }

func (c *InstanceCall) String() string {
	return render(&c.Base, append([]string{c.Selector}, argumentNames(c.Args)...)...)
}

func (c *StaticCall) String() string {
	return render(&c.Base, append([]string{c.Function.Name}, argumentNames(c.Args)...)...)
}

func (c *ClosureCall) String() string {
	return render(&c.Base, append(inputNames(&c.Base), argumentNames(c.Args)...)...)
}

func (c *PolymorphicInstanceCall) String() string {
	return render(&c.Base, append([]string{c.Call.Selector}, argumentNames(c.Call.Args)...)...)
}

func (s *StringInterpolate) String() string { return render(&s.Base, inputNames(&s.Base)...) }

func (n *NativeCall) String() string {
	return render(&n.Base, n.Native.Name)
}

func (c *StrictCompare) String() string {
	args := append([]string{c.Op.Symbol()}, inputNames(&c.Base)...)
	if c.NeedsNumberCheck {
		args = append(args, "with number check")
	}
	return render(&c.Base, args...)
}

func (c *Compare) String() string {
	return render(&c.Base, append([]string{c.Op.Symbol()}, inputNames(&c.Base)...)...)
}

func (n *BooleanNegate) String() string { return render(&n.Base, inputNames(&n.Base)...) }

func (a *AssertAssignable) String() string {
	return render(&a.Base, append(inputNames(&a.Base), a.DstType.Name, "'"+a.DstName+"'")...)
}

func (a *AssertBoolean) String() string { return render(&a.Base, inputNames(&a.Base)...) }

func (c *CheckStackOverflow) String() string {
	return render(&c.Base, fmt.Sprintf("depth %d", c.LoopDepth))
}

func (d *DebugStepCheck) String() string { return render(&d.Base) }

func (a *AllocateObject) String() string {
	return render(&a.Base, append([]string{a.Class.Name}, argumentNames(a.Args)...)...)
}

func (a *AllocateContext) String() string {
	return render(&a.Base, fmt.Sprintf("%d", a.NumVariables))
}

func (c *CloneContext) String() string { return render(&c.Base, inputNames(&c.Base)...) }
func (c *CreateArray) String() string  { return render(&c.Base, inputNames(&c.Base)...) }

func (i *InstantiateType) String() string {
	return render(&i.Base, i.Type.Name, valueName(i.inputs[0]))
}

func (i *InstantiateTypeArguments) String() string {
	return render(&i.Base, i.TypeArguments.String(), valueName(i.inputs[0]))
}

func (l *LoadIndexed) String() string {
	return render(&l.Base, append(inputNames(&l.Base), l.ClassID.String())...)
}

func (s *StoreIndexed) String() string {
	return render(&s.Base, append(inputNames(&s.Base), s.ClassID.String())...)
}

func (g *Generic) String() string { return render(&g.Base, inputNames(&g.Base)...) }

// ---------------------------------------------------------------------------
// Graph dumps
// ---------------------------------------------------------------------------

// String prints the graph in codegen order, one instruction per line.
func (g *FlowGraph) String() string {
	var sb strings.Builder
	name := "<anonymous>"
	if g.Function != nil {
		name = g.Function.Name
	}
	fmt.Fprintf(&sb, "==== %s\n", name)
	for _, b := range g.CodegenBlockOrder() {
		fmt.Fprintf(&sb, "%2d: %s", b.ID, b.Entry)
		if b.TryIndex != InvalidTryIndex {
			fmt.Fprintf(&sb, " try_idx %d", b.TryIndex)
		}
		sb.WriteString("\n")
		if je, ok := b.Entry.(*JoinEntry); ok {
			for _, phi := range je.Phis {
				fmt.Fprintf(&sb, "    %s\n", phi)
			}
		}
		for _, instr := range b.Instrs {
			fmt.Fprintf(&sb, "    %s\n", instr)
		}
	}
	return sb.String()
}
