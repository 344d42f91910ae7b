package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/chazu/bcgen/ir"
)

// Entry is one instruction of the table with its resolved position.
type Entry struct {
	Block    *ir.Block
	Instr    ir.Instruction
	Pos      Position
	Resolved bool
}

// PositionTable maps the instructions of a graph to source positions, in
// codegen order.
type PositionTable struct {
	script  *Script
	entries []Entry
}

// NewPositionTable walks g in codegen order. Block entries, phis and
// parameters are omitted; a branch stands for its fused comparison.
func NewPositionTable(g *ir.FlowGraph, script *Script) *PositionTable {
	t := &PositionTable{script: script}
	for _, b := range g.CodegenBlockOrder() {
		for _, instr := range b.Instrs {
			e := Entry{Block: b, Instr: instr}
			e.Pos, e.Resolved = script.Resolve(instr.TokenPos())
			t.entries = append(t.entries, e)
		}
	}
	return t
}

// Entries returns every instruction of the table.
func (t *PositionTable) Entries() []Entry { return t.entries }

// At returns the instructions positioned at line and col. A negative col
// matches any column of the line.
func (t *PositionTable) At(line, col int) []ir.Instruction {
	var out []ir.Instruction
	for _, e := range t.entries {
		if !e.Resolved || e.Pos.Line != line {
			continue
		}
		if col >= 0 && e.Pos.Column != col {
			continue
		}
		out = append(out, e.Instr)
	}
	return out
}

// KindAt returns the first instruction of kind at line and col.
func (t *PositionTable) KindAt(kind ir.Kind, line, col int) (ir.Instruction, bool) {
	return t.first(line, col, func(instr ir.Instruction) bool {
		return instr.Kind() == kind
	})
}

// InstanceCallAt returns the instance call for operator op at line and col.
func (t *PositionTable) InstanceCallAt(line, col int, op ir.Token) (*ir.InstanceCall, bool) {
	instr, ok := t.first(line, col, func(instr ir.Instruction) bool {
		call, ok := instr.(*ir.InstanceCall)
		return ok && call.Op == op
	})
	if !ok {
		return nil, false
	}
	return instr.(*ir.InstanceCall), true
}

// StaticCallAt returns the static call whose target name contains needle.
func (t *PositionTable) StaticCallAt(needle string, line, col int) (*ir.StaticCall, bool) {
	instr, ok := t.first(line, col, func(instr ir.Instruction) bool {
		call, ok := instr.(*ir.StaticCall)
		return ok && call.Function != nil && strings.Contains(call.Function.Name, needle)
	})
	if !ok {
		return nil, false
	}
	return instr.(*ir.StaticCall), true
}

// FuzzyMatchAt returns the first instruction whose rendering contains needle.
func (t *PositionTable) FuzzyMatchAt(needle string, line, col int) (ir.Instruction, bool) {
	return t.first(line, col, func(instr ir.Instruction) bool {
		return strings.Contains(fmt.Sprint(instr), needle)
	})
}

func (t *PositionTable) first(line, col int, match func(ir.Instruction) bool) (ir.Instruction, bool) {
	for _, instr := range t.At(line, col) {
		if match(instr) {
			return instr, true
		}
	}
	return nil, false
}

// Dump writes the table block by block. Real positions print as LL:CC,
// synthetic ones by their classifying name.
func (t *PositionTable) Dump(w io.Writer) error {
	var last *ir.Block
	for _, e := range t.entries {
		if e.Block != last {
			if _, err := fmt.Fprintf(w, "B%d:\n", e.Block.ID); err != nil {
				return err
			}
			last = e.Block
		}
		var err error
		if e.Resolved {
			_, err = fmt.Fprintf(w, "       %02d:%02d -- %s\n", e.Pos.Line, e.Pos.Column, e.Instr)
		} else {
			_, err = fmt.Fprintf(w, "%12s -- %s\n", e.Instr.TokenPos(), e.Instr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// String returns the Dump output.
func (t *PositionTable) String() string {
	var sb strings.Builder
	_ = t.Dump(&sb)
	return sb.String()
}
