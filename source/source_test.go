package source_test

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/chazu/bcgen/alloc"
	"github.com/chazu/bcgen/codegen"
	"github.com/chazu/bcgen/ir"
	"github.com/chazu/bcgen/source"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Script
// ---------------------------------------------------------------------------

func TestResolve(t *testing.T) {
	s := source.NewScript("t", "ab\ncd\n\nπx\n")
	tests := []struct {
		pos       ir.TokenPosition
		line, col int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3}, // newline
		{3, 2, 1},
		{6, 3, 1},
		{9, 4, 2}, // after the two-byte rune
	}
	for _, tt := range tests {
		p, ok := s.Resolve(tt.pos)
		if !ok || p.Line != tt.line || p.Column != tt.col {
			t.Errorf("Resolve(%d) = %v %t, want %d:%d", tt.pos, p, ok, tt.line, tt.col)
			continue
		}
		back, err := s.TokenPos(tt.line, tt.col)
		if err != nil || back != tt.pos {
			t.Errorf("TokenPos(%d, %d) = %d, %v, want %d", tt.line, tt.col, back, err, tt.pos)
		}
	}

	for _, pos := range []ir.TokenPosition{ir.NoSourcePos, ir.ParallelMovePos, 100} {
		if p, ok := s.Resolve(pos); ok {
			t.Errorf("Resolve(%s) = %v, want no position", pos, p)
		}
	}
	if s.LineCount() != 4 {
		t.Errorf("LineCount = %d, want 4", s.LineCount())
	}
	if got := s.Line(4); got != "πx" {
		t.Errorf("Line(4) = %q", got)
	}
}

func TestTokenPosOutOfRange(t *testing.T) {
	s := source.NewScript("t", "ab\ncd\n")
	for _, lc := range [][2]int{{0, 1}, {3, 1}, {1, 0}, {1, 4}, {2, 9}} {
		if pos, err := s.TokenPos(lc[0], lc[1]); err == nil {
			t.Errorf("TokenPos(%d, %d) = %d, want error", lc[0], lc[1], pos)
		}
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

// find returns the position of the nth occurrence of needle in s.
func find(t *testing.T, s *source.Script, needle string, nth int) ir.TokenPosition {
	t.Helper()
	pos, ok := s.Find(needle, nth)
	if !ok {
		t.Fatalf("%q #%d not in script", needle, nth)
	}
	return pos
}

const instanceCallsScript = "var x = 5;\nvar y = 5;\nmain() {\n  var z = x + y;\n  return z;\n}\n"

// instanceCallsGraph is main() { var z = x + y; return z; } in SSA form.
func instanceCallsGraph(t *testing.T, s *source.Script) *ir.FlowGraph {
	b := ir.NewBuilder(&ir.Function{Name: "main"})
	b.SetNormalEntry(b.NewTarget())

	fn := find(t, s, "(", 0)
	ir.Emit(b, ir.NewDebugStepCheck(ir.PcRuntimeCall, fn))
	ir.Emit(b, ir.NewCheckStackOverflow(0, fn))

	load := func(name string, pos ir.TokenPosition) ir.Instruction {
		field := &ir.Field{Name: name, IsStatic: true}
		holder := b.Constant(field, ir.ConstantPos)
		return ir.Emit(b, ir.NewLoadStaticField(holder, field, pos))
	}
	x := load("x", find(t, s, "x", 1))
	y := load("y", find(t, s, "y", 1))
	sum := ir.Emit(b, ir.NewInstanceCall("+", ir.TokenAdd,
		[]*ir.PushArgument{b.Push(x), b.Push(y)}, find(t, s, "+", 0)))

	ret := find(t, s, "return", 0)
	ir.Emit(b, ir.NewDebugStepCheck(ir.PcRuntimeCall, ret))
	b.Return(sum, ret)
	return b.Finish()
}

func TestInstanceCallPositions(t *testing.T) {
	s := source.NewScript("main.src", instanceCallsScript)
	table := source.NewPositionTable(instanceCallsGraph(t, s), s)

	if _, ok := table.KindAt(ir.KindDebugStepCheck, 3, 5); !ok {
		t.Errorf("no DebugStepCheck at 3:5:\n%s", table)
	}
	if _, ok := table.KindAt(ir.KindCheckStackOverflow, 3, 5); !ok {
		t.Errorf("no CheckStackOverflow at 3:5:\n%s", table)
	}
	if call, ok := table.InstanceCallAt(4, 13, ir.TokenAdd); !ok || call.Selector != "+" {
		t.Errorf("no + call at 4:13:\n%s", table)
	}
	if _, ok := table.InstanceCallAt(4, 13, ir.TokenSub); ok {
		t.Error("matched a - call at 4:13")
	}
	if _, ok := table.KindAt(ir.KindDebugStepCheck, 5, 3); !ok {
		t.Errorf("no DebugStepCheck at 5:3:\n%s", table)
	}
	if _, ok := table.KindAt(ir.KindReturn, 5, 3); !ok {
		t.Errorf("no Return at 5:3:\n%s", table)
	}
	if got := len(table.At(4, -1)); got != 3 {
		t.Errorf("%d instructions on line 4, want 3 (two loads and the call)", got)
	}
}

// icCallPositions compiles g and resolves the descriptors recorded after its
// instance calls: the call kind in unoptimized code, a deopt point in
// optimized code.
func icCallPositions(t *testing.T, g *ir.FlowGraph, s *source.Script, optimizing bool) []string {
	t.Helper()
	opts := codegen.DefaultOptions()
	opts.Optimizing = optimizing
	if optimizing {
		if _, err := alloc.Allocate(g, codegen.LocationsFor); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	code, err := codegen.Compile(context.Background(), g, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	kind := ir.PcIcCall
	if optimizing {
		kind = ir.PcDeopt
	}
	var out []string
	for _, d := range code.DescriptorsOfKind(kind) {
		p, ok := s.Resolve(d.TokenPos)
		if !ok {
			t.Errorf("descriptor %s has no source position", d)
			continue
		}
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

func TestInstanceCallDescriptorPositions(t *testing.T) {
	s := source.NewScript("main.src", instanceCallsScript)
	for _, optimizing := range []bool{false, true} {
		got := icCallPositions(t, instanceCallsGraph(t, s), s, optimizing)
		if diff := cmp.Diff([]string{"4:13"}, got); diff != "" {
			t.Errorf("optimizing=%t (-want +got):\n%s", optimizing, diff)
		}
	}
}

const forLoopScript = "var x = 0;\nvar y = 5;\nmain() {\n  for (var i = 0; i < 10; i++) {\n    x += i;\n  }\n  return x;\n}\n"

// forLoopGraph is the unoptimized graph of
//
//	for (var i = 0; i < 10; i++) { x += i; }
//	return x;
func forLoopGraph(t *testing.T, s *source.Script) *ir.FlowGraph {
	i := &ir.LocalVariable{Name: "i", Index: -1}
	field := &ir.Field{Name: "x", IsStatic: true}

	b := ir.NewBuilder(&ir.Function{Name: "main"})
	entry := b.NewTarget()
	b.SetNormalEntry(entry)
	header := b.NewJoin()
	body := b.NewTarget()
	exit := b.NewTarget()

	fn := find(t, s, "(", 0)
	ir.Emit(b, ir.NewDebugStepCheck(ir.PcRuntimeCall, fn))
	ir.Emit(b, ir.NewCheckStackOverflow(0, fn))
	ir.Emit(b, ir.NewStoreLocal(i, b.Constant(int64(0), ir.ConstantPos), find(t, s, "=", 2)))
	b.Goto(header)

	// i < 10
	b.SetCurrent(header)
	ir.Emit(b, ir.NewCheckStackOverflow(1, find(t, s, "for", 0)))
	cond := ir.Emit(b, ir.NewLoadLocal(i, find(t, s, "i", 2)))
	ten := b.Constant(int64(10), ir.ConstantPos)
	lt := find(t, s, "<", 0)
	less := ir.Emit(b, ir.NewInstanceCall("<", ir.TokenLt,
		[]*ir.PushArgument{b.Push(cond), b.Push(ten)}, lt))
	yes := b.Constant(true, ir.ConstantPos)
	b.Branch(ir.NewStrictCompare(ir.TokenEqStrict, less, yes, false, lt), body, exit)

	// x += i
	b.SetCurrent(body)
	xPos := find(t, s, "x", 1)
	holder := b.Constant(field, ir.ConstantPos)
	old := ir.Emit(b, ir.NewLoadStaticField(holder, field, xPos))
	inc := ir.Emit(b, ir.NewLoadLocal(i, find(t, s, "i", 4)))
	sum := ir.Emit(b, ir.NewInstanceCall("+", ir.TokenAdd,
		[]*ir.PushArgument{b.Push(old), b.Push(inc)}, find(t, s, "+=", 0)))
	ir.Emit(b, ir.NewStoreStaticField(field, sum, xPos))

	// i++
	iPos := find(t, s, "i++", 0)
	cur := ir.Emit(b, ir.NewLoadLocal(i, iPos))
	one := b.Constant(int64(1), ir.ConstantPos)
	next := ir.Emit(b, ir.NewInstanceCall("+", ir.TokenAdd,
		[]*ir.PushArgument{b.Push(cur), b.Push(one)}, find(t, s, "++", 0)))
	ir.Emit(b, ir.NewStoreLocal(i, next, iPos))
	b.Goto(header)

	// return x
	b.SetCurrent(exit)
	holder = b.Constant(field, ir.ConstantPos)
	result := ir.Emit(b, ir.NewLoadStaticField(holder, field, find(t, s, "x", 2)))
	ret := find(t, s, "return", 0)
	ir.Emit(b, ir.NewDebugStepCheck(ir.PcRuntimeCall, ret))
	b.Return(result, ret)

	g := b.Finish()
	g.NumStackLocals = 1
	return g
}

func TestForLoopPositions(t *testing.T) {
	s := source.NewScript("main.src", forLoopScript)
	table := source.NewPositionTable(forLoopGraph(t, s), s)

	kinds := []struct {
		kind      ir.Kind
		line, col int
	}{
		{ir.KindStoreLocal, 4, 14},
		{ir.KindLoadLocal, 4, 19},
		{ir.KindLoadStaticField, 5, 5},
		{ir.KindStoreStaticField, 5, 5},
		{ir.KindLoadLocal, 5, 10},
		{ir.KindLoadLocal, 4, 27},
		{ir.KindStoreLocal, 4, 27},
		{ir.KindLoadStaticField, 7, 10},
		{ir.KindDebugStepCheck, 7, 3},
		{ir.KindReturn, 7, 3},
	}
	for _, k := range kinds {
		if _, ok := table.KindAt(k.kind, k.line, k.col); !ok {
			t.Errorf("no %s at %d:%d", k.kind, k.line, k.col)
		}
	}

	calls := []struct {
		op        ir.Token
		line, col int
	}{
		{ir.TokenLt, 4, 21},
		{ir.TokenAdd, 5, 7},
		{ir.TokenAdd, 4, 28}, // increment
	}
	for _, c := range calls {
		if _, ok := table.InstanceCallAt(c.line, c.col, c.op); !ok {
			t.Errorf("no %s call at %d:%d", c.op.Name(), c.line, c.col)
		}
	}

	if _, ok := table.FuzzyMatchAt("Branch if StrictCompare", 4, 21); !ok {
		t.Errorf("fused branch is not at the loop condition:\n%s", table)
	}
	if t.Failed() {
		t.Logf("table:\n%s", table)
	}
}

func TestForLoopDescriptorPositions(t *testing.T) {
	s := source.NewScript("main.src", forLoopScript)
	got := icCallPositions(t, forLoopGraph(t, s), s, false)
	if diff := cmp.Diff([]string{"4:21", "4:28", "5:7"}, got); diff != "" {
		t.Errorf("call descriptors (-want +got):\n%s", diff)
	}
}

func TestStaticCallAt(t *testing.T) {
	s := source.NewScript("main.src", "main() {\n  print(1);\n}\n")
	b := ir.NewBuilder(&ir.Function{Name: "main"})
	b.SetNormalEntry(b.NewTarget())
	one := b.Constant(int64(1), ir.ConstantPos)
	printFn := &ir.Function{Name: "print", NumParameters: 1, IsStatic: true}
	call := ir.Emit(b, ir.NewStaticCall(printFn, []*ir.PushArgument{b.Push(one)}, find(t, s, "print", 0)))
	b.Return(call, ir.NoSourcePos)
	table := source.NewPositionTable(b.Finish(), s)

	if _, ok := table.StaticCallAt("print", 2, 3); !ok {
		t.Errorf("no call to print at 2:3:\n%s", table)
	}
	if _, ok := table.StaticCallAt("print", 2, -1); !ok {
		t.Error("any-column lookup missed the call")
	}
	if _, ok := table.StaticCallAt("assert", 2, 3); ok {
		t.Error("matched the wrong target")
	}
}

// The return a function gets without a return statement sits on its
// closing brace.
func TestImplicitReturnPosition(t *testing.T) {
	s := source.NewScript("main.src", "main() {\n  print(1);\n}\n")
	b := ir.NewBuilder(&ir.Function{Name: "main"})
	b.SetNormalEntry(b.NewTarget())
	one := b.Constant(int64(1), ir.ConstantPos)
	printFn := &ir.Function{Name: "print", NumParameters: 1, IsStatic: true}
	ir.Emit(b, ir.NewStaticCall(printFn, []*ir.PushArgument{b.Push(one)}, find(t, s, "print", 0)))
	brace := find(t, s, "}", 0)
	ir.Emit(b, ir.NewDebugStepCheck(ir.PcRuntimeCall, brace))
	b.Return(b.Constant(ir.Null, ir.ConstantPos), brace)
	g := b.Finish()

	table := source.NewPositionTable(g, s)
	for _, kind := range []ir.Kind{ir.KindDebugStepCheck, ir.KindReturn} {
		if _, ok := table.KindAt(kind, 3, 1); !ok {
			t.Errorf("no %s at 3:1:\n%s", kind, table)
		}
	}

	code, err := codegen.Compile(context.Background(), g, codegen.DefaultOptions())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	steps := code.DescriptorsOfKind(ir.PcRuntimeCall)
	if len(steps) != 1 {
		t.Fatalf("%d runtime-call descriptors, want 1:\n%s", len(steps), code)
	}
	if p, ok := s.Resolve(steps[0].TokenPos); !ok || p.String() != "3:1" {
		t.Errorf("step check resolves to %v (%t), want 3:1", p, ok)
	}
}

// ---------------------------------------------------------------------------
// Dump
// ---------------------------------------------------------------------------

func TestDump(t *testing.T) {
	s := source.NewScript("main.src", instanceCallsScript)
	out := source.NewPositionTable(instanceCallsGraph(t, s), s).String()

	for _, want := range []string{
		"B1:\n",
		"       03:05 -- DebugStepCheck",
		"       04:13 -- v",
		"    constant -- v",
		"    push-arg -- v",
		"       05:03 -- Return",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump is missing %q:\n%s", want, out)
		}
	}
}
