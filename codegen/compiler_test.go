package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Branch fusion and fall-through
// ---------------------------------------------------------------------------

func TestBranchFallsThroughToFalse(t *testing.T) {
	g, _ := diamond(ir.TokenEqStrict)
	code := mustCompile(t, g, stackOptions())
	instrs := decode(t, code)

	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPushConstant, bytecode.OpPushConstant,
		bytecode.OpIfEqStrictTOS,
		bytecode.OpJump, // to left
		bytecode.OpJump, // right: to join
		bytecode.OpPushConstant,
		bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s\n%s", diff, code.Disassemble())
	}
	join := instrs[len(instrs)-2].Offset
	for _, i := range []int{4, 5} {
		if got := instrs[i].JumpTarget(); got != join {
			t.Errorf("jump %d targets %04d, want %04d", i, got, join)
		}
	}
}

func TestBranchFallsThroughToTrue(t *testing.T) {
	g, blocks := diamond(ir.TokenEqStrict)
	entry, left, right, join := blocks[0], blocks[1], blocks[2], blocks[3]
	g.SetBlockOrder([]*ir.Block{g.Entry, entry, left, right, join})

	code := mustCompile(t, g, stackOptions())
	instrs := decode(t, code)

	// The test flips so that the next instruction handles the false side.
	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPushConstant, bytecode.OpPushConstant,
		bytecode.OpIfNeStrictTOS,
		bytecode.OpJump, // to right
		bytecode.OpJump, // left: to join
		bytecode.OpPushConstant,
		bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s", diff)
	}
	if got, want := instrs[4].JumpTarget(), instrs[5].Offset+instrs[5].Op.Size(); got != want {
		t.Errorf("false jump targets %04d, want right block at %04d", got, want)
	}
}

func TestBranchWithoutFallThrough(t *testing.T) {
	g, blocks := diamond(ir.TokenNeStrict)
	entry, left, right, join := blocks[0], blocks[1], blocks[2], blocks[3]
	g.SetBlockOrder([]*ir.Block{g.Entry, entry, join, left, right})

	code := mustCompile(t, g, stackOptions())
	instrs := decode(t, code)

	// !== tested for the false side is ===.
	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPushConstant, bytecode.OpPushConstant,
		bytecode.OpIfEqStrictTOS,
		bytecode.OpJump, // to right
		bytecode.OpJump, // to left
		bytecode.OpPushConstant,
		bytecode.OpReturnTOS,
		bytecode.OpJump, // left: to join
		bytecode.OpJump, // right: to join
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s", diff)
	}
}

func TestConditionFor(t *testing.T) {
	a, b := &bytecode.Label{}, &bytecode.Label{}
	tests := []struct {
		name   string
		labels BranchLabels
		want   Condition
	}{
		{"false follows", BranchLabels{True: a, False: b, FallThrough: b}, NextIsTrue},
		{"true follows", BranchLabels{True: a, False: b, FallThrough: a}, NextIsFalse},
		{"neither follows", BranchLabels{True: a, False: b}, NextIsFalse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conditionFor(tt.labels); got != tt.want {
				t.Errorf("conditionFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGraphEntryJumpsWhenNormalEntryIsNotNext(t *testing.T) {
	g, blocks := diamond(ir.TokenEqStrict)
	entry, left, right, join := blocks[0], blocks[1], blocks[2], blocks[3]
	g.SetBlockOrder([]*ir.Block{g.Entry, left, entry, right, join})

	instrs := decode(t, mustCompile(t, g, stackOptions()))
	if instrs[1].Op != bytecode.OpJump {
		t.Fatalf("second instruction is %s, want JUMP", instrs[1].Op)
	}
	// left is empty apart from its jump to join; entry starts after it.
	if got, want := instrs[1].JumpTarget(), instrs[3].Offset; got != want {
		t.Errorf("entry jump targets %04d, want %04d", got, want)
	}
}

func TestStrictCompareAsValue(t *testing.T) {
	b := straightLine("value", 0)
	x := b.Constant(int64(1), ir.ConstantPos)
	y := b.Constant(int64(2), ir.ConstantPos)
	cmpInstr := ir.Emit(b, ir.NewStrictCompare(ir.TokenEqStrict, x, y, false, 5))
	b.Return(cmpInstr, 6)
	code := mustCompile(t, b.Finish(), stackOptions())
	instrs := decode(t, code)

	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPushConstant, bytecode.OpPushConstant,
		bytecode.OpIfEqStrictTOS,
		bytecode.OpJump,         // to is-true
		bytecode.OpPushConstant, // false
		bytecode.OpJump,         // to done
		bytecode.OpPushConstant, // true
		bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s", diff)
	}
	if v := code.Pool.At(instrs[5].Operands[0]).Value; v != false {
		t.Errorf("is-false pushes %v", v)
	}
	if v := code.Pool.At(instrs[7].Operands[0]).Value; v != true {
		t.Errorf("is-true pushes %v", v)
	}
	if got := instrs[4].JumpTarget(); got != instrs[7].Offset {
		t.Errorf("is-true jump targets %04d, want %04d", got, instrs[7].Offset)
	}
	if got := instrs[6].JumpTarget(); got != instrs[8].Offset {
		t.Errorf("done jump targets %04d, want %04d", got, instrs[8].Offset)
	}
}

func TestStrictCompareNumberCheck(t *testing.T) {
	tests := []struct {
		name        string
		pos         ir.TokenPosition
		descriptors int
	}{
		{"real position", 12, 1},
		{"synthetic position", ir.NoSourcePos, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ir.NewBuilder(&ir.Function{Name: "num"})
			entry := b.NewTarget()
			b.SetNormalEntry(entry)
			yes, no := b.NewTarget(), b.NewTarget()
			x := b.Constant(1.5, ir.ConstantPos)
			y := b.Constant(1.5, ir.ConstantPos)
			b.Branch(ir.NewStrictCompare(ir.TokenEqStrict, x, y, true, tt.pos), yes, no)
			b.SetCurrent(yes)
			b.Return(b.Constant(true, ir.ConstantPos), 20)
			b.SetCurrent(no)
			b.Return(b.Constant(false, ir.ConstantPos), 21)

			code := mustCompile(t, b.Finish(), stackOptions())
			instrs := decode(t, code)
			if _, ok := find(instrs, bytecode.OpIfEqStrictNumTOS); !ok {
				t.Errorf("no number-checking test:\n%s", code.Disassemble())
			}
			got := code.DescriptorsOfKind(ir.PcRuntimeCall)
			if len(got) != tt.descriptors {
				t.Fatalf("%d runtime-call descriptors, want %d", len(got), tt.descriptors)
			}
			if len(got) == 1 && got[0].TokenPos != tt.pos {
				t.Errorf("descriptor position %s, want %s", got[0].TokenPos, tt.pos)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Frame entry and counters
// ---------------------------------------------------------------------------

func TestHotCheck(t *testing.T) {
	g, _ := diamond(ir.TokenEqStrict)
	g.Function.Optimizable = true
	opts := stackOptions()
	opts.OptimizationCounterThreshold = 100

	instrs := decode(t, mustCompile(t, g, opts))
	if instrs[1].Op != bytecode.OpHotCheck || instrs[1].Operands[0] != 100 {
		t.Errorf("second instruction %s %v, want HOT_CHECK 100", instrs[1].Op, instrs[1].Operands)
	}
}

func TestEdgeCounters(t *testing.T) {
	g, _ := diamond(ir.TokenEqStrict)
	opts := stackOptions()
	opts.EmitEdgeCounters = true

	code := mustCompile(t, g, opts)
	instrs := decode(t, code)
	var got []int
	for _, in := range instrs {
		if in.Op == bytecode.OpIncEdgeCounter {
			got = append(got, in.Operands[0])
		}
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3}, got); diff != "" {
		t.Errorf("edge counters (-want +got):\n%s", diff)
	}
	if code.EdgeCounters != 4 {
		t.Errorf("EdgeCounters = %d, want 4", code.EdgeCounters)
	}
}

func TestUnusedValueIsDropped(t *testing.T) {
	fn := &ir.Function{Name: "callee"}
	b := straightLine("drop", 0)
	call := ir.Emit(b, ir.NewStaticCall(fn, nil, 5))
	call.SetHasTemp(false)
	b.Return(b.Constant(ir.Null, ir.ConstantPos), 6)

	instrs := decode(t, mustCompile(t, b.Finish(), stackOptions()))
	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPushConstant, bytecode.OpStaticCall, bytecode.OpDrop1,
		bytecode.OpPushConstant, bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Errorf("opcodes (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

func TestStackModeIsBalanced(t *testing.T) {
	storeIndexed := func() *ir.FlowGraph {
		b := straightLine("store", 3)
		arr, idx, v := b.Parameter(0), b.Parameter(1), b.Parameter(2)
		ir.Emit(b, ir.NewStoreIndexed(arr, idx, v, ir.ArrayCid, 3))
		b.Return(v, 4)
		return b.Finish()
	}
	tests := []struct {
		name    string
		g       func() *ir.FlowGraph
		deepest int
	}{
		{"static call", func() *ir.FlowGraph { g, _, _ := staticCallGraph(); return g }, 2},
		{"diamond", func() *ir.FlowGraph { g, _ := diamond(ir.TokenEqStrict); return g }, 2},
		{"call heavy", func() *ir.FlowGraph { return callHeavyGraph(true) }, 3},
		{"mixed", func() *ir.FlowGraph { return parseMixed(t) }, 2},
		{"store indexed", storeIndexed, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := stackOptions()
			opts.Asserts = false // check by hand below
			code, err := Compile(context.Background(), tt.g(), opts)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			deepest, err := code.CheckStack()
			if err != nil {
				t.Fatalf("%v\n%s", err, code.Disassemble())
			}
			if deepest != tt.deepest {
				t.Errorf("deepest stack %d, want %d", deepest, tt.deepest)
			}
		})
	}
}

func TestStackModeNeedsStackForm(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *ir.Builder)
		reason string
	}{
		{"phi", func(b *ir.Builder) {
			p0, p1 := b.Parameter(0), b.Parameter(1)
			join := b.NewJoin()
			b.Goto(join)
			b.SetCurrent(join)
			b.Return(b.Phi(join, p0, p1), 5)
		}, "unoptimized code"},
		{"parameter below a stack value", func(b *ir.Builder) {
			k := b.Constant(int64(1), ir.ConstantPos)
			cmpInstr := ir.Emit(b, ir.NewStrictCompare(ir.TokenEqStrict, b.Parameter(0), k, false, 5))
			b.Return(cmpInstr, 6)
		}, "precedes stack operand"},
		{"value read twice", func(b *ir.Builder) {
			k := b.Constant(int64(1), ir.ConstantPos)
			cmpInstr := ir.Emit(b, ir.NewStrictCompare(ir.TokenEqStrict, k, k, false, 5))
			b.Return(cmpInstr, 6)
		}, "read 2 times"},
		{"value read in another block", func(b *ir.Builder) {
			k := b.Constant(int64(1), ir.ConstantPos)
			next := b.NewTarget()
			b.Goto(next)
			b.SetCurrent(next)
			b.Return(k, 6)
		}, "block boundary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := straightLine("shape", 2)
			tt.build(b)
			err := compileErr(t, b.Finish(), stackOptions())
			if !IsBailout(err) || !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("err = %v, want bailout mentioning %q", err, tt.reason)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Failure modes
// ---------------------------------------------------------------------------

func TestUnimplementedKindBailsOut(t *testing.T) {
	for _, optimizing := range []bool{false, true} {
		b := straightLine("smi", 2)
		x, y := b.Parameter(0), b.Parameter(1)
		sum := ir.Emit(b, ir.NewGeneric(ir.KindBinarySmiOp, 5, x, y))
		b.Return(sum, 6)

		opts := stackOptions()
		opts.Optimizing = optimizing
		err := compileErr(t, b.Finish(), opts)

		var bail *BailoutError
		if !errors.As(err, &bail) {
			t.Fatalf("optimizing=%t: error %v is not a bailout", optimizing, err)
		}
		if !bail.Unimplemented || bail.Function != "smi" {
			t.Errorf("optimizing=%t: bailout %+v", optimizing, bail)
		}
		if !strings.Contains(err.Error(), "BinarySmiOp") {
			t.Errorf("error %q does not name the kind", err)
		}
	}
}

func TestUnimplementedComparisonBailsOut(t *testing.T) {
	for _, optimizing := range []bool{false, true} {
		b := ir.NewBuilder(&ir.Function{Name: "lt", NumParameters: 2})
		entry := b.NewTarget()
		b.SetNormalEntry(entry)
		x, y := b.Parameter(0), b.Parameter(1)
		yes, no := b.NewTarget(), b.NewTarget()
		b.Branch(ir.NewCompare(ir.KindRelationalOp, ir.TokenLt, x, y, 5), yes, no)
		b.SetCurrent(yes)
		b.Return(x, 6)
		b.SetCurrent(no)
		b.Return(y, 7)

		opts := stackOptions()
		opts.Optimizing = optimizing
		if err := compileErr(t, b.Finish(), opts); !IsBailout(err) {
			t.Errorf("optimizing=%t: %v is not a bailout", optimizing, err)
		}
	}
}

func TestLocationsForUnimplemented(t *testing.T) {
	instr := ir.NewGeneric(ir.KindBox, 1)
	if locs := LocationsFor(instr, true); locs != nil {
		t.Errorf("register-mode summary = %s, want nil", locs)
	}
	r := mustPanic(t, func() { LocationsFor(instr, false) })
	if _, ok := r.(*UnimplementedError); !ok {
		t.Errorf("panic %v, want *UnimplementedError", r)
	}
}

func TestImplementedKinds(t *testing.T) {
	implemented := map[ir.Kind]bool{}
	for _, k := range ImplementedKinds() {
		implemented[k] = true
	}
	for _, k := range []ir.Kind{ir.KindStaticCall, ir.KindStrictCompare, ir.KindLoadIndexed, ir.KindCatchBlockEntry} {
		if !implemented[k] {
			t.Errorf("%s has no lowering", k)
		}
	}
	for _, k := range []ir.Kind{ir.KindEqualityCompare, ir.KindBinarySmiOp, ir.KindBox, ir.KindInstanceOf} {
		if implemented[k] {
			t.Errorf("%s unexpectedly has a lowering", k)
		}
	}
}

func TestRegisterModeRequiresAllocation(t *testing.T) {
	g, _ := diamond(ir.TokenEqStrict)
	_, err := Compile(context.Background(), g, registerOptions())
	if !errors.Is(err, ErrNotAllocated) {
		t.Errorf("err = %v, want ErrNotAllocated", err)
	}
}

func TestCompileHonoursCancelledContext(t *testing.T) {
	g, _ := diamond(ir.TokenEqStrict)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Compile(ctx, g, stackOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPolymorphicCallBailsOut(t *testing.T) {
	for _, optimizing := range []bool{false, true} {
		b := straightLine("poly", 1)
		recv := b.Parameter(0)
		push := b.Push(recv)
		inner := ir.NewInstanceCall("length", ir.TokenIllegal, []*ir.PushArgument{push}, 5)
		poly := ir.Emit(b, ir.NewPolymorphicInstanceCall(inner, nil))
		b.Return(poly, 6)

		opts := stackOptions()
		opts.Optimizing = optimizing
		err := compileErr(t, b.Finish(), opts)
		var bail *BailoutError
		if !errors.As(err, &bail) || bail.Unimplemented {
			t.Errorf("optimizing=%t: err = %v", optimizing, err)
		}
	}
}
