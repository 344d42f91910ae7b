package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Calls and deopt environments
// ---------------------------------------------------------------------------

// staticCallGraph builds f(p0) { return callee(p0); } with the call's
// environment holding the parameter and the pushed argument.
func staticCallGraph() (*ir.FlowGraph, *ir.StaticCall, *ir.Environment) {
	callee := &ir.Function{Name: "callee", NumParameters: 1, IsStatic: true}
	b := straightLine("caller", 1)
	p0 := b.Parameter(0)
	push := b.Push(p0)
	call := ir.Emit(b, ir.NewStaticCall(callee, []*ir.PushArgument{push}, 7))
	env := ir.NewEnvironment(b.Graph().Function, call.DeoptID(), 1, []ir.Instruction{p0, push}, nil)
	call.SetEnv(env)
	b.Return(call, 9)
	return b.Finish(), call, env
}

func TestStaticCallStackMode(t *testing.T) {
	g, call, _ := staticCallGraph()
	code := mustCompile(t, g, stackOptions())
	instrs := decode(t, code)

	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPush, // p0 from its frame slot
		bytecode.OpPushConstant, bytecode.OpStaticCall,
		bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s", diff)
	}
	if slot := instrs[1].Operands[0]; slot != -1 {
		t.Errorf("PUSH %d, want parameter slot -1", slot)
	}
	if fn := code.Pool.At(instrs[2].Operands[0]).Value; fn != call.Function {
		t.Errorf("pushed %v, want the callee", fn)
	}
	argdesc, ok := code.Pool.At(instrs[3].Operands[1]).Value.(*ir.ArgumentsDescriptor)
	if !ok || argdesc.Count != 1 || instrs[3].Operands[0] != 1 {
		t.Errorf("STATIC_CALL %v with descriptor %v", instrs[3].Operands, argdesc)
	}

	if len(code.Descriptors) != 1 {
		t.Fatalf("%d descriptors, want 1", len(code.Descriptors))
	}
	d := code.Descriptors[0]
	wantDesc := PcDescriptor{
		PC:       instrs[4].Offset,
		Kind:     ir.PcUnoptStaticCall,
		DeoptID:  ir.DeoptAfter(call.DeoptID()),
		TokenPos: 7,
		TryIndex: ir.InvalidTryIndex,
	}
	if diff := cmp.Diff(wantDesc, d); diff != "" {
		t.Errorf("descriptor (-want +got):\n%s", diff)
	}
	if len(code.DeoptInfos) != 0 {
		t.Errorf("unoptimized code has deopt infos: %v", code.DeoptInfos)
	}
}

func TestStaticCallRegisterMode(t *testing.T) {
	g, call, env := staticCallGraph()
	code := mustCompile(t, g, registerOptions())
	instrs := decode(t, code)

	want := []bytecode.Opcode{
		bytecode.OpEntryOptimized,
		bytecode.OpPush,
		bytecode.OpPushConstant, bytecode.OpStaticCall,
		bytecode.OpPopLocal,
		bytecode.OpMove,
		bytecode.OpReturn,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s\n%s", diff, code)
	}

	// R0 is the result register; values start at R1 (p0, push, call).
	const result = 3
	checks := []struct {
		at   int
		want []int
	}{
		{0, []int{1, 4}},      // params, frame registers
		{1, []int{-1}},        // p0 lives below the frame pointer
		{4, []int{0}},         // result into R0
		{5, []int{result, 0}}, // then into the call's own register
		{6, []int{result}},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, instrs[c.at].Operands); diff != "" {
			t.Errorf("%s operands (-want +got):\n%s", instrs[c.at].Op, diff)
		}
	}
	if code.FrameSize != 4 {
		t.Errorf("FrameSize = %d, want 4", code.FrameSize)
	}

	deopts := code.DescriptorsOfKind(ir.PcDeopt)
	if len(code.Descriptors) != 1 || len(deopts) != 1 {
		t.Fatalf("descriptors %v, want one deopt point", code.Descriptors)
	}
	if deopts[0].DeoptID != ir.DeoptAfter(call.DeoptID()) || deopts[0].PC != instrs[4].Offset {
		t.Errorf("deopt descriptor %v", deopts[0])
	}
	if len(code.DeoptInfos) != 1 {
		t.Fatalf("%d deopt infos, want 1", len(code.DeoptInfos))
	}
	after := code.DeoptInfos[0].Env
	if after.Length() != 1 || after.ValueAt(0).Kind() != ir.KindParameter {
		t.Errorf("environment after call = %s, want the parameter only", after)
	}
	if env.Length() != 2 {
		t.Errorf("call's own environment was modified: %s", env)
	}
}

func TestDropArgumentsChecksEnvironment(t *testing.T) {
	callee := &ir.Function{Name: "callee", NumParameters: 1}
	b := straightLine("broken", 1)
	p0 := b.Parameter(0)
	push := b.Push(p0)
	call := ir.Emit(b, ir.NewStaticCall(callee, []*ir.PushArgument{push}, 7))
	// The trailing slot should be the pushed argument.
	call.SetEnv(ir.NewEnvironment(b.Graph().Function, call.DeoptID(), 1, []ir.Instruction{push, p0}, nil))
	b.Return(call, 9)
	g := b.Finish()

	r := mustPanic(t, func() { mustCompile(t, g, registerOptions()) })
	if _, ok := r.(*ir.InvariantError); !ok {
		t.Errorf("panic %v, want *ir.InvariantError", r)
	}
}

func TestInstanceCall(t *testing.T) {
	symbols := bytecode.NewSymbolTable()
	b := straightLine("plus", 2)
	x, y := b.Parameter(0), b.Parameter(1)
	args := []*ir.PushArgument{b.Push(x), b.Push(y)}
	call := ir.Emit(b, ir.NewInstanceCall("+", ir.TokenAdd, args, 5))
	b.Return(call, 6)

	opts := stackOptions()
	opts.Symbols = symbols
	code := mustCompile(t, b.Finish(), opts)
	instrs := decode(t, code)

	in, ok := find(instrs, bytecode.OpInstanceCall2)
	if !ok {
		t.Fatalf("no two-argument IC call:\n%s", code.Disassemble())
	}
	if diff := cmp.Diff([]int{-2, -1}, []int{instrs[1].Operands[0], instrs[2].Operands[0]}); diff != "" {
		t.Errorf("parameter pushes (-want +got):\n%s", diff)
	}
	ic, ok := code.Pool.At(in.Operands[1]).Value.(*ir.ICData)
	if !ok {
		t.Fatalf("pool slot holds %v", code.Pool.At(in.Operands[1]))
	}
	if ic.Selector != "+" || ic.NumArgsTested != 2 || ic.ArgsDescriptor.Count != 2 || ic.DeoptID != call.DeoptID() {
		t.Errorf("ICData = %+v", ic)
	}
	if id, ok := symbols.Lookup("+"); !ok || id != ic.SelectorID {
		t.Errorf("selector id %d, symbol table has %d (%t)", ic.SelectorID, id, ok)
	}
	if got := code.DescriptorsOfKind(ir.PcIcCall); len(got) != 1 {
		t.Errorf("%d ic-call descriptors, want 1", len(got))
	}
}

func TestArgumentsDescriptorShared(t *testing.T) {
	callee := &ir.Function{Name: "f", NumParameters: 1}
	b := straightLine("twice", 1)
	p := b.Parameter(0)
	first := ir.Emit(b, ir.NewStaticCall(callee, []*ir.PushArgument{b.Push(p)}, 5))
	first.SetHasTemp(false)
	second := ir.Emit(b, ir.NewStaticCall(callee, []*ir.PushArgument{b.Push(p)}, 6))
	b.Return(second, 7)

	instrs := decode(t, mustCompile(t, b.Finish(), stackOptions()))
	var kidx []int
	for _, in := range instrs {
		if in.Op == bytecode.OpStaticCall {
			kidx = append(kidx, in.Operands[1])
		}
	}
	if len(kidx) != 2 || kidx[0] != kidx[1] {
		t.Errorf("argument descriptor slots %v, want one shared slot", kidx)
	}
}

func TestNativeCall(t *testing.T) {
	fn := &ir.Function{Name: "Object_hash", NumParameters: 1, IsNative: true}
	tests := []struct {
		name      string
		bootstrap bool
		want      bytecode.Opcode
	}{
		{"regular", false, bytecode.OpNativeCall},
		{"bootstrap", true, bytecode.OpNativeBootstrapCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := straightLine("native", 1)
			native := ir.NewNativeCall(fn, &ir.NativeFunction{Name: "hash", Address: 0xbeef}, 5)
			native.Bootstrap = tt.bootstrap
			ir.Emit(b, native)
			b.Return(b.Constant(ir.Null, ir.ConstantPos), 6)

			code := mustCompile(t, b.Finish(), stackOptions())
			instrs := decode(t, code)
			if _, ok := find(instrs, tt.want); !ok {
				t.Fatalf("no %s:\n%s", tt.want, code.Disassemble())
			}
			target := code.Pool.At(instrs[1].Operands[0])
			tag := code.Pool.At(instrs[2].Operands[0])
			if target.Kind != bytecode.EntryImmediate || target.Value != uint64(0xbeef) {
				t.Errorf("target entry %v", target)
			}
			if tag.Kind != bytecode.EntryImmediate || tag.Value != ir.NativeArgcTag(fn) {
				t.Errorf("argc tag entry %v", tag)
			}
			if got := code.DescriptorsOfKind(ir.PcOther); len(got) != 1 || got[0].DeoptID != ir.NoDeoptID {
				t.Errorf("descriptors %v", code.Descriptors)
			}
		})
	}
}

func TestNativeCallLinkedLazilyBailsOut(t *testing.T) {
	b := straightLine("lazy", 0)
	native := ir.NewNativeCall(&ir.Function{Name: "lazy"}, nil, 5)
	native.LinkLazily = true
	ir.Emit(b, native)
	b.Return(b.Constant(ir.Null, ir.ConstantPos), 6)

	if err := compileErr(t, b.Finish(), stackOptions()); !IsBailout(err) {
		t.Errorf("err = %v, want bailout", err)
	}
}

// ---------------------------------------------------------------------------
// One descriptor per call site
// ---------------------------------------------------------------------------

// callHeavyGraph has one instance of most may-call kinds. Every value is
// read once, in the order its definitions were pushed, so the graph has a
// stack form. Context kinds only exist in unoptimized code.
func callHeavyGraph(withContexts bool) *ir.FlowGraph {
	cls := &ir.Class{Name: "Point", ID: ir.NumPredefinedCids}
	helper := &ir.Function{Name: "_interpolate", NumParameters: 1, IsStatic: true}
	b := straightLine("calls", 1)
	p := b.Parameter(0)
	null := func() ir.Instruction { return b.Constant(ir.Null, ir.ConstantPos) }

	ir.Emit(b, ir.NewCheckStackOverflow(0, 1))
	obj := ir.Emit(b, ir.NewAllocateObject(cls, nil, 2))
	typeArgs := null()
	length := b.Constant(int64(3), ir.ConstantPos)
	arr := ir.Emit(b, ir.NewCreateArray(typeArgs, length, 3))
	sum := ir.Emit(b, ir.NewInstanceCall("+", ir.TokenAdd, []*ir.PushArgument{b.Push(obj), b.Push(arr)}, 4))
	ir.Emit(b, ir.NewNativeCall(&ir.Function{Name: "n"}, &ir.NativeFunction{Name: "n", Address: 1}, 5))
	ir.Emit(b, ir.NewAssertBoolean(sum, 6))
	ir.Emit(b, ir.NewInstantiateType(null(), &ir.Type{Name: "T"}, 7))
	ir.Emit(b, ir.NewInstantiateTypeArguments(null(), &ir.TypeArguments{Types: []*ir.Type{{Name: "T"}}}, 8))
	ir.Emit(b, ir.NewStringInterpolate(null(), helper, 9))
	value := b.Constant(int64(1), ir.ConstantPos)
	ir.Emit(b, ir.NewAssertAssignable(value, null(), &ir.Type{Name: "int"}, "p", 10))
	ir.Emit(b, ir.NewClosureCall(p, nil, 11))
	if withContexts {
		ctx := ir.Emit(b, ir.NewAllocateContext(2, 12))
		ir.Emit(b, ir.NewCloneContext(ctx, 13))
		holder := b.Constant(&ir.Field{Name: "s", IsStatic: true}, ir.ConstantPos)
		ir.Emit(b, ir.NewInitStaticField(holder, &ir.Field{Name: "s", IsStatic: true}, 14))
	}
	ir.Emit(b, ir.NewStrictCompare(ir.TokenEqStrict, p, p, true, 15))
	b.Return(null(), 16)
	return b.Finish()
}

func TestOneDescriptorPerCallSite(t *testing.T) {
	tests := []struct {
		name string
		g    func() *ir.FlowGraph
		opts Options
	}{
		{"unoptimized", func() *ir.FlowGraph { return callHeavyGraph(true) }, stackOptions()},
		{"optimized", func() *ir.FlowGraph { return callHeavyGraph(false) }, registerOptions()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.g()
			mayCall := 0
			g.ForEachInstruction(func(_ *ir.Block, instr ir.Instruction) {
				if instr.MayCall() {
					mayCall++
				}
			})
			code := mustCompile(t, g, tt.opts)
			if len(code.Descriptors) != mayCall {
				t.Errorf("%d descriptors for %d call sites:\n%s", len(code.Descriptors), mayCall, code)
			}
			if len(code.StackMaps) != mayCall {
				t.Errorf("%d stack maps for %d call sites", len(code.StackMaps), mayCall)
			}
			for i := 1; i < len(code.Descriptors); i++ {
				if code.Descriptors[i].PC <= code.Descriptors[i-1].PC {
					t.Errorf("descriptors out of order at %d: %v", i, code.Descriptors)
				}
			}
		})
	}
}

func TestContextsAreUnoptimizedOnly(t *testing.T) {
	b := straightLine("ctx", 0)
	ctx := ir.Emit(b, ir.NewAllocateContext(1, 3))
	b.Return(ctx, 4)

	err := compileErr(t, b.Finish(), registerOptions())
	var bail *BailoutError
	if !errors.As(err, &bail) || !strings.Contains(bail.Reason, "AllocateContext") {
		t.Errorf("err = %v", err)
	}
}

func TestDebugStepCheck(t *testing.T) {
	b := straightLine("step", 0)
	ir.Emit(b, ir.NewDebugStepCheck(ir.PcRuntimeCall, 4))
	b.Return(b.Constant(ir.Null, ir.ConstantPos), 5)

	code := mustCompile(t, b.Finish(), stackOptions())
	if _, ok := find(decode(t, code), bytecode.OpDebugStep); !ok {
		t.Fatal("no DEBUG_STEP")
	}
	if len(code.Descriptors) != 1 || code.Descriptors[0].Kind != ir.PcRuntimeCall {
		t.Errorf("descriptors %v", code.Descriptors)
	}
	if len(code.StackMaps) != 0 {
		t.Errorf("debug step recorded a safepoint")
	}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestCatchBlockEntry(t *testing.T) {
	b := ir.NewBuilder(&ir.Function{Name: "guarded"})
	body := b.NewTarget()
	body.TryIndex = 0
	exception := &ir.LocalVariable{Name: ":exception", Index: -1}
	stackTrace := &ir.LocalVariable{Name: ":stack_trace", Index: -2}
	objectType := &ir.Type{Name: "Object"}
	handler := b.NewCatch(ir.NewCatchBlockEntry(0, []*ir.Type{objectType}, exception, stackTrace, false),
		ir.InvalidTryIndex)

	b.SetNormalEntry(body)
	ir.Emit(b, ir.NewThrow(30))
	b.SetCurrent(handler)
	ir.Emit(b, ir.NewReThrow(0, 40))
	g := b.Finish()
	g.NumStackLocals = 2

	code := mustCompile(t, g, stackOptions())
	instrs := decode(t, code)
	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpThrow, bytecode.OpTrap,
		bytecode.OpMoveSpecial, bytecode.OpMoveSpecial, bytecode.OpSetFrame,
		bytecode.OpThrow, bytecode.OpTrap,
	}
	if diff := cmp.Diff(want, opcodes(instrs)); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, bytecode.SpecialException}, instrs[3].Operands); diff != "" {
		t.Errorf("exception move (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, bytecode.SpecialStackTrace}, instrs[4].Operands); diff != "" {
		t.Errorf("stack trace move (-want +got):\n%s", diff)
	}
	if instrs[5].Operands[0] != 2 || instrs[6].Operands[0] != 1 {
		t.Errorf("SET_FRAME %v, THROW %v", instrs[5].Operands, instrs[6].Operands)
	}

	h, ok := code.HandlerFor(0)
	if !ok {
		t.Fatal("no handler for try 0")
	}
	wantHandler := ExceptionHandler{
		TryIndex:        0,
		OuterTryIndex:   ir.InvalidTryIndex,
		PC:              instrs[3].Offset,
		HandledTypes:    []*ir.Type{objectType},
		NeedsStackTrace: true,
	}
	if diff := cmp.Diff(wantHandler, h); diff != "" {
		t.Errorf("handler (-want +got):\n%s", diff)
	}
	if d := code.Descriptors[0]; d.TryIndex != 0 || d.TokenPos != 30 {
		t.Errorf("throw descriptor %v", d)
	}
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

func TestStaticFieldUsesOriginal(t *testing.T) {
	field := &ir.Field{Name: "counter", IsStatic: true}
	b := straightLine("statics", 0)
	holder := b.Constant(field.Clone(), ir.ConstantPos)
	v := ir.Emit(b, ir.NewLoadStaticField(holder, field.Clone(), 3))
	ir.Emit(b, ir.NewStoreStaticField(field, v, 4))
	b.Return(b.Constant(ir.Null, ir.ConstantPos), 5)

	code := mustCompile(t, b.Finish(), stackOptions())
	instrs := decode(t, code)
	load, ok1 := find(instrs, bytecode.OpPushStatic)
	store, ok2 := find(instrs, bytecode.OpStoreStaticTOS)
	if !ok1 || !ok2 {
		t.Fatalf("missing static access:\n%s", code.Disassemble())
	}
	if load.Operands[0] != store.Operands[0] {
		t.Errorf("load uses slot %d, store slot %d", load.Operands[0], store.Operands[0])
	}
	if got := code.Pool.At(load.Operands[0]).Value; got != field {
		t.Errorf("pool holds %v, want the original field", got)
	}
}

// The loaded value replaces the holder on the stack, so the call finds
// exactly its two arguments.
func TestLoadStaticFieldFeedsCall(t *testing.T) {
	field := &ir.Field{Name: "base", IsStatic: true}
	b := straightLine("offset", 0)
	holder := b.Constant(field, ir.ConstantPos)
	x := ir.Emit(b, ir.NewLoadStaticField(holder, field, 3))
	y := b.Constant(int64(2), ir.ConstantPos)
	call := ir.Emit(b, ir.NewInstanceCall("+", ir.TokenAdd, []*ir.PushArgument{b.Push(x), b.Push(y)}, 4))
	b.Return(call, 5)

	code := mustCompile(t, b.Finish(), stackOptions())
	want := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPushConstant, bytecode.OpPushStatic, // x
		bytecode.OpPushConstant, // y
		bytecode.OpInstanceCall2,
		bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(want, opcodes(decode(t, code))); diff != "" {
		t.Fatalf("opcodes (-want +got):\n%s", diff)
	}
	deepest, err := code.CheckStack()
	if err != nil {
		t.Fatal(err)
	}
	if deepest != 2 {
		t.Errorf("deepest stack %d, want 2", deepest)
	}
}

func TestStaticFieldRegisterMode(t *testing.T) {
	field := &ir.Field{Name: "counter", IsStatic: true}
	b := straightLine("statics", 1)
	p := b.Parameter(0)
	ir.Emit(b, ir.NewStoreStaticField(field.Clone(), p, 4))
	b.Return(p, 5)

	code := mustCompile(t, b.Finish(), registerOptions())
	instrs := decode(t, code)
	load, ok1 := find(instrs, bytecode.OpLoadConstant)
	store, ok2 := find(instrs, bytecode.OpStoreField)
	if !ok1 || !ok2 {
		t.Fatalf("missing holder load or store:\n%s", code.Disassemble())
	}
	holder := load.Operands[0]
	if diff := cmp.Diff([]int{holder, int(staticValueSlot), -1}, store.Operands); diff != "" {
		t.Errorf("STORE_FIELD operands (-want +got):\n%s", diff)
	}
	if got := code.Pool.At(load.Operands[1]).Value; got != field {
		t.Errorf("holder constant %v, want the original field", got)
	}
}

func TestFieldAccessBothModes(t *testing.T) {
	build := func() *ir.FlowGraph {
		b := straightLine("getx", 1)
		obj := b.Parameter(0)
		x := ir.Emit(b, ir.NewLoadField(obj, "x", 16, 3))
		b.Return(x, 4)
		return b.Finish()
	}

	stack := decode(t, mustCompile(t, build(), stackOptions()))
	wantStack := []bytecode.Opcode{
		bytecode.OpEntry, bytecode.OpPush, bytecode.OpLoadFieldTOS, bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(wantStack, opcodes(stack)); diff != "" {
		t.Fatalf("stack mode (-want +got):\n%s", diff)
	}
	if stack[1].Operands[0] != -1 || stack[2].Operands[0] != 2 {
		t.Errorf("PUSH %v, LOAD_FIELD_TOS %v", stack[1].Operands, stack[2].Operands)
	}

	reg := decode(t, mustCompile(t, build(), registerOptions()))
	in, ok := find(reg, bytecode.OpLoadField)
	if !ok {
		t.Fatalf("register mode: %v", opcodes(reg))
	}
	// obj is parameter slot -1; x is the second SSA value.
	if diff := cmp.Diff([]int{1, -1, 2}, in.Operands); diff != "" {
		t.Errorf("LOAD_FIELD operands (-want +got):\n%s", diff)
	}
}

func TestMisalignedFieldOffset(t *testing.T) {
	b := straightLine("bad", 1)
	x := ir.Emit(b, ir.NewLoadField(b.Parameter(0), "x", 12, 3))
	b.Return(x, 4)
	g := b.Finish()

	r := mustPanic(t, func() { mustCompile(t, g, stackOptions()) })
	if _, ok := r.(*ir.InvariantError); !ok {
		t.Errorf("panic %v, want *ir.InvariantError", r)
	}
}

// ---------------------------------------------------------------------------
// Indexed access
// ---------------------------------------------------------------------------

func indexedLoad(cid ir.ClassID) *ir.FlowGraph {
	b := straightLine("load", 2)
	arr, idx := b.Parameter(0), b.Parameter(1)
	v := ir.Emit(b, ir.NewLoadIndexed(arr, idx, cid, 3))
	b.Return(v, 4)
	return b.Finish()
}

func TestLoadIndexedByElementClass(t *testing.T) {
	tests := []struct {
		cid  ir.ClassID
		want bytecode.Opcode
	}{
		{ir.ArrayCid, bytecode.OpLoadIndexed},
		{ir.TypedDataUint8ArrayCid, bytecode.OpLoadIndexed},
		{ir.OneByteStringCid, bytecode.OpLoadIndexed},
		{ir.TypedDataInt32ArrayCid, bytecode.OpLoadIndexedInt32},
		{ir.TypedDataUint32ArrayCid, bytecode.OpLoadIndexedUint32},
		{ir.TypedDataInt64ArrayCid, bytecode.OpLoadIndexedInt64},
		{ir.TypedDataFloat32ArrayCid, bytecode.OpLoadIndexedDouble},
		{ir.TypedDataFloat64ArrayCid, bytecode.OpLoadIndexedDouble},
		{ir.TypedDataFloat32x4ArrayCid, bytecode.OpLoadIndexedFloat32x4},
		{ir.TypedDataInt32x4ArrayCid, bytecode.OpLoadIndexedInt32x4},
		{ir.TypedDataFloat64x2ArrayCid, bytecode.OpLoadIndexedFloat64x2},
	}
	for _, tt := range tests {
		t.Run(tt.cid.String(), func(t *testing.T) {
			code := mustCompile(t, indexedLoad(tt.cid), registerOptions())
			in, ok := find(decode(t, code), tt.want)
			if !ok {
				t.Fatalf("no %s:\n%s", tt.want, code.Disassemble())
			}
			// Parameters at -2 and -1, the element in the third value slot.
			if diff := cmp.Diff([]int{2, -2, -1, int(tt.cid)}, in.Operands); diff != "" {
				t.Errorf("operands (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadIndexedNonIndexableBailsOut(t *testing.T) {
	if err := compileErr(t, indexedLoad(ir.SmiCid), registerOptions()); !IsBailout(err) {
		t.Errorf("err = %v, want bailout", err)
	}
}

func TestStoreIndexed(t *testing.T) {
	build := func(cid ir.ClassID) *ir.FlowGraph {
		b := straightLine("store", 3)
		arr, idx, v := b.Parameter(0), b.Parameter(1), b.Parameter(2)
		ir.Emit(b, ir.NewStoreIndexed(arr, idx, v, cid, 3))
		b.Return(v, 4)
		return b.Finish()
	}

	stack := decode(t, mustCompile(t, build(ir.ArrayCid), stackOptions()))
	wantStack := []bytecode.Opcode{
		bytecode.OpEntry,
		bytecode.OpPush, bytecode.OpPush, bytecode.OpPush, bytecode.OpStoreIndexedTOS,
		bytecode.OpPush, bytecode.OpReturnTOS,
	}
	if diff := cmp.Diff(wantStack, opcodes(stack)); diff != "" {
		t.Errorf("stack mode (-want +got):\n%s", diff)
	}

	reg := decode(t, mustCompile(t, build(ir.ArrayCid), registerOptions()))
	in, ok := find(reg, bytecode.OpStoreIndexed)
	if !ok {
		t.Fatalf("register mode: %v", opcodes(reg))
	}
	if diff := cmp.Diff([]int{-3, -2, -1}, in.Operands); diff != "" {
		t.Errorf("STORE_INDEXED operands (-want +got):\n%s", diff)
	}

	tests := []struct {
		cid    ir.ClassID
		reason string
	}{
		{ir.TypedDataFloat64ArrayCid, "representation mismatch"},
		{ir.TypedDataUint8ArrayCid, "StoreIndexed into"},
	}
	for _, tt := range tests {
		err := compileErr(t, build(tt.cid), registerOptions())
		if !IsBailout(err) || !strings.Contains(err.Error(), tt.reason) {
			t.Errorf("%s: err = %v, want bailout mentioning %q", tt.cid, err, tt.reason)
		}
	}
}
