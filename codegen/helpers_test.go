package codegen

import (
	"context"
	"testing"

	"github.com/chazu/bcgen/alloc"
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

func stackOptions() Options {
	opts := DefaultOptions()
	opts.OptimizationCounterThreshold = 0
	return opts
}

func registerOptions() Options {
	opts := stackOptions()
	opts.Optimizing = true
	return opts
}

func mustCompile(t *testing.T, g *ir.FlowGraph, opts Options) *Code {
	t.Helper()
	if opts.Optimizing {
		if _, err := alloc.Allocate(g, LocationsFor); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	code, err := Compile(context.Background(), g, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return code
}

// compileErr compiles g expecting failure.
func compileErr(t *testing.T, g *ir.FlowGraph, opts Options) error {
	t.Helper()
	if opts.Optimizing {
		if _, err := alloc.Allocate(g, LocationsFor); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	code, err := Compile(context.Background(), g, opts)
	if err == nil {
		t.Fatalf("compile succeeded:\n%s", code)
	}
	return err
}

func decode(t *testing.T, code *Code) []bytecode.Instruction {
	t.Helper()
	instrs, err := bytecode.Decode(code.Bytecode)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return instrs
}

func opcodes(instrs []bytecode.Instruction) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, len(instrs))
	for i, in := range instrs {
		ops[i] = in.Op
	}
	return ops
}

func find(instrs []bytecode.Instruction, op bytecode.Opcode) (bytecode.Instruction, bool) {
	for _, in := range instrs {
		if in.Op == op {
			return in, true
		}
	}
	return bytecode.Instruction{}, false
}

func count(instrs []bytecode.Instruction, op bytecode.Opcode) int {
	n := 0
	for _, in := range instrs {
		if in.Op == op {
			n++
		}
	}
	return n
}

// mustPanic runs fn and returns what it panicked with.
func mustPanic(t *testing.T, fn func()) (r any) {
	t.Helper()
	defer func() {
		r = recover()
		if r == nil {
			t.Fatal("no panic")
		}
	}()
	fn()
	return nil
}

// straightLine starts a graph whose normal entry is the current block.
func straightLine(name string, params int) *ir.Builder {
	b := ir.NewBuilder(&ir.Function{Name: name, NumParameters: params})
	b.SetNormalEntry(b.NewTarget())
	return b
}

// diamond builds
//
//	entry: Branch(a === b) left, right
//	left, right: Goto join
//	join: Return 3
func diamond(op ir.Token) (*ir.FlowGraph, []*ir.Block) {
	b := ir.NewBuilder(&ir.Function{Name: "diamond"})
	entry := b.NewTarget()
	b.SetNormalEntry(entry)
	left := b.NewTarget()
	right := b.NewTarget()
	join := b.NewJoin()

	one := b.Constant(int64(1), ir.ConstantPos)
	two := b.Constant(int64(2), ir.ConstantPos)
	b.Branch(ir.NewStrictCompare(op, one, two, false, 10), left, right)

	b.SetCurrent(left)
	b.Goto(join)
	b.SetCurrent(right)
	b.Goto(join)
	b.SetCurrent(join)
	b.Return(b.Constant(int64(3), ir.ConstantPos), 20)

	return b.Finish(), []*ir.Block{entry, left, right, join}
}
