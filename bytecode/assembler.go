package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Assembler: encodes instructions into a byte buffer
// ---------------------------------------------------------------------------

// EncodingError is raised (as a panic) when an operand does not fit its
// encoding. Code generators recover it and abandon the function.
type EncodingError struct {
	Op      Opcode
	Operand int
	Value   int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: operand %d value %d out of range", e.Op, e.Operand, e.Value)
}

// Assembler builds a bytecode sequence together with its constant pool.
type Assembler struct {
	code []byte
	pool *ObjectPool
}

// NewAssembler creates an assembler. A nil pool starts a fresh one.
func NewAssembler(pool *ObjectPool) *Assembler {
	if pool == nil {
		pool = NewObjectPool()
	}
	return &Assembler{
		code: make([]byte, 0, 128),
		pool: pool,
	}
}

// Bytes returns the encoded bytecode.
func (a *Assembler) Bytes() []byte {
	return a.code
}

// CodeSize returns the current length, which is also the offset of the next
// instruction.
func (a *Assembler) CodeSize() int {
	return len(a.code)
}

// Pool returns the constant pool.
func (a *Assembler) Pool() *ObjectPool {
	return a.pool
}

// Emit appends op with its operands, encoded per the opcode table.
func (a *Assembler) Emit(op Opcode, operands ...int) {
	info, ok := opcodeTable[op]
	if !ok {
		panic(fmt.Sprintf("emit of unknown opcode %#02x", byte(op)))
	}
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("%s takes %d operands, got %d", info.Name, len(info.Operands), len(operands)))
	}
	a.code = append(a.code, byte(op))
	for i, kind := range info.Operands {
		a.appendOperand(op, i, kind, operands[i])
	}
}

func (a *Assembler) appendOperand(op Opcode, i int, kind OperandKind, v int) {
	check := func(lo, hi int) {
		if v < lo || v > hi {
			panic(&EncodingError{Op: op, Operand: i, Value: v})
		}
	}
	switch kind {
	case OperandU8:
		check(0, math.MaxUint8)
		a.code = append(a.code, byte(v))
	case OperandU16, OperandConst:
		check(0, math.MaxUint16)
		a.code = binary.LittleEndian.AppendUint16(a.code, uint16(v))
	case OperandReg:
		check(math.MinInt16, math.MaxInt16)
		a.code = binary.LittleEndian.AppendUint16(a.code, uint16(int16(v)))
	case OperandU32:
		check(0, math.MaxUint32)
		a.code = binary.LittleEndian.AppendUint32(a.code, uint32(v))
	case OperandJump:
		check(math.MinInt32, math.MaxInt32)
		a.code = binary.LittleEndian.AppendUint32(a.code, uint32(int32(v)))
	}
}

// AddConstant returns the pool index of v.
func (a *Assembler) AddConstant(v any) int {
	return a.pool.AddObject(v)
}

// PushConstant pushes v from the pool.
func (a *Assembler) PushConstant(v any) {
	a.Emit(OpPushConstant, a.AddConstant(v))
}

// LoadConstant loads v from the pool into register r.
func (a *Assembler) LoadConstant(r int, v any) {
	a.Emit(OpLoadConstant, r, a.AddConstant(v))
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label is a jump target that may be bound after jumps to it are emitted.
type Label struct {
	bound    bool
	position int   // target offset once bound
	refs     []int // operand offsets of unresolved jumps
}

// NewLabel creates an unbound label.
func (a *Assembler) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// IsBound reports whether the label has been bound.
func (l *Label) IsBound() bool { return l.bound }

// Position returns the bound offset.
func (l *Label) Position() int { return l.position }

// Bind resolves label to the current position and patches pending jumps.
func (a *Assembler) Bind(label *Label) {
	if label.bound {
		panic("label already bound")
	}
	label.bound = true
	label.position = len(a.code)

	for _, ref := range label.refs {
		offset := label.position - (ref + 4) // offset from after the operand
		binary.LittleEndian.PutUint32(a.code[ref:], uint32(int32(offset)))
	}
	label.refs = nil
}

// Jump emits an unconditional jump to label.
func (a *Assembler) Jump(label *Label) {
	a.code = append(a.code, byte(OpJump))
	if label.bound {
		offset := label.position - (len(a.code) + 4)
		a.code = binary.LittleEndian.AppendUint32(a.code, uint32(int32(offset)))
		return
	}
	label.refs = append(label.refs, len(a.code))
	a.code = append(a.code, 0, 0, 0, 0) // placeholder
}
