package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Reader for decoding and disassembly
// ---------------------------------------------------------------------------

// Reader reads bytecode sequentially.
type Reader struct {
	code []byte
	pos  int
}

// NewReader creates a reader over code.
func NewReader(code []byte) *Reader {
	return &Reader{code: code}
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *Reader) HasMore() bool {
	return r.pos < len(r.code)
}

// Seek sets the read position.
func (r *Reader) Seek(pos int) {
	r.pos = pos
}

// ReadOpcode reads and returns the next opcode.
func (r *Reader) ReadOpcode() Opcode {
	return Opcode(r.ReadUint8())
}

// ReadUint8 reads a single byte operand.
func (r *Reader) ReadUint8() uint8 {
	if r.pos >= len(r.code) {
		panic("bytecode underflow")
	}
	b := r.code[r.pos]
	r.pos++
	return b
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *Reader) ReadUint16() uint16 {
	if r.pos+2 > len(r.code) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.code[r.pos:])
	r.pos += 2
	return v
}

// ReadUint32 reads a 32-bit operand (little-endian).
func (r *Reader) ReadUint32() uint32 {
	if r.pos+4 > len(r.code) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint32(r.code[r.pos:])
	r.pos += 4
	return v
}

// ReadOperand reads one operand of the given kind, sign-extending registers
// and jump offsets.
func (r *Reader) ReadOperand(kind OperandKind) int {
	switch kind {
	case OperandU8:
		return int(r.ReadUint8())
	case OperandU16, OperandConst:
		return int(r.ReadUint16())
	case OperandReg:
		return int(int16(r.ReadUint16()))
	case OperandU32:
		return int(r.ReadUint32())
	case OperandJump:
		return int(int32(r.ReadUint32()))
	}
	panic(fmt.Sprintf("unknown operand kind %d", kind))
}

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   int
	Op       Opcode
	Operands []int
}

// JumpTarget returns the absolute target of a jump.
func (in Instruction) JumpTarget() int {
	return in.Offset + in.Op.Size() + in.Operands[0]
}

// ReadInstruction decodes the instruction at the current position.
func (r *Reader) ReadInstruction() Instruction {
	pos := r.pos
	op := r.ReadOpcode()
	info, ok := opcodeTable[op]
	if !ok {
		panic(fmt.Sprintf("unknown opcode %#02x at %d", byte(op), pos))
	}
	in := Instruction{Offset: pos, Op: op}
	for _, kind := range info.Operands {
		in.Operands = append(in.Operands, r.ReadOperand(kind))
	}
	return in
}

// Decode decodes a whole bytecode sequence.
func Decode(code []byte) (instrs []Instruction, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decode: %v", rec)
		}
	}()
	r := NewReader(code)
	for r.HasMore() {
		instrs = append(instrs, r.ReadInstruction())
	}
	return instrs, nil
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position and advances the reader. Pool operands are annotated when pool
// is non-nil.
func DisassembleInstruction(r *Reader, pool *ObjectPool) string {
	in := r.ReadInstruction()
	info := in.Op.Info()
	if len(in.Operands) == 0 {
		return fmt.Sprintf("%04d  %s", in.Offset, info.Name)
	}

	args := make([]string, len(in.Operands))
	var comments []string
	for i, kind := range info.Operands {
		v := in.Operands[i]
		switch kind {
		case OperandReg:
			args[i] = fmt.Sprintf("R%d", v)
		case OperandConst:
			args[i] = fmt.Sprintf("k%d", v)
			if pool != nil && v < pool.Len() {
				comments = append(comments, pool.At(v).String())
			}
		case OperandJump:
			args[i] = fmt.Sprintf("%+d (-> %04d)", v, in.JumpTarget())
		default:
			args[i] = fmt.Sprintf("%d", v)
		}
	}
	s := fmt.Sprintf("%04d  %s %s", in.Offset, info.Name, strings.Join(args, ", "))
	if len(comments) > 0 {
		s += "  ; " + strings.Join(comments, ", ")
	}
	return s
}

// Disassemble returns a full disassembly of code.
func Disassemble(code []byte, pool *ObjectPool) string {
	r := NewReader(code)
	var lines []string
	for r.HasMore() {
		lines = append(lines, DisassembleInstruction(r, pool))
	}
	return strings.Join(lines, "\n")
}
