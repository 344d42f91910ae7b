package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction. Opcodes ending in TOS
// work on the operand stack; the others name frame-relative registers.
type Opcode byte

// Frame and stack management
const (
	OpNop            Opcode = 0x00 // no operation
	OpTrap           Opcode = 0x01 // unreachable
	OpDrop1          Opcode = 0x02 // discard top of stack
	OpDrop           Opcode = 0x03 // discard N values
	OpEntry          Opcode = 0x04 // unoptimized frame setup (params, locals)
	OpEntryOptimized Opcode = 0x05 // optimized frame setup (params, registers)
	OpSetFrame       Opcode = 0x06 // reset the stack pointer to frame base + N
	OpHotCheck       Opcode = 0x07 // bump usage counter, request optimization at threshold
	OpIncEdgeCounter Opcode = 0x08 // bump edge counter N
	OpCheckStack     Opcode = 0x09 // stack overflow / interrupt check
	OpDebugStep      Opcode = 0x0A // single-step hook
)

// Constants
const (
	OpPushConstant Opcode = 0x10 // push pool[k]
	OpLoadConstant Opcode = 0x11 // rA <- pool[k]
)

// Frame slots
const (
	OpPush        Opcode = 0x18 // push FP[x]
	OpPopLocal    Opcode = 0x19 // FP[x] <- pop
	OpStoreLocal  Opcode = 0x1A // FP[x] <- top of stack
	OpMove        Opcode = 0x1B // FP[a] <- FP[b]
	OpSwap        Opcode = 0x1C // FP[a] <-> FP[b]
	OpMoveSpecial Opcode = 0x1D // FP[a] <- special register
)

// Static and instance fields
const (
	OpPushStatic       Opcode = 0x20 // replace the field on top with its static value
	OpStoreStaticTOS   Opcode = 0x21 // static field pool[k] <- pop
	OpInitStaticTOS    Opcode = 0x22 // run initializer of popped field
	OpLoadField        Opcode = 0x23 // rA <- rB[offset words]
	OpStoreField       Opcode = 0x24 // rA[offset words] <- rC
	OpLoadFieldTOS     Opcode = 0x25 // replace object on top with its field
	OpStoreFieldTOS    Opcode = 0x26 // pop value, pop object, store
	OpLoadClassId      Opcode = 0x27 // rA <- class id of rB
	OpLoadClassIdTOS   Opcode = 0x28 // replace top with its class id
	OpBooleanNegate    Opcode = 0x29 // rA <- !rB
	OpBooleanNegateTOS Opcode = 0x2A // replace top with its negation
)

// Checks
const (
	OpAssertBoolean    Opcode = 0x30 // check top is a bool (flag: type checks on)
	OpAssertAssignable Opcode = 0x31 // pop type args, check top against pool[type]
)

// Comparisons and jumps. The If* opcodes skip the next instruction unless
// their condition holds; the next instruction is normally a Jump.
const (
	OpIfEqStrictTOS    Opcode = 0x38
	OpIfNeStrictTOS    Opcode = 0x39
	OpIfEqStrictNumTOS Opcode = 0x3A
	OpIfNeStrictNumTOS Opcode = 0x3B
	OpIfEqStrict       Opcode = 0x3C
	OpIfNeStrict       Opcode = 0x3D
	OpIfEqStrictNum    Opcode = 0x3E
	OpIfNeStrictNum    Opcode = 0x3F
	OpJump             Opcode = 0x40 // relative 32-bit offset
)

// Calls
const (
	OpStaticCall          Opcode = 0x48 // pop function above argc args, call, push result (argc, argdesc)
	OpInstanceCall1       Opcode = 0x49 // IC call testing one argument, pushes result (argc, icdata)
	OpInstanceCall2       Opcode = 0x4A // IC call testing two arguments, pushes result (argc, icdata)
	OpNativeCall          Opcode = 0x4B // pop target and argc tag, call native
	OpNativeBootstrapCall Opcode = 0x4C // bootstrap native call
	OpThrow               Opcode = 0x4D // throw (0) or rethrow (1) the pending exception
)

// Allocation and types
const (
	OpAllocate                    Opcode = 0x50 // push new instance of class pool[k]
	OpAllocateT                   Opcode = 0x51 // pop class, pop type args, push instance
	OpCreateArrayTOS              Opcode = 0x52 // pop length, pop type args, push array
	OpAllocateContext             Opcode = 0x53 // push context with N variables
	OpCloneContext                Opcode = 0x54 // replace top context with a copy
	OpInstantiateType             Opcode = 0x55 // replace instantiator with pool[type] instantiated
	OpInstantiateTypeArgumentsTOS Opcode = 0x56 // (raw flag, pool[type args])
)

// Indexed access
const (
	OpLoadIndexedTOS       Opcode = 0x60 // pop index, pop array, push element
	OpStoreIndexedTOS      Opcode = 0x61 // pop value, index, array
	OpLoadIndexed          Opcode = 0x62 // rA <- rB[rC] tagged (element class)
	OpLoadIndexedInt32     Opcode = 0x63
	OpLoadIndexedUint32    Opcode = 0x64
	OpLoadIndexedInt64     Opcode = 0x65
	OpLoadIndexedDouble    Opcode = 0x66
	OpLoadIndexedFloat32x4 Opcode = 0x67
	OpLoadIndexedInt32x4   Opcode = 0x68
	OpLoadIndexedFloat64x2 Opcode = 0x69
	OpStoreIndexed         Opcode = 0x6A // rA[rB] <- rC
)

// Returns
const (
	OpReturnTOS Opcode = 0x70 // return top of stack
	OpReturn    Opcode = 0x71 // return rA
)

// Special registers readable with OpMoveSpecial.
const (
	SpecialException  = 0
	SpecialStackTrace = 1
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandKind describes how one operand is encoded.
type OperandKind uint8

const (
	OperandU8    OperandKind = iota + 1 // unsigned byte
	OperandU16                          // unsigned 16-bit
	OperandReg                          // signed 16-bit frame slot
	OperandConst                        // 16-bit pool index
	OperandU32                          // unsigned 32-bit
	OperandJump                         // signed 32-bit offset from the next instruction
)

// Size returns the number of bytes an operand of this kind occupies.
func (k OperandKind) Size() int {
	switch k {
	case OperandU8:
		return 1
	case OperandU16, OperandReg, OperandConst:
		return 2
	case OperandU32, OperandJump:
		return 4
	}
	return 0
}

// VarStackEffect marks opcodes whose stack effect depends on operands.
const VarStackEffect = -128

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name     string        // human-readable name
	Operands []OperandKind // operand encodings, in order
	Pops     int           // operands taken from the stack, or VarStackEffect
	Pushes   int           // values left on the stack
}

// StackEffect is the net effect on the operand stack, or VarStackEffect.
func (info OpcodeInfo) StackEffect() int {
	if info.Pops == VarStackEffect {
		return VarStackEffect
	}
	return info.Pushes - info.Pops
}

var (
	noOperands      = []OperandKind(nil)
	u8Operand       = []OperandKind{OperandU8}
	u16Operand      = []OperandKind{OperandU16}
	regOperand      = []OperandKind{OperandReg}
	constOperand    = []OperandKind{OperandConst}
	twoRegs         = []OperandKind{OperandReg, OperandReg}
	callOperands    = []OperandKind{OperandU8, OperandConst}
	indexedOperands = []OperandKind{OperandReg, OperandReg, OperandReg, OperandU16}
)

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:            {"NOP", noOperands, 0, 0},
	OpTrap:           {"TRAP", noOperands, 0, 0},
	OpDrop1:          {"DROP1", noOperands, 1, 0},
	OpDrop:           {"DROP", u8Operand, VarStackEffect, 0},
	OpEntry:          {"ENTRY", []OperandKind{OperandU8, OperandU16}, VarStackEffect, 0},
	OpEntryOptimized: {"ENTRY_OPTIMIZED", []OperandKind{OperandU8, OperandU16}, VarStackEffect, 0},
	OpSetFrame:       {"SET_FRAME", u16Operand, VarStackEffect, 0},
	OpHotCheck:       {"HOT_CHECK", []OperandKind{OperandU32}, 0, 0},
	OpIncEdgeCounter: {"INC_EDGE_COUNTER", u16Operand, 0, 0},
	OpCheckStack:     {"CHECK_STACK", noOperands, 0, 0},
	OpDebugStep:      {"DEBUG_STEP", noOperands, 0, 0},

	OpPushConstant: {"PUSH_CONSTANT", constOperand, 0, 1},
	OpLoadConstant: {"LOAD_CONSTANT", []OperandKind{OperandReg, OperandConst}, 0, 0},

	OpPush:        {"PUSH", regOperand, 0, 1},
	OpPopLocal:    {"POP_LOCAL", regOperand, 1, 0},
	OpStoreLocal:  {"STORE_LOCAL", regOperand, 1, 1},
	OpMove:        {"MOVE", twoRegs, 0, 0},
	OpSwap:        {"SWAP", twoRegs, 0, 0},
	OpMoveSpecial: {"MOVE_SPECIAL", []OperandKind{OperandReg, OperandU8}, 0, 0},

	OpPushStatic:       {"PUSH_STATIC", constOperand, 1, 1},
	OpStoreStaticTOS:   {"STORE_STATIC_TOS", constOperand, 1, 0},
	OpInitStaticTOS:    {"INIT_STATIC_TOS", noOperands, 1, 0},
	OpLoadField:        {"LOAD_FIELD", []OperandKind{OperandReg, OperandReg, OperandU16}, 0, 0},
	OpStoreField:       {"STORE_FIELD", []OperandKind{OperandReg, OperandU16, OperandReg}, 0, 0},
	OpLoadFieldTOS:     {"LOAD_FIELD_TOS", u16Operand, 1, 1},
	OpStoreFieldTOS:    {"STORE_FIELD_TOS", u16Operand, 2, 0},
	OpLoadClassId:      {"LOAD_CLASS_ID", twoRegs, 0, 0},
	OpLoadClassIdTOS:   {"LOAD_CLASS_ID_TOS", noOperands, 1, 1},
	OpBooleanNegate:    {"BOOLEAN_NEGATE", twoRegs, 0, 0},
	OpBooleanNegateTOS: {"BOOLEAN_NEGATE_TOS", noOperands, 1, 1},

	OpAssertBoolean:    {"ASSERT_BOOLEAN", u8Operand, 1, 1},
	OpAssertAssignable: {"ASSERT_ASSIGNABLE", []OperandKind{OperandConst, OperandConst}, 2, 1},

	OpIfEqStrictTOS:    {"IF_EQ_STRICT_TOS", noOperands, 2, 0},
	OpIfNeStrictTOS:    {"IF_NE_STRICT_TOS", noOperands, 2, 0},
	OpIfEqStrictNumTOS: {"IF_EQ_STRICT_NUM_TOS", noOperands, 2, 0},
	OpIfNeStrictNumTOS: {"IF_NE_STRICT_NUM_TOS", noOperands, 2, 0},
	OpIfEqStrict:       {"IF_EQ_STRICT", twoRegs, 0, 0},
	OpIfNeStrict:       {"IF_NE_STRICT", twoRegs, 0, 0},
	OpIfEqStrictNum:    {"IF_EQ_STRICT_NUM", twoRegs, 0, 0},
	OpIfNeStrictNum:    {"IF_NE_STRICT_NUM", twoRegs, 0, 0},
	OpJump:             {"JUMP", []OperandKind{OperandJump}, 0, 0},

	OpStaticCall:          {"STATIC_CALL", callOperands, VarStackEffect, 1},
	OpInstanceCall1:       {"INSTANCE_CALL1", callOperands, VarStackEffect, 1},
	OpInstanceCall2:       {"INSTANCE_CALL2", callOperands, VarStackEffect, 1},
	OpNativeCall:          {"NATIVE_CALL", noOperands, 2, 0},
	OpNativeBootstrapCall: {"NATIVE_BOOTSTRAP_CALL", noOperands, 2, 0},
	OpThrow:               {"THROW", u8Operand, 0, 0},

	OpAllocate:                    {"ALLOCATE", constOperand, 0, 1},
	OpAllocateT:                   {"ALLOCATE_T", noOperands, 2, 1},
	OpCreateArrayTOS:              {"CREATE_ARRAY_TOS", noOperands, 2, 1},
	OpAllocateContext:             {"ALLOCATE_CONTEXT", u16Operand, 0, 1},
	OpCloneContext:                {"CLONE_CONTEXT", noOperands, 1, 1},
	OpInstantiateType:             {"INSTANTIATE_TYPE", constOperand, 1, 1},
	OpInstantiateTypeArgumentsTOS: {"INSTANTIATE_TYPE_ARGUMENTS_TOS", []OperandKind{OperandU8, OperandConst}, 1, 1},

	OpLoadIndexedTOS:       {"LOAD_INDEXED_TOS", noOperands, 2, 1},
	OpStoreIndexedTOS:      {"STORE_INDEXED_TOS", noOperands, 3, 0},
	OpLoadIndexed:          {"LOAD_INDEXED", indexedOperands, 0, 0},
	OpLoadIndexedInt32:     {"LOAD_INDEXED_INT32", indexedOperands, 0, 0},
	OpLoadIndexedUint32:    {"LOAD_INDEXED_UINT32", indexedOperands, 0, 0},
	OpLoadIndexedInt64:     {"LOAD_INDEXED_INT64", indexedOperands, 0, 0},
	OpLoadIndexedDouble:    {"LOAD_INDEXED_DOUBLE", indexedOperands, 0, 0},
	OpLoadIndexedFloat32x4: {"LOAD_INDEXED_FLOAT32X4", indexedOperands, 0, 0},
	OpLoadIndexedInt32x4:   {"LOAD_INDEXED_INT32X4", indexedOperands, 0, 0},
	OpLoadIndexedFloat64x2: {"LOAD_INDEXED_FLOAT64X2", indexedOperands, 0, 0},
	OpStoreIndexed:         {"STORE_INDEXED", []OperandKind{OperandReg, OperandReg, OperandReg}, 0, 0},

	OpReturnTOS: {"RETURN_TOS", noOperands, 1, 0},
	OpReturn:    {"RETURN", regOperand, 0, 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// IsValid reports whether op is a known opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	n := 0
	for _, k := range op.Info().Operands {
		n += k.Size()
	}
	return n
}

// Size returns the encoded length of the instruction, opcode included.
func (op Opcode) Size() int {
	return 1 + op.OperandBytes()
}

// IsSkipNext reports whether op conditionally skips the next instruction.
func (op Opcode) IsSkipNext() bool {
	return op >= OpIfEqStrictTOS && op <= OpIfNeStrictNum
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}
