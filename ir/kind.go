package ir

import (
	"fmt"
	"sort"
)

// Kind identifies the concrete type of an IR instruction.
type Kind uint8

// Block entries
const (
	KindGraphEntry Kind = iota
	KindTargetEntry
	KindJoinEntry
	KindCatchBlockEntry
)

// Control
const (
	KindGoto Kind = iota + 0x08
	KindBranch
	KindReturn
	KindThrow
	KindReThrow
	KindIndirectGoto
	KindStop
)

// Values and locals
const (
	KindConstant Kind = iota + 0x10
	KindParameter
	KindPhi
	KindLoadLocal
	KindStoreLocal
	KindPushArgument
	KindParallelMove
	KindDropTemps
)

// Fields
const (
	KindLoadStaticField Kind = iota + 0x20
	KindStoreStaticField
	KindInitStaticField
	KindLoadField
	KindStoreInstanceField
	KindLoadClassId
)

// Calls
const (
	KindInstanceCall Kind = iota + 0x30
	KindStaticCall
	KindClosureCall
	KindPolymorphicInstanceCall
	KindStringInterpolate
	KindNativeCall
)

// Comparisons and checks
const (
	KindStrictCompare Kind = iota + 0x40
	KindEqualityCompare
	KindRelationalOp
	KindTestSmi
	KindTestCids
	KindBooleanNegate
	KindAssertAssignable
	KindAssertBoolean
	KindInstanceOf
	KindCheckStackOverflow
	KindDebugStepCheck
)

// Allocation and types
const (
	KindAllocateObject Kind = iota + 0x50
	KindAllocateContext
	KindCloneContext
	KindCreateArray
	KindInstantiateType
	KindInstantiateTypeArguments
)

// Indexed access
const (
	KindLoadIndexed Kind = iota + 0x60
	KindStoreIndexed
)

// Unboxed arithmetic, checks and conversions. The bytecode backend has no
// lowering for any of these.
const (
	KindBinarySmiOp Kind = iota + 0x70
	KindBinaryDoubleOp
	KindBinaryMintOp
	KindUnarySmiOp
	KindBox
	KindUnbox
	KindCheckSmi
	KindCheckClass
	KindCheckArrayBound
	KindCheckNull
	KindMathUnary
	KindIfThenElse
	KindLoadUntagged
	KindGuardFieldClass
	KindDoubleToInteger
	KindSmiToDouble
)

// kindInfo holds metadata about an instruction kind.
type kindInfo struct {
	name      string
	hasOutput bool // defines an SSA value
	mayCall   bool // may call into the runtime
	deopt     bool // is assigned a deopt id
}

var kindTable = map[Kind]kindInfo{
	KindGraphEntry:      {"GraphEntry", false, false, false},
	KindTargetEntry:     {"TargetEntry", false, false, true},
	KindJoinEntry:       {"JoinEntry", false, false, true},
	KindCatchBlockEntry: {"CatchBlockEntry", false, false, false},

	KindGoto:         {"Goto", false, false, true},
	KindBranch:       {"Branch", false, false, false},
	KindReturn:       {"Return", false, false, true},
	KindThrow:        {"Throw", false, true, true},
	KindReThrow:      {"ReThrow", false, true, true},
	KindIndirectGoto: {"IndirectGoto", false, false, false},
	KindStop:         {"Stop", false, false, false},

	KindConstant:     {"Constant", true, false, false},
	KindParameter:    {"Parameter", true, false, false},
	KindPhi:          {"Phi", true, false, false},
	KindLoadLocal:    {"LoadLocal", true, false, false},
	KindStoreLocal:   {"StoreLocal", true, false, false},
	KindPushArgument: {"PushArgument", true, false, false},
	KindParallelMove: {"ParallelMove", false, false, false},
	KindDropTemps:    {"DropTemps", true, false, false},

	KindLoadStaticField:    {"LoadStaticField", true, false, true},
	KindStoreStaticField:   {"StoreStaticField", false, false, false},
	KindInitStaticField:    {"InitStaticField", false, true, true},
	KindLoadField:          {"LoadField", true, false, true},
	KindStoreInstanceField: {"StoreInstanceField", false, false, false},
	KindLoadClassId:        {"LoadClassId", true, false, false},

	KindInstanceCall:            {"InstanceCall", true, true, true},
	KindStaticCall:              {"StaticCall", true, true, true},
	KindClosureCall:             {"ClosureCall", true, true, true},
	KindPolymorphicInstanceCall: {"PolymorphicInstanceCall", true, true, true},
	KindStringInterpolate:       {"StringInterpolate", true, true, true},
	KindNativeCall:              {"NativeCall", false, true, false},

	KindStrictCompare:      {"StrictCompare", true, false, true},
	KindEqualityCompare:    {"EqualityCompare", true, true, true},
	KindRelationalOp:       {"RelationalOp", true, true, true},
	KindTestSmi:            {"TestSmi", true, false, true},
	KindTestCids:           {"TestCids", true, false, true},
	KindBooleanNegate:      {"BooleanNegate", true, false, false},
	KindAssertAssignable:   {"AssertAssignable", true, true, true},
	KindAssertBoolean:      {"AssertBoolean", true, true, true},
	KindInstanceOf:         {"InstanceOf", true, true, true},
	KindCheckStackOverflow: {"CheckStackOverflow", false, true, true},
	KindDebugStepCheck:     {"DebugStepCheck", false, false, true},

	KindAllocateObject:           {"AllocateObject", true, true, true},
	KindAllocateContext:          {"AllocateContext", true, true, true},
	KindCloneContext:             {"CloneContext", true, true, true},
	KindCreateArray:              {"CreateArray", true, true, true},
	KindInstantiateType:          {"InstantiateType", true, true, true},
	KindInstantiateTypeArguments: {"InstantiateTypeArguments", true, true, true},

	KindLoadIndexed:  {"LoadIndexed", true, false, true},
	KindStoreIndexed: {"StoreIndexed", false, false, true},

	KindBinarySmiOp:     {"BinarySmiOp", true, false, true},
	KindBinaryDoubleOp:  {"BinaryDoubleOp", true, false, true},
	KindBinaryMintOp:    {"BinaryMintOp", true, false, true},
	KindUnarySmiOp:      {"UnarySmiOp", true, false, true},
	KindBox:             {"Box", true, true, false},
	KindUnbox:           {"Unbox", true, false, true},
	KindCheckSmi:        {"CheckSmi", false, false, true},
	KindCheckClass:      {"CheckClass", false, false, true},
	KindCheckArrayBound: {"CheckArrayBound", false, false, true},
	KindCheckNull:       {"CheckNull", false, true, true},
	KindMathUnary:       {"MathUnary", true, false, true},
	KindIfThenElse:      {"IfThenElse", true, false, true},
	KindLoadUntagged:    {"LoadUntagged", true, false, false},
	KindGuardFieldClass: {"GuardFieldClass", false, false, true},
	KindDoubleToInteger: {"DoubleToInteger", true, true, true},
	KindSmiToDouble:     {"SmiToDouble", true, false, false},
}

func (k Kind) info() kindInfo {
	if info, ok := kindTable[k]; ok {
		return info
	}
	return kindInfo{name: fmt.Sprintf("UNKNOWN_%02X", byte(k))}
}

// Name returns the instruction kind's printed name.
func (k Kind) Name() string {
	return k.info().name
}

func (k Kind) String() string {
	return k.Name()
}

// HasOutput reports whether instructions of this kind define a value.
func (k Kind) HasOutput() bool {
	return k.info().hasOutput
}

// IsBlockEntry reports whether the kind starts a basic block.
func (k Kind) IsBlockEntry() bool {
	return k <= KindCatchBlockEntry
}

// KindByName resolves a printed kind name.
func KindByName(name string) (Kind, bool) {
	for k, info := range kindTable {
		if info.name == name {
			return k, true
		}
	}
	return 0, false
}

// Kinds returns every known instruction kind in ascending order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindTable))
	for k := range kindTable {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
