package ir

// ---------------------------------------------------------------------------
// Instruction interface and shared state
// ---------------------------------------------------------------------------

// Instruction is one IR node. The set of implementations is closed: every
// concrete node embeds Base.
type Instruction interface {
	Kind() Kind
	TokenPos() TokenPosition
	DeoptID() int
	InputCount() int
	InputAt(i int) Instruction
	Inputs() []Instruction
	SSATemp() int
	HasTemp() bool
	SetHasTemp(keep bool)
	Env() *Environment
	SetEnv(env *Environment)
	Locs() *LocationSummary
	SetLocs(locs *LocationSummary)
	Block() *Block
	MayCall() bool
	Representation() Representation
	String() string

	base() *Base
}

// Comparison is an instruction that can be emitted as a branch condition.
type Comparison interface {
	Instruction
	Operator() Token
}

// CallInstruction is an instruction whose arguments are passed through
// PushArgument nodes.
type CallInstruction interface {
	Instruction
	ArgumentCount() int
	ArgumentAt(i int) *PushArgument
}

// Base holds the state shared by all instructions.
type Base struct {
	kind    Kind
	inputs  []Instruction
	ssaTemp int
	noTemp  bool
	pos     TokenPosition
	deoptID int
	env     *Environment
	locs    *LocationSummary
	block   *Block
}

func newBase(kind Kind, pos TokenPosition, inputs ...Instruction) Base {
	return Base{kind: kind, inputs: inputs, ssaTemp: -1, pos: pos, deoptID: NoDeoptID}
}

func (b *Base) base() *Base                { return b }
func (b *Base) Kind() Kind                 { return b.kind }
func (b *Base) TokenPos() TokenPosition    { return b.pos }
func (b *Base) DeoptID() int               { return b.deoptID }
func (b *Base) InputCount() int            { return len(b.inputs) }
func (b *Base) InputAt(i int) Instruction  { return b.inputs[i] }
func (b *Base) Inputs() []Instruction      { return b.inputs }
func (b *Base) SSATemp() int               { return b.ssaTemp }
func (b *Base) Env() *Environment          { return b.env }
func (b *Base) SetEnv(env *Environment)    { b.env = env }
func (b *Base) Locs() *LocationSummary     { return b.locs }
func (b *Base) SetLocs(l *LocationSummary) { b.locs = l }
func (b *Base) Block() *Block              { return b.block }

// SetInputAt replaces input i.
func (b *Base) SetInputAt(i int, v Instruction) { b.inputs[i] = v }

// HasTemp reports whether the instruction's value is kept as a temporary:
// on the operand stack in stack mode. Definitions keep their value unless
// marked otherwise with SetHasTemp.
func (b *Base) HasTemp() bool {
	return b.kind.HasOutput() && !b.noTemp
}

// SetHasTemp marks whether the defined value is kept as a temporary.
func (b *Base) SetHasTemp(keep bool) { b.noTemp = !keep }

// MayCall reports whether emitting the instruction may call into the
// runtime, making it a safepoint.
func (b *Base) MayCall() bool { return b.kind.info().mayCall }

// Representation is the representation of the defined value.
func (b *Base) Representation() Representation {
	if b.kind.HasOutput() {
		return Tagged
	}
	return NoRepresentation
}

// Arguments is embedded by call instructions.
type Arguments struct {
	Args []*PushArgument
}

func (a *Arguments) ArgumentCount() int             { return len(a.Args) }
func (a *Arguments) ArgumentAt(i int) *PushArgument { return a.Args[i] }

// ---------------------------------------------------------------------------
// Block entries
// ---------------------------------------------------------------------------

// GraphEntry starts the function. Its block holds no instructions.
type GraphEntry struct {
	Base
	NormalEntry  *Block
	CatchEntries []*Block
	Parameters   []*Parameter
}

func NewGraphEntry() *GraphEntry {
	return &GraphEntry{Base: newBase(KindGraphEntry, NoSourcePos)}
}

type TargetEntry struct{ Base }

func NewTargetEntry() *TargetEntry {
	return &TargetEntry{Base: newBase(KindTargetEntry, NoSourcePos)}
}

type JoinEntry struct {
	Base
	Phis []*Phi
}

func NewJoinEntry() *JoinEntry {
	return &JoinEntry{Base: newBase(KindJoinEntry, NoSourcePos)}
}

// CatchBlockEntry starts an exception handler.
type CatchBlockEntry struct {
	Base
	CatchTryIndex   int
	HandledTypes    []*Type
	NeedsStackTrace bool
	ExceptionVar    *LocalVariable
	StackTraceVar   *LocalVariable
}

func NewCatchBlockEntry(catchTryIndex int, types []*Type, exceptionVar, stackTraceVar *LocalVariable, needsStackTrace bool) *CatchBlockEntry {
	return &CatchBlockEntry{
		Base:            newBase(KindCatchBlockEntry, NoSourcePos),
		CatchTryIndex:   catchTryIndex,
		HandledTypes:    types,
		NeedsStackTrace: needsStackTrace,
		ExceptionVar:    exceptionVar,
		StackTraceVar:   stackTraceVar,
	}
}

// ---------------------------------------------------------------------------
// Control
// ---------------------------------------------------------------------------

type Goto struct {
	Base
	Target *Block
	Move   *ParallelMove
}

func NewGoto(target *Block) *Goto {
	return &Goto{Base: newBase(KindGoto, ControlFlowPos), Target: target}
}

// Branch transfers control on the outcome of its comparison. The comparison
// is owned by the branch and does not appear in the block.
type Branch struct {
	Base
	Comparison Comparison
	True       *Block
	False      *Block
}

func NewBranch(cmp Comparison, t, f *Block) *Branch {
	return &Branch{Base: newBase(KindBranch, cmp.TokenPos()), Comparison: cmp, True: t, False: f}
}

// OperandsOf returns the instruction whose inputs a location summary of
// instr describes: the comparison of a branch, otherwise instr itself.
func OperandsOf(instr Instruction) Instruction {
	if br, ok := instr.(*Branch); ok {
		return br.Comparison
	}
	return instr
}

type Return struct{ Base }

func NewReturn(v Instruction, pos TokenPosition) *Return {
	return &Return{Base: newBase(KindReturn, pos, v)}
}

type Throw struct{ Base }

func NewThrow(pos TokenPosition) *Throw {
	return &Throw{Base: newBase(KindThrow, pos)}
}

type ReThrow struct {
	Base
	CatchTryIndex int
}

func NewReThrow(catchTryIndex int, pos TokenPosition) *ReThrow {
	return &ReThrow{Base: newBase(KindReThrow, pos), CatchTryIndex: catchTryIndex}
}

// ---------------------------------------------------------------------------
// Values and locals
// ---------------------------------------------------------------------------

type Constant struct {
	Base
	Value any
}

func NewConstant(v any, pos TokenPosition) *Constant {
	return &Constant{Base: newBase(KindConstant, pos), Value: v}
}

// Parameter is the incoming argument at Index (0-based, left to right).
type Parameter struct {
	Base
	Index int
}

func NewParameter(index int) *Parameter {
	return &Parameter{Base: newBase(KindParameter, NoSourcePos), Index: index}
}

type Phi struct{ Base }

func NewPhi(inputs ...Instruction) *Phi {
	return &Phi{Base: newBase(KindPhi, NoSourcePos, inputs...)}
}

// LocalVariable is a frame variable of unoptimized code. Positive indices
// are parameters, negative indices are locals. Index 0 is reserved.
type LocalVariable struct {
	Name  string
	Index int
}

// FrameSlot maps the variable index to a frame-pointer-relative slot:
// parameters sit below the frame pointer, locals from slot 0 upwards.
func (v *LocalVariable) FrameSlot() int {
	if v.Index > 0 {
		return -v.Index
	}
	return -v.Index - 1
}

type LoadLocal struct {
	Base
	Local *LocalVariable
}

func NewLoadLocal(local *LocalVariable, pos TokenPosition) *LoadLocal {
	return &LoadLocal{Base: newBase(KindLoadLocal, pos), Local: local}
}

type StoreLocal struct {
	Base
	Local *LocalVariable
}

func NewStoreLocal(local *LocalVariable, v Instruction, pos TokenPosition) *StoreLocal {
	return &StoreLocal{Base: newBase(KindStoreLocal, pos, v), Local: local}
}

type PushArgument struct{ Base }

func NewPushArgument(v Instruction) *PushArgument {
	return &PushArgument{Base: newBase(KindPushArgument, PushArgumentPos, v)}
}

// MoveOperands is a single move of a parallel move.
type MoveOperands struct {
	Src  Location
	Dest Location
}

// ParallelMove is a set of moves that happen simultaneously.
type ParallelMove struct {
	Base
	Moves []*MoveOperands
}

func NewParallelMove() *ParallelMove {
	return &ParallelMove{Base: newBase(KindParallelMove, ParallelMovePos)}
}

// AddMove appends a move from src to dest.
func (pm *ParallelMove) AddMove(dest, src Location) {
	pm.Moves = append(pm.Moves, &MoveOperands{Src: src, Dest: dest})
}

// IsRedundant reports whether every move is a no-op.
func (pm *ParallelMove) IsRedundant() bool {
	for _, m := range pm.Moves {
		if !m.Dest.IsInvalid() && !m.Src.Equals(m.Dest) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// LoadStaticField reads a static field. Its input is the field holder.
type LoadStaticField struct {
	Base
	Field *Field
}

func NewLoadStaticField(holder Instruction, field *Field, pos TokenPosition) *LoadStaticField {
	return &LoadStaticField{Base: newBase(KindLoadStaticField, pos, holder), Field: field}
}

type StoreStaticField struct {
	Base
	Field *Field
}

func NewStoreStaticField(field *Field, v Instruction, pos TokenPosition) *StoreStaticField {
	return &StoreStaticField{Base: newBase(KindStoreStaticField, pos, v), Field: field}
}

type InitStaticField struct {
	Base
	Field *Field
}

func NewInitStaticField(holder Instruction, field *Field, pos TokenPosition) *InitStaticField {
	return &InitStaticField{Base: newBase(KindInitStaticField, pos, holder), Field: field}
}

type LoadField struct {
	Base
	Name   string
	Offset int // bytes
}

func NewLoadField(instance Instruction, name string, offset int, pos TokenPosition) *LoadField {
	return &LoadField{Base: newBase(KindLoadField, pos, instance), Name: name, Offset: offset}
}

type StoreInstanceField struct {
	Base
	Name   string
	Offset int // bytes
}

func NewStoreInstanceField(instance, v Instruction, name string, offset int, pos TokenPosition) *StoreInstanceField {
	return &StoreInstanceField{Base: newBase(KindStoreInstanceField, pos, instance, v), Name: name, Offset: offset}
}

type LoadClassId struct{ Base }

func NewLoadClassId(v Instruction, pos TokenPosition) *LoadClassId {
	return &LoadClassId{Base: newBase(KindLoadClassId, pos, v)}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

type InstanceCall struct {
	Base
	Arguments
	Selector      string
	Op            Token
	ArgNames      []string
	NumArgsTested int
}

func NewInstanceCall(selector string, op Token, args []*PushArgument, pos TokenPosition) *InstanceCall {
	tested := 1
	if op != TokenIllegal && len(args) >= 2 {
		tested = 2
	}
	return &InstanceCall{
		Base:          newBase(KindInstanceCall, pos),
		Arguments:     Arguments{Args: args},
		Selector:      selector,
		Op:            op,
		NumArgsTested: tested,
	}
}

type StaticCall struct {
	Base
	Arguments
	Function *Function
	ArgNames []string
}

func NewStaticCall(fn *Function, args []*PushArgument, pos TokenPosition) *StaticCall {
	return &StaticCall{Base: newBase(KindStaticCall, pos), Arguments: Arguments{Args: args}, Function: fn}
}

// ClosureCall calls the closure in input 0.
type ClosureCall struct {
	Base
	Arguments
	ArgNames []string
}

func NewClosureCall(fn Instruction, args []*PushArgument, pos TokenPosition) *ClosureCall {
	return &ClosureCall{Base: newBase(KindClosureCall, pos, fn), Arguments: Arguments{Args: args}}
}

type PolymorphicInstanceCall struct {
	Base
	Call    *InstanceCall
	Targets []*Function
}

func NewPolymorphicInstanceCall(call *InstanceCall, targets []*Function) *PolymorphicInstanceCall {
	return &PolymorphicInstanceCall{
		Base:    newBase(KindPolymorphicInstanceCall, call.TokenPos()),
		Call:    call,
		Targets: targets,
	}
}

func (p *PolymorphicInstanceCall) ArgumentCount() int             { return p.Call.ArgumentCount() }
func (p *PolymorphicInstanceCall) ArgumentAt(i int) *PushArgument { return p.Call.ArgumentAt(i) }

// StringInterpolate concatenates the values array in input 0 by calling
// CallFunction.
type StringInterpolate struct {
	Base
	CallFunction *Function
}

func NewStringInterpolate(values Instruction, callFunction *Function, pos TokenPosition) *StringInterpolate {
	return &StringInterpolate{Base: newBase(KindStringInterpolate, pos, values), CallFunction: callFunction}
}

type NativeCall struct {
	Base
	Function   *Function
	Native     *NativeFunction
	Bootstrap  bool
	LinkLazily bool
}

func NewNativeCall(fn *Function, native *NativeFunction, pos TokenPosition) *NativeCall {
	return &NativeCall{Base: newBase(KindNativeCall, pos), Function: fn, Native: native}
}

// ---------------------------------------------------------------------------
// Comparisons and checks
// ---------------------------------------------------------------------------

// StrictCompare is identity comparison. Numbers compare by value, which
// needs a runtime check when operand types are not known.
type StrictCompare struct {
	Base
	Op               Token
	NeedsNumberCheck bool
}

func NewStrictCompare(op Token, left, right Instruction, needsNumberCheck bool, pos TokenPosition) *StrictCompare {
	return &StrictCompare{
		Base:             newBase(KindStrictCompare, pos, left, right),
		Op:               op,
		NeedsNumberCheck: needsNumberCheck,
	}
}

func (c *StrictCompare) Operator() Token { return c.Op }

// MayCall is true only when the number check reaches the runtime at a
// source position that can be reported.
func (c *StrictCompare) MayCall() bool {
	return c.NeedsNumberCheck && c.TokenPos().IsReal()
}

// Compare is a comparison kind without a bytecode lowering (EqualityCompare,
// RelationalOp, TestSmi, TestCids).
type Compare struct {
	Base
	Op Token
}

func NewCompare(kind Kind, op Token, left, right Instruction, pos TokenPosition) *Compare {
	return &Compare{Base: newBase(kind, pos, left, right), Op: op}
}

func (c *Compare) Operator() Token { return c.Op }

type BooleanNegate struct{ Base }

func NewBooleanNegate(v Instruction, pos TokenPosition) *BooleanNegate {
	return &BooleanNegate{Base: newBase(KindBooleanNegate, pos, v)}
}

// AssertAssignable checks input 0 against DstType instantiated with the
// type arguments in input 1.
type AssertAssignable struct {
	Base
	DstType *Type
	DstName string
}

func NewAssertAssignable(v, instantiatorTypeArgs Instruction, dstType *Type, dstName string, pos TokenPosition) *AssertAssignable {
	return &AssertAssignable{
		Base:    newBase(KindAssertAssignable, pos, v, instantiatorTypeArgs),
		DstType: dstType,
		DstName: dstName,
	}
}

type AssertBoolean struct{ Base }

func NewAssertBoolean(v Instruction, pos TokenPosition) *AssertBoolean {
	return &AssertBoolean{Base: newBase(KindAssertBoolean, pos, v)}
}

type CheckStackOverflow struct {
	Base
	LoopDepth int
}

func NewCheckStackOverflow(loopDepth int, pos TokenPosition) *CheckStackOverflow {
	return &CheckStackOverflow{Base: newBase(KindCheckStackOverflow, pos), LoopDepth: loopDepth}
}

// DebugStepCheck is a single-stepping hook. StubKind is the descriptor kind
// recorded at the check.
type DebugStepCheck struct {
	Base
	StubKind PcDescriptorKind
}

func NewDebugStepCheck(stubKind PcDescriptorKind, pos TokenPosition) *DebugStepCheck {
	return &DebugStepCheck{Base: newBase(KindDebugStepCheck, pos), StubKind: stubKind}
}

// ---------------------------------------------------------------------------
// Allocation and types
// ---------------------------------------------------------------------------

// AllocateObject allocates an instance of Class. A generic class receives
// its type arguments as the single pushed argument.
type AllocateObject struct {
	Base
	Arguments
	Class *Class
}

func NewAllocateObject(cls *Class, args []*PushArgument, pos TokenPosition) *AllocateObject {
	return &AllocateObject{Base: newBase(KindAllocateObject, pos), Arguments: Arguments{Args: args}, Class: cls}
}

type AllocateContext struct {
	Base
	NumVariables int
}

func NewAllocateContext(n int, pos TokenPosition) *AllocateContext {
	return &AllocateContext{Base: newBase(KindAllocateContext, pos), NumVariables: n}
}

type CloneContext struct{ Base }

func NewCloneContext(ctx Instruction, pos TokenPosition) *CloneContext {
	return &CloneContext{Base: newBase(KindCloneContext, pos, ctx)}
}

// CreateArray allocates an array; inputs are the element type arguments and
// the length.
type CreateArray struct{ Base }

func NewCreateArray(typeArgs, length Instruction, pos TokenPosition) *CreateArray {
	return &CreateArray{Base: newBase(KindCreateArray, pos, typeArgs, length)}
}

type InstantiateType struct {
	Base
	Type *Type
}

func NewInstantiateType(instantiator Instruction, t *Type, pos TokenPosition) *InstantiateType {
	return &InstantiateType{Base: newBase(KindInstantiateType, pos, instantiator), Type: t}
}

type InstantiateTypeArguments struct {
	Base
	TypeArguments *TypeArguments
}

func NewInstantiateTypeArguments(instantiator Instruction, ta *TypeArguments, pos TokenPosition) *InstantiateTypeArguments {
	return &InstantiateTypeArguments{Base: newBase(KindInstantiateTypeArguments, pos, instantiator), TypeArguments: ta}
}

// ---------------------------------------------------------------------------
// Indexed access
// ---------------------------------------------------------------------------

// LoadIndexed reads element input 1 of the indexable object in input 0.
type LoadIndexed struct {
	Base
	ClassID ClassID
}

func NewLoadIndexed(array, index Instruction, cid ClassID, pos TokenPosition) *LoadIndexed {
	return &LoadIndexed{Base: newBase(KindLoadIndexed, pos, array, index), ClassID: cid}
}

// Representation follows the element class of the array.
func (l *LoadIndexed) Representation() Representation {
	rep, ok := ElementRepresentation(l.ClassID)
	if !ok {
		return NoRepresentation
	}
	return rep
}

// StoreIndexed writes input 2 into element input 1 of input 0.
type StoreIndexed struct {
	Base
	ClassID ClassID
}

func NewStoreIndexed(array, index, value Instruction, cid ClassID, pos TokenPosition) *StoreIndexed {
	return &StoreIndexed{Base: newBase(KindStoreIndexed, pos, array, index, value), ClassID: cid}
}

// RequiredInputRepresentation is the representation input i must arrive in.
// The array itself may be tagged or untagged.
func (s *StoreIndexed) RequiredInputRepresentation(i int) Representation {
	switch i {
	case 0:
		return NoRepresentation
	case 1:
		return Tagged
	case 2:
		rep, ok := ElementRepresentation(s.ClassID)
		if !ok {
			return NoRepresentation
		}
		return rep
	}
	return NoRepresentation
}

// ---------------------------------------------------------------------------
// Instructions without a bytecode lowering
// ---------------------------------------------------------------------------

// Generic carries any kind that has no dedicated node type here.
type Generic struct {
	Base
	rep Representation
}

func NewGeneric(kind Kind, pos TokenPosition, inputs ...Instruction) *Generic {
	return &Generic{Base: newBase(kind, pos, inputs...)}
}

// SetRepresentation overrides the representation of the defined value.
func (g *Generic) SetRepresentation(rep Representation) { g.rep = rep }

func (g *Generic) Representation() Representation {
	if g.rep != NoRepresentation {
		return g.rep
	}
	return g.Base.Representation()
}
