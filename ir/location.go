package ir

import (
	"fmt"
	"math/bits"
	"strings"
)

// ---------------------------------------------------------------------------
// Location: where a value lives
// ---------------------------------------------------------------------------

// LocationKind discriminates Location.
type LocationKind uint8

const (
	LocInvalid LocationKind = iota
	LocUnallocated
	LocRegister
	LocStackSlot
	LocConstant
	LocPair
)

// Policy constrains an unallocated location.
type Policy uint8

const (
	PolicyAny Policy = iota
	PolicyRequiresRegister
	PolicyWritableRegister
	PolicySameAsFirstInput
	PolicyRequiresStack
)

var policyNames = [...]string{
	PolicyAny:              "any",
	PolicyRequiresRegister: "R",
	PolicyWritableRegister: "WR",
	PolicySameAsFirstInput: "0",
	PolicyRequiresStack:    "S",
}

// Location is a value-typed description of where an operand lives. In
// register mode registers are frame-relative pseudo-registers, so a register
// index and a stack slot index are both frame slots.
type Location struct {
	kind     LocationKind
	policy   Policy
	index    int
	constant *Constant
	pair     *[2]Location
}

// NoLocation is the invalid location.
func NoLocation() Location { return Location{} }

// Any is an unallocated location the allocator may place anywhere.
func Any() Location { return Location{kind: LocUnallocated, policy: PolicyAny} }

// RequiresRegister is an unallocated location that must be a register.
func RequiresRegister() Location {
	return Location{kind: LocUnallocated, policy: PolicyRequiresRegister}
}

// WritableRegister is an unallocated register the instruction may clobber.
func WritableRegister() Location {
	return Location{kind: LocUnallocated, policy: PolicyWritableRegister}
}

// SameAsFirstInput ties an output to the first input's location.
func SameAsFirstInput() Location {
	return Location{kind: LocUnallocated, policy: PolicySameAsFirstInput}
}

// RegisterLocation is the fixed pseudo-register r.
func RegisterLocation(r int) Location { return Location{kind: LocRegister, index: r} }

// StackSlot is the frame slot at index i. Parameters have negative slots.
func StackSlot(i int) Location { return Location{kind: LocStackSlot, index: i} }

// ConstantLocation is a location holding the value of c.
func ConstantLocation(c *Constant) Location { return Location{kind: LocConstant, constant: c} }

// Pair combines two locations for values that need two slots.
func Pair(lo, hi Location) Location {
	return Location{kind: LocPair, pair: &[2]Location{lo, hi}}
}

func (l Location) Kind() LocationKind { return l.kind }
func (l Location) IsInvalid() bool    { return l.kind == LocInvalid }
func (l Location) IsUnallocated() bool {
	return l.kind == LocUnallocated
}
func (l Location) IsRegister() bool  { return l.kind == LocRegister }
func (l Location) IsStackSlot() bool { return l.kind == LocStackSlot }
func (l Location) IsConstant() bool  { return l.kind == LocConstant }
func (l Location) IsPair() bool      { return l.kind == LocPair }

// Policy returns the allocation policy of an unallocated location.
func (l Location) Policy() Policy { return l.policy }

// Reg returns the register index. It panics if l is not a register.
func (l Location) Reg() int {
	if l.kind != LocRegister {
		panic(fmt.Sprintf("location %s is not a register", l))
	}
	return l.index
}

// StackIndex returns the frame slot index of a stack slot.
func (l Location) StackIndex() int {
	if l.kind != LocStackSlot {
		panic(fmt.Sprintf("location %s is not a stack slot", l))
	}
	return l.index
}

// Slot returns the frame slot of a register or stack slot.
func (l Location) Slot() int {
	if l.kind != LocRegister && l.kind != LocStackSlot {
		panic(fmt.Sprintf("location %s has no frame slot", l))
	}
	return l.index
}

// IsFrameSlot reports whether l names a frame slot.
func (l Location) IsFrameSlot() bool {
	return l.kind == LocRegister || l.kind == LocStackSlot
}

// Constant returns the constant instruction of a constant location.
func (l Location) Constant() *Constant {
	if l.kind != LocConstant {
		panic(fmt.Sprintf("location %s is not a constant", l))
	}
	return l.constant
}

// PairAt returns one half of a pair location.
func (l Location) PairAt(i int) Location {
	if l.kind != LocPair {
		panic(fmt.Sprintf("location %s is not a pair", l))
	}
	return l.pair[i]
}

// Equals compares two locations. Frame slots compare by slot regardless of
// whether they are named as a register or a stack slot.
func (l Location) Equals(other Location) bool {
	if l.IsFrameSlot() && other.IsFrameSlot() {
		return l.index == other.index
	}
	if l.kind != other.kind {
		return false
	}
	switch l.kind {
	case LocInvalid:
		return true
	case LocUnallocated:
		return l.policy == other.policy
	case LocConstant:
		return l.constant == other.constant
	case LocPair:
		return l.pair[0].Equals(other.pair[0]) && l.pair[1].Equals(other.pair[1])
	}
	return false
}

func (l Location) String() string {
	switch l.kind {
	case LocInvalid:
		return "_"
	case LocUnallocated:
		return policyNames[l.policy]
	case LocRegister:
		return fmt.Sprintf("R%d", l.index)
	case LocStackSlot:
		return fmt.Sprintf("S%+d", l.index)
	case LocConstant:
		return "C(" + FormatConstant(l.constant.Value) + ")"
	case LocPair:
		return "(" + l.pair[0].String() + ", " + l.pair[1].String() + ")"
	}
	return "?"
}

// ---------------------------------------------------------------------------
// RegisterSet
// ---------------------------------------------------------------------------

// RegisterSet is a set of non-negative frame slots.
type RegisterSet struct {
	words []uint64
}

// Add inserts r. Negative slots (parameters) are ignored.
func (s *RegisterSet) Add(r int) {
	if r < 0 {
		return
	}
	w := r / 64
	for len(s.words) <= w {
		s.words = append(s.words, 0)
	}
	s.words[w] |= 1 << (uint(r) % 64)
}

// Contains reports whether r is in the set.
func (s *RegisterSet) Contains(r int) bool {
	if r < 0 || r/64 >= len(s.words) {
		return false
	}
	return s.words[r/64]&(1<<(uint(r)%64)) != 0
}

// Len returns the number of slots in the set.
func (s *RegisterSet) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Slice returns the set members in ascending order.
func (s *RegisterSet) Slice() []int {
	var out []int
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, i*64+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// LocationSummary
// ---------------------------------------------------------------------------

// ContainsCall says whether emitting an instruction is a call boundary.
type ContainsCall uint8

const (
	NoCall ContainsCall = iota
	Call
)

// LocationSummary is the per-instruction operand contract produced before
// allocation and completed by the allocator.
type LocationSummary struct {
	inputs []Location
	temps  []Location
	output Location
	call   ContainsCall
	live   RegisterSet
}

// NewLocationSummary creates a summary with all locations invalid.
func NewLocationSummary(numInputs, numTemps int, call ContainsCall) *LocationSummary {
	return &LocationSummary{
		inputs: make([]Location, numInputs),
		temps:  make([]Location, numTemps),
		call:   call,
	}
}

// CallSummary is the summary of a plain call: no register inputs and the
// result in the first call-convention register.
func CallSummary() *LocationSummary {
	s := NewLocationSummary(0, 0, Call)
	s.SetOut(RegisterLocation(0))
	return s
}

func (s *LocationSummary) InputCount() int             { return len(s.inputs) }
func (s *LocationSummary) In(i int) Location           { return s.inputs[i] }
func (s *LocationSummary) SetIn(i int, loc Location)   { s.inputs[i] = loc }
func (s *LocationSummary) TempCount() int              { return len(s.temps) }
func (s *LocationSummary) Temp(i int) Location         { return s.temps[i] }
func (s *LocationSummary) SetTemp(i int, loc Location) { s.temps[i] = loc }
func (s *LocationSummary) Out() Location               { return s.output }
func (s *LocationSummary) SetOut(loc Location)         { s.output = loc }

// ContainsCall reports whether the instruction is a call boundary.
func (s *LocationSummary) ContainsCall() bool { return s.call == Call }

// LiveRegisters is the set of tagged slots live across the instruction.
// The allocator fills it for call boundaries.
func (s *LocationSummary) LiveRegisters() *RegisterSet { return &s.live }

// Copy returns a summary with the same locations.
func (s *LocationSummary) Copy() *LocationSummary {
	c := &LocationSummary{
		inputs: append([]Location(nil), s.inputs...),
		temps:  append([]Location(nil), s.temps...),
		output: s.output,
		call:   s.call,
	}
	c.live.words = append([]uint64(nil), s.live.words...)
	return c
}

func (s *LocationSummary) String() string {
	var b strings.Builder
	b.WriteString(s.output.String())
	b.WriteString(" <- (")
	for i, in := range s.inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(in.String())
	}
	b.WriteString(")")
	if len(s.temps) > 0 {
		b.WriteString(" temps(")
		for i, t := range s.temps {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.String())
		}
		b.WriteString(")")
	}
	if s.call == Call {
		b.WriteString(" call")
	}
	return b.String()
}
