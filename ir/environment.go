package ir

import (
	"fmt"
	"strings"
)

// Environment is the deoptimization snapshot attached to an instruction:
// the values live in the unoptimized frame at that point, innermost frame
// first, with Outer linking to the caller frame of an inlined call.
type Environment struct {
	values          []Instruction
	locations       []Location
	fixedParamCount int
	deoptID         int
	function        *Function
	outer           *Environment
}

// NewEnvironment creates an environment over values.
func NewEnvironment(fn *Function, deoptID, fixedParamCount int, values []Instruction, outer *Environment) *Environment {
	return &Environment{
		values:          values,
		fixedParamCount: fixedParamCount,
		deoptID:         deoptID,
		function:        fn,
		outer:           outer,
	}
}

func (e *Environment) Length() int                { return len(e.values) }
func (e *Environment) ValueAt(i int) Instruction  { return e.values[i] }
func (e *Environment) Values() []Instruction      { return e.values }
func (e *Environment) DeoptID() int               { return e.deoptID }
func (e *Environment) FixedParameterCount() int   { return e.fixedParamCount }
func (e *Environment) Function() *Function        { return e.function }
func (e *Environment) Outer() *Environment        { return e.outer }
func (e *Environment) Locations() []Location      { return e.locations }
func (e *Environment) HasLocations() bool         { return e.locations != nil }
func (e *Environment) LocationAt(i int) Location  { return e.locations[i] }
func (e *Environment) SetLocations(l []Location)  { e.locations = l }
func (e *Environment) SetValues(vs []Instruction) { e.values = vs }

// Copy returns a deep copy of the environment chain. The values themselves
// are shared; only the slices are duplicated.
func (e *Environment) Copy() *Environment {
	if e == nil {
		return nil
	}
	c := *e
	c.values = append([]Instruction(nil), e.values...)
	if e.locations != nil {
		c.locations = append([]Location(nil), e.locations...)
	}
	c.outer = e.outer.Copy()
	return &c
}

// DropArguments removes the trailing argc values: the pushed arguments of a
// call that has retired. With checked set, it panics with *InvariantError
// unless locations have been allocated and every dropped value is a
// PushArgument.
func (e *Environment) DropArguments(argc int, checked bool) {
	if checked {
		if e.locations == nil {
			Invariantf("dropping arguments from an unallocated environment")
		}
		if argc > len(e.values) {
			Invariantf("dropping %d arguments from environment of length %d", argc, len(e.values))
		}
		for i := 0; i < argc; i++ {
			v := e.values[len(e.values)-i-1]
			if v.Kind() != KindPushArgument {
				Invariantf("environment slot %d holds %s, not a pushed argument",
					len(e.values)-i-1, v.Kind())
			}
		}
	}
	n := len(e.values) - argc
	if n < 0 {
		n = 0
	}
	e.values = e.values[:n]
	if e.locations != nil && len(e.locations) > n {
		e.locations = e.locations[:n]
	}
}

func (e *Environment) String() string {
	var b strings.Builder
	b.WriteString(" env={ ")
	for i, v := range e.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(valueName(v))
		if e.locations != nil && i < len(e.locations) {
			fmt.Fprintf(&b, " [%s]", e.locations[i])
		}
	}
	b.WriteString(" }")
	if e.outer != nil {
		b.WriteString(" {")
		b.WriteString(e.outer.String())
		b.WriteString(" }")
	}
	return b.String()
}
