package ir

import (
	"fmt"
	"strings"
)

// WordSize is the size in bytes of one tagged slot.
const WordSize = 8

// StaticValueOffset is the byte offset of the value slot inside a static
// field holder object.
const StaticValueOffset = 2 * WordSize

// ---------------------------------------------------------------------------
// Runtime objects referenced from IR and the constant pool
// ---------------------------------------------------------------------------

// Class is a runtime class.
type Class struct {
	Name             string
	ID               ClassID
	NumTypeArguments int
}

func (c *Class) String() string {
	return "Class " + c.Name
}

// Field is a runtime field. Static fields are specialized per compilation;
// Original returns the canonical field the clone was made from.
type Field struct {
	Name     string
	Owner    *Class
	IsStatic bool
	Offset   int // instance fields: byte offset in the object
	original *Field
}

// Original returns the canonical field object.
func (f *Field) Original() *Field {
	if f.original != nil {
		return f.original
	}
	return f
}

// Clone returns a specialized copy that remembers f as its original.
func (f *Field) Clone() *Field {
	clone := *f
	clone.original = f.Original()
	return &clone
}

func (f *Field) String() string {
	if f.IsStatic {
		return fmt.Sprintf("Field <%s: static>", f.Name)
	}
	return fmt.Sprintf("Field <%s>", f.Name)
}

// Function is a callable runtime function.
type Function struct {
	Name           string
	Owner          *Class
	NumParameters  int
	IsStatic       bool
	IsClosure      bool
	IsNative       bool
	Optimizable    bool
	ParameterNames []string
}

func (f *Function) String() string {
	return "Function '" + f.Name + "'"
}

// Type is a runtime type.
type Type struct {
	Name         string
	Instantiated bool
}

func (t *Type) String() string {
	return "Type " + t.Name
}

// TypeArguments is a runtime type argument vector.
type TypeArguments struct {
	Types []*Type
	// RawInstantiatedRaw is set when instantiating with a null instantiator
	// yields the vector itself.
	RawInstantiatedRaw bool
}

func (ta *TypeArguments) String() string {
	names := make([]string, len(ta.Types))
	for i, t := range ta.Types {
		names[i] = t.Name
	}
	return "TypeArguments <" + strings.Join(names, ", ") + ">"
}

// ArgumentsDescriptor describes the shape of a call's arguments: the total
// count and the names of trailing named arguments. Descriptors with equal
// shape share one pool slot.
type ArgumentsDescriptor struct {
	Count int
	Names []string
}

// NewArgumentsDescriptor builds a descriptor for argc arguments of which the
// last len(names) are named.
func NewArgumentsDescriptor(argc int, names []string) *ArgumentsDescriptor {
	return &ArgumentsDescriptor{Count: argc, Names: names}
}

// PositionalCount is the number of arguments passed by position.
func (d *ArgumentsDescriptor) PositionalCount() int {
	return d.Count - len(d.Names)
}

// PoolKey implements the constant pool's equality key.
func (d *ArgumentsDescriptor) PoolKey() string {
	return "argdesc:" + d.String()
}

func (d *ArgumentsDescriptor) String() string {
	if len(d.Names) == 0 {
		return fmt.Sprintf("ArgDesc(%d)", d.Count)
	}
	return fmt.Sprintf("ArgDesc(%d, %s)", d.Count, strings.Join(d.Names, ","))
}

// ICData is the inline cache attached to an instance call site.
type ICData struct {
	Selector       string
	SelectorID     uint32
	ArgsDescriptor *ArgumentsDescriptor
	NumArgsTested  int
	DeoptID        int
}

func (ic *ICData) String() string {
	return fmt.Sprintf("ICData(%s, tested=%d)", ic.Selector, ic.NumArgsTested)
}

// NativeFunction is a resolved native entry point.
type NativeFunction struct {
	Name    string
	Address uint64
}

// NativeArgcTag packs the native argument count and the calling-convention
// flags the runtime needs to set up the native frame.
func NativeArgcTag(fn *Function) uint64 {
	var tag uint64
	if fn.IsClosure {
		tag |= 1
	}
	if !fn.IsStatic {
		tag |= 2
	}
	return tag | uint64(fn.NumParameters)<<2
}

// Null is the null object. Constants holding nil print as #null.
var Null = nullObject{}

type nullObject struct{}

func (nullObject) String() string { return "null" }

// FormatConstant renders a constant value the way it prints in IR dumps.
func FormatConstant(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case nullObject:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
