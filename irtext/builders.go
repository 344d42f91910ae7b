package irtext

import (
	"strconv"

	"github.com/chazu/bcgen/ir"
)

// call is a parsed Kind(args) with its trailing position.
type call struct {
	p      *Parser
	kind   ir.Kind
	name   Token
	args   []arg
	pos    ir.TokenPosition
	hasPos bool
	failed bool
}

type buildFunc func(c *call) ir.Instruction

var builders = map[ir.Kind]buildFunc{
	ir.KindConstant: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewConstant(c.literal(0), c.posOr(ir.ConstantPos))
	},
	ir.KindParameter: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		idx := c.integer(0)
		if c.failed {
			return nil
		}
		if idx < 0 || idx >= c.p.fn.NumParameters {
			c.fail(c.name, "parameter %d of a %d-parameter function", idx, c.p.fn.NumParameters)
			return nil
		}
		return c.p.b.Parameter(idx)
	},
	ir.KindPhi: buildPhi,
	ir.KindLoadLocal: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewLoadLocal(c.local(0), c.pos)
	},
	ir.KindStoreLocal: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewStoreLocal(c.local(0), c.value(1), c.pos)
	},
	ir.KindPushArgument: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewPushArgument(c.value(0))
	},

	// Fields
	ir.KindLoadStaticField: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewLoadStaticField(c.value(1), c.p.fieldNamed(c.word(0), true).Clone(), c.pos)
	},
	ir.KindStoreStaticField: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewStoreStaticField(c.p.fieldNamed(c.word(0), true).Clone(), c.value(1), c.pos)
	},
	ir.KindInitStaticField: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewInitStaticField(c.value(1), c.p.fieldNamed(c.word(0), true).Clone(), c.pos)
	},
	ir.KindLoadField: func(c *call) ir.Instruction {
		if !c.arity(3, 3) {
			return nil
		}
		return ir.NewLoadField(c.value(0), c.word(1), c.integer(2), c.pos)
	},
	ir.KindStoreInstanceField: func(c *call) ir.Instruction {
		if !c.arity(4, 4) {
			return nil
		}
		return ir.NewStoreInstanceField(c.value(0), c.value(1), c.word(2), c.integer(3), c.pos)
	},
	ir.KindLoadClassId: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewLoadClassId(c.value(0), c.pos)
	},

	// Calls
	ir.KindInstanceCall: func(c *call) ir.Instruction {
		if !c.arity(1, -1) {
			return nil
		}
		selector := c.word(0)
		op, _ := ir.LookupToken(selector)
		return ir.NewInstanceCall(selector, op, c.pushes(1), c.pos)
	},
	ir.KindStaticCall: func(c *call) ir.Instruction {
		if !c.arity(1, -1) {
			return nil
		}
		args := c.pushes(1)
		return ir.NewStaticCall(c.p.functionNamed(c.word(0), len(args)), args, c.pos)
	},
	ir.KindClosureCall: func(c *call) ir.Instruction {
		if !c.arity(1, -1) {
			return nil
		}
		return ir.NewClosureCall(c.value(0), c.pushes(1), c.pos)
	},
	ir.KindStringInterpolate: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewStringInterpolate(c.value(0), c.p.functionNamed("_interpolate", 1), c.pos)
	},
	ir.KindNativeCall: buildNativeCall,

	// Comparisons
	ir.KindStrictCompare: func(c *call) ir.Instruction {
		if !c.arity(3, 4) {
			return nil
		}
		numberCheck := false
		if len(c.args) == 4 {
			if w := c.word(3); w != "number_check" {
				c.fail(c.args[3][0], "unknown strict compare flag %s", w)
			}
			numberCheck = true
		}
		return ir.NewStrictCompare(c.token(0), c.value(1), c.value(2), numberCheck, c.pos)
	},
	ir.KindEqualityCompare: buildCompare,
	ir.KindRelationalOp:    buildCompare,
	ir.KindTestSmi:         buildCompare,
	ir.KindTestCids:        buildCompare,
	ir.KindBooleanNegate: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewBooleanNegate(c.value(0), c.pos)
	},

	// Checks
	ir.KindAssertAssignable: func(c *call) ir.Instruction {
		if !c.arity(4, 4) {
			return nil
		}
		return ir.NewAssertAssignable(c.value(0), c.value(1), c.p.typeNamed(c.word(2)), c.word(3), c.pos)
	},
	ir.KindAssertBoolean: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewAssertBoolean(c.value(0), c.pos)
	},
	ir.KindCheckStackOverflow: func(c *call) ir.Instruction {
		if !c.arity(0, 1) {
			return nil
		}
		depth := 0
		if len(c.args) == 1 {
			depth = c.integer(0)
		}
		return ir.NewCheckStackOverflow(depth, c.pos)
	},
	ir.KindDebugStepCheck: func(c *call) ir.Instruction {
		if !c.arity(0, 0) {
			return nil
		}
		return ir.NewDebugStepCheck(ir.PcRuntimeCall, c.pos)
	},

	// Allocation and types
	ir.KindAllocateObject: func(c *call) ir.Instruction {
		if !c.arity(1, -1) {
			return nil
		}
		return ir.NewAllocateObject(c.p.classNamed(c.word(0)), c.pushes(1), c.pos)
	},
	ir.KindAllocateContext: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewAllocateContext(c.integer(0), c.pos)
	},
	ir.KindCloneContext: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewCloneContext(c.value(0), c.pos)
	},
	ir.KindCreateArray: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewCreateArray(c.value(0), c.value(1), c.pos)
	},
	ir.KindInstantiateType: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewInstantiateType(c.value(1), c.p.typeNamed(c.word(0)), c.pos)
	},
	ir.KindInstantiateTypeArguments: func(c *call) ir.Instruction {
		if !c.arity(2, 2) {
			return nil
		}
		return ir.NewInstantiateTypeArguments(c.value(1), c.typeArguments(0), c.pos)
	},

	// Indexed access
	ir.KindLoadIndexed: func(c *call) ir.Instruction {
		if !c.arity(3, 3) {
			return nil
		}
		return ir.NewLoadIndexed(c.value(0), c.value(1), c.classID(2), c.pos)
	},
	ir.KindStoreIndexed: func(c *call) ir.Instruction {
		if !c.arity(4, 4) {
			return nil
		}
		return ir.NewStoreIndexed(c.value(0), c.value(1), c.value(2), c.classID(3), c.pos)
	},

	// Control
	ir.KindReturn: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewReturn(c.value(0), c.pos)
	},
	ir.KindThrow: func(c *call) ir.Instruction {
		if !c.arity(0, 0) {
			return nil
		}
		return ir.NewThrow(c.pos)
	},
	ir.KindReThrow: func(c *call) ir.Instruction {
		if !c.arity(1, 1) {
			return nil
		}
		return ir.NewReThrow(c.integer(0), c.pos)
	},
}

// buildPhi creates the phi with empty inputs; they are resolved once every
// value of the function is known.
func buildPhi(c *call) ir.Instruction {
	join := c.p.b.Current()
	if _, ok := join.Entry.(*ir.JoinEntry); !ok {
		c.fail(c.name, "phi outside a join block")
		return nil
	}
	names := make([]Token, len(c.args))
	for i, a := range c.args {
		if len(a) != 1 || a[0].Type != TokenIdent {
			c.fail(a[0], "want a value, got %s", a)
			return nil
		}
		names[i] = a[0]
	}
	phi := c.p.b.Phi(join, make([]ir.Instruction, len(names))...)
	c.p.phis = append(c.p.phis, pendingPhi{phi: phi, names: names})
	return phi
}

// buildNativeCall reads NativeCall(name[, address[, bootstrap]]). Without
// an address the call is linked lazily.
func buildNativeCall(c *call) ir.Instruction {
	if !c.arity(1, 3) {
		return nil
	}
	n := ir.NewNativeCall(c.p.fn, nil, c.pos)
	name := c.word(0)
	if len(c.args) == 1 {
		n.LinkLazily = true
		n.Native = &ir.NativeFunction{Name: name}
		return n
	}
	n.Native = &ir.NativeFunction{Name: name, Address: uint64(c.integer(1))}
	if len(c.args) == 3 {
		if w := c.word(2); w != "bootstrap" {
			c.fail(c.args[2][0], "unknown native call flag %s", w)
		}
		n.Bootstrap = true
	}
	return n
}

func buildCompare(c *call) ir.Instruction {
	if !c.arity(3, 3) {
		return nil
	}
	return ir.NewCompare(c.kind, c.token(0), c.value(1), c.value(2), c.pos)
}

// buildGeneric covers kinds without a dedicated node: every argument is an
// input value.
func buildGeneric(c *call) ir.Instruction {
	switch {
	case c.kind.IsBlockEntry(), c.kind == ir.KindGoto, c.kind == ir.KindBranch, c.kind == ir.KindParallelMove:
		c.fail(c.name, "%s cannot be written as an instruction", c.kind)
		return nil
	}
	inputs := make([]ir.Instruction, len(c.args))
	for i := range c.args {
		inputs[i] = c.value(i)
	}
	return ir.NewGeneric(c.kind, c.pos, inputs...)
}

// ---------------------------------------------------------------------------
// Argument accessors
// ---------------------------------------------------------------------------

func (c *call) fail(t Token, format string, args ...any) {
	c.failed = true
	c.p.errorf(t.Pos, format, args...)
}

// arity checks the argument count; hi < 0 means unbounded.
func (c *call) arity(lo, hi int) bool {
	n := len(c.args)
	if n < lo || (hi >= 0 && n > hi) {
		c.fail(c.name, "%s takes %s arguments, got %d", c.kind, arityString(lo, hi), n)
		return false
	}
	return true
}

func arityString(lo, hi int) string {
	switch {
	case hi < 0:
		return "at least " + strconv.Itoa(lo)
	case lo == hi:
		return strconv.Itoa(lo)
	}
	return strconv.Itoa(lo) + " to " + strconv.Itoa(hi)
}

func (c *call) posOr(def ir.TokenPosition) ir.TokenPosition {
	if c.hasPos {
		return c.pos
	}
	return def
}

func (c *call) single(i int) (Token, bool) {
	a := c.args[i]
	if len(a) != 1 {
		c.fail(a[0], "want a single token, got %s", a)
		return Token{}, false
	}
	return a[0], true
}

func (c *call) value(i int) ir.Instruction {
	v, ok := c.p.valueOf(c.args[i])
	if !ok {
		c.failed = true
	}
	return v
}

// pushes returns arguments from index i on, which must be PushArguments.
func (c *call) pushes(from int) []*ir.PushArgument {
	out := make([]*ir.PushArgument, 0, len(c.args)-from)
	for i := from; i < len(c.args); i++ {
		v := c.value(i)
		if v == nil {
			continue
		}
		push, ok := v.(*ir.PushArgument)
		if !ok {
			c.fail(c.args[i][0], "argument %s is a %s, want a PushArgument", c.args[i], v.Kind())
			continue
		}
		out = append(out, push)
	}
	return out
}

func (c *call) integer(i int) int {
	t, ok := c.single(i)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(t.Literal, 0, 64)
	if t.Type != TokenInteger || err != nil {
		c.fail(t, "want an integer, got %s", t.Literal)
		return 0
	}
	return int(n)
}

// word returns an identifier, operator or string argument as text.
func (c *call) word(i int) string {
	t, ok := c.single(i)
	if !ok {
		return ""
	}
	switch t.Type {
	case TokenIdent, TokenOperator:
		return t.Literal
	case TokenString:
		s, err := strconv.Unquote(t.Literal)
		if err != nil {
			c.fail(t, "bad string %s", t.Literal)
		}
		return s
	}
	c.fail(t, "want a name, got %s", t)
	return ""
}

func (c *call) token(i int) ir.Token {
	w := c.word(i)
	tok, ok := ir.LookupToken(w)
	if !ok && !c.failed {
		c.fail(c.args[i][0], "unknown operator %s", w)
	}
	return tok
}

func (c *call) local(i int) *ir.LocalVariable {
	t, ok := c.single(i)
	if !ok {
		return nil
	}
	v, ok := c.p.local(t)
	if !ok {
		c.failed = true
	}
	return v
}

func (c *call) classID(i int) ir.ClassID {
	w := c.word(i)
	cid, ok := ir.ClassIDByName(w)
	if !ok && !c.failed {
		c.fail(c.args[i][0], "unknown class id %s", w)
	}
	return cid
}

// typeArguments reads "[T, U]".
func (c *call) typeArguments(i int) *ir.TypeArguments {
	a := c.args[i]
	if a[0].Type != TokenLBracket || a[len(a)-1].Type != TokenRBracket {
		c.fail(a[0], "want [Type, ...], got %s", a)
		return nil
	}
	ta := &ir.TypeArguments{}
	for _, t := range a[1 : len(a)-1] {
		switch t.Type {
		case TokenComma:
		case TokenIdent:
			ta.Types = append(ta.Types, c.p.typeNamed(t.Literal))
		default:
			c.fail(t, "unexpected %s in type arguments", t)
			return nil
		}
	}
	return ta
}

// literal reads a constant: a number, string, true, false, null, or a
// named runtime object ("field x", "class C", "function f", "type T").
func (c *call) literal(i int) any {
	a := c.args[i]
	if len(a) == 2 && a[0].Type == TokenIdent && a[1].Type == TokenIdent {
		name := a[1].Literal
		switch a[0].Literal {
		case "field":
			return c.p.fieldNamed(name, true)
		case "class":
			return c.p.classNamed(name)
		case "function":
			return c.p.functionNamed(name, 0)
		case "type":
			return c.p.typeNamed(name)
		}
	}
	t, ok := c.single(i)
	if !ok {
		return nil
	}
	switch t.Type {
	case TokenInteger:
		n, err := strconv.ParseInt(t.Literal, 0, 64)
		if err != nil {
			c.fail(t, "bad integer %s", t.Literal)
		}
		return n
	case TokenFloat:
		f, err := strconv.ParseFloat(t.Literal, 64)
		if err != nil {
			c.fail(t, "bad float %s", t.Literal)
		}
		return f
	case TokenString:
		return c.word(i)
	case TokenIdent:
		switch t.Literal {
		case "true":
			return true
		case "false":
			return false
		case "null":
			return ir.Null
		}
	}
	c.fail(t, "bad constant %s", t.Literal)
	return nil
}
