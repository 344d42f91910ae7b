// Package irtext parses a line-oriented text form of flow graphs.
//
// A file holds one or more functions:
//
//	function add(2) static
//	local tmp -1
//	B1:
//	  v0 <- Parameter(0)
//	  v1 <- Parameter(1)
//	  v2 <- PushArgument(v0)
//	  v3 <- PushArgument(v1)
//	  v4 <- InstanceCall(+, v2, v3) @4:13 env(v0, v1)
//	  Return(v4) @5:3
//
// Blocks are introduced by "Bn:" optionally followed by "join" or
// "catch <try> [Types] <exception var> <stack trace var> [needs_stacktrace]",
// and "try <n>" for blocks inside a try. The first non-catch block is the
// normal entry. Positions are "@line:col" (resolved through a script),
// "@offset" or a classifying name such as "@none".
package irtext

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chazu/bcgen/ir"
	"github.com/chazu/bcgen/source"
)

// ParseError is a syntax or reference error at a position of the text.
type ParseError struct {
	Pos Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ErrNoFunction is returned for text without a function body.
var ErrNoFunction = errors.New("irtext: no function")

var blockLabel = regexp.MustCompile(`^B[0-9]+$`)

// arg is one comma-separated argument: a run of tokens.
type arg []Token

func (a arg) String() string {
	parts := make([]string, len(a))
	for i, t := range a {
		parts[i] = t.Literal
	}
	return strings.Join(parts, " ")
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Parse parses text holding exactly one function.
func Parse(text string, script *source.Script) (*ir.FlowGraph, error) {
	graphs, err := ParseAll(text, script)
	if err != nil {
		return nil, err
	}
	if len(graphs) != 1 {
		return nil, fmt.Errorf("irtext: %d functions, want 1", len(graphs))
	}
	return graphs[0], nil
}

// ParseAll parses every function of text. script may be nil when no
// position uses the line:col form.
func ParseAll(text string, script *source.Script) ([]*ir.FlowGraph, error) {
	units, err := Split(text, script)
	if err != nil {
		return nil, err
	}
	var (
		graphs []*ir.FlowGraph
		errs   []error
	)
	for _, u := range units {
		g, err := u.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		graphs = append(graphs, g)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return graphs, nil
}

// Unit is the lexed text of one function. Build may be called repeatedly;
// every call returns a fresh graph.
type Unit struct {
	Name   string
	lines  [][]Token
	script *source.Script
}

// Split lexes text and cuts it into one unit per function.
func Split(text string, script *source.Script) ([]*Unit, error) {
	lines, err := splitLines(text)
	if err != nil {
		return nil, err
	}
	var units []*Unit
	for _, section := range splitFunctions(lines) {
		u := &Unit{lines: section, script: script}
		if header := section[0]; len(header) > 1 && isWord(header[0], "function") {
			u.Name = header[1].Literal
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, ErrNoFunction
	}
	return units, nil
}

// Build parses the unit into a flow graph.
func (u *Unit) Build() (*ir.FlowGraph, error) {
	p := newParser(u.lines, u.script)
	g := p.parse()
	if len(p.errors) > 0 {
		return nil, errors.Join(p.errors...)
	}
	return g, nil
}

// splitLines lexes text into non-empty lines of tokens.
func splitLines(text string) ([][]Token, error) {
	l := NewLexer(text)
	var (
		lines [][]Token
		cur   []Token
	)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case TokenError:
			return nil, &ParseError{Pos: tok.Pos, Msg: tok.Literal}
		case TokenNewline, TokenEOF:
			if len(cur) > 0 {
				lines = append(lines, cur)
				cur = nil
			}
			if tok.Type == TokenEOF {
				return lines, nil
			}
		default:
			cur = append(cur, tok)
		}
	}
}

// splitFunctions groups lines into sections starting at "function" lines.
// Lines before the first header form an anonymous function.
func splitFunctions(lines [][]Token) [][][]Token {
	var sections [][][]Token
	for _, line := range lines {
		if isWord(line[0], "function") || len(sections) == 0 {
			sections = append(sections, nil)
		}
		sections[len(sections)-1] = append(sections[len(sections)-1], line)
	}
	return sections
}

func isWord(t Token, word string) bool {
	return t.Type == TokenIdent && t.Literal == word
}

func isBlockHeader(line []Token) bool {
	return len(line) >= 2 && line[0].Type == TokenIdent && blockLabel.MatchString(line[0].Literal) &&
		line[1].Type == TokenColon
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

type pendingPhi struct {
	phi   *ir.Phi
	names []Token
}

// Parser builds one function.
type Parser struct {
	lines  [][]Token
	script *source.Script
	errors []error

	fn        *ir.Function
	b         *ir.Builder
	values    map[string]ir.Instruction
	blocks    map[string]*ir.Block
	locals    map[string]*ir.LocalVariable
	fields    map[string]*ir.Field
	classes   map[string]*ir.Class
	functions map[string]*ir.Function
	types     map[string]*ir.Type
	phis      []pendingPhi
	hasEntry  bool
}

func newParser(lines [][]Token, script *source.Script) *Parser {
	return &Parser{
		lines:     lines,
		script:    script,
		values:    make(map[string]ir.Instruction),
		blocks:    make(map[string]*ir.Block),
		locals:    make(map[string]*ir.LocalVariable),
		fields:    make(map[string]*ir.Field),
		classes:   make(map[string]*ir.Class),
		functions: make(map[string]*ir.Function),
		types:     make(map[string]*ir.Type),
	}
}

func (p *Parser) errorf(pos Position, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// parse declares locals and blocks first so that control flow may refer
// forward, then fills the blocks line by line.
func (p *Parser) parse() *ir.FlowGraph {
	body := p.lines
	p.fn = &ir.Function{Name: "<anonymous>"}
	if isWord(body[0][0], "function") {
		p.parseFunction(body[0])
		body = body[1:]
	}
	p.b = ir.NewBuilder(p.fn)

	for _, line := range body {
		if isWord(line[0], "local") {
			p.parseLocal(line)
		}
	}
	for _, line := range body {
		if isBlockHeader(line) {
			p.declareBlock(line)
		}
	}
	if !p.hasEntry {
		p.errorf(p.lines[0][0].Pos, "function %s has no entry block", p.fn.Name)
		return nil
	}

	for _, line := range body {
		switch {
		case isBlockHeader(line):
			p.b.SetCurrent(p.blocks[line[0].Literal])
		case isWord(line[0], "local"):
		case p.b.Current() == nil:
			p.errorf(line[0].Pos, "instruction outside a block")
		default:
			p.parseInstruction(line)
		}
	}
	p.resolvePhis()
	if len(p.errors) > 0 {
		return nil
	}

	g := p.b.Finish()
	for _, v := range p.locals {
		if v.Index < 0 && -v.Index > g.NumStackLocals {
			g.NumStackLocals = -v.Index
		}
	}
	return g
}

// parseFunction reads "function name(params) flag...".
func (p *Parser) parseFunction(line []Token) {
	if len(line) < 5 || line[1].Type != TokenIdent || line[2].Type != TokenLParen ||
		line[3].Type != TokenInteger || line[4].Type != TokenRParen {
		p.errorf(line[0].Pos, "want function name(params)")
		return
	}
	p.fn.Name = line[1].Literal
	p.fn.NumParameters, _ = strconv.Atoi(line[3].Literal)
	for _, flag := range line[5:] {
		switch flag.Literal {
		case "static":
			p.fn.IsStatic = true
		case "closure":
			p.fn.IsClosure = true
		case "native":
			p.fn.IsNative = true
		case "optimizable":
			p.fn.Optimizable = true
		default:
			p.errorf(flag.Pos, "unknown function flag %q", flag.Literal)
		}
	}
}

// parseLocal reads "local name index".
func (p *Parser) parseLocal(line []Token) {
	if len(line) != 3 || line[1].Type != TokenIdent || line[2].Type != TokenInteger {
		p.errorf(line[0].Pos, "want local name index")
		return
	}
	idx, _ := strconv.Atoi(line[2].Literal)
	if idx == 0 {
		p.errorf(line[2].Pos, "local %s uses reserved index 0", line[1].Literal)
		return
	}
	p.locals[line[1].Literal] = &ir.LocalVariable{Name: line[1].Literal, Index: idx}
}

func (p *Parser) local(t Token) (*ir.LocalVariable, bool) {
	v, ok := p.locals[t.Literal]
	if !ok {
		p.errorf(t.Pos, "undeclared local %s", t.Literal)
	}
	return v, ok
}

// declareBlock creates the block a header line introduces.
func (p *Parser) declareBlock(line []Token) {
	label := line[0]
	if _, dup := p.blocks[label.Literal]; dup {
		p.errorf(label.Pos, "block %s declared twice", label.Literal)
		return
	}
	rest := line[2:]
	tryIndex := ir.InvalidTryIndex
	if n := len(rest); n >= 2 && isWord(rest[n-2], "try") && rest[n-1].Type == TokenInteger {
		tryIndex, _ = strconv.Atoi(rest[n-1].Literal)
		rest = rest[:n-2]
	}

	var blk *ir.Block
	switch {
	case len(rest) == 0:
		blk = p.b.NewTarget()
	case isWord(rest[0], "join") && len(rest) == 1:
		blk = p.b.NewJoin()
	case isWord(rest[0], "catch"):
		entry, ok := p.parseCatch(rest)
		if !ok {
			return
		}
		blk = p.b.NewCatch(entry, tryIndex)
	default:
		p.errorf(rest[0].Pos, "unexpected %s in block header", rest[0].Literal)
		return
	}
	blk.TryIndex = tryIndex
	p.blocks[label.Literal] = blk

	if _, isCatch := blk.Entry.(*ir.CatchBlockEntry); !isCatch && !p.hasEntry {
		cur := p.b.Current()
		p.b.SetNormalEntry(blk)
		p.b.SetCurrent(cur)
		p.hasEntry = true
	}
}

// parseCatch reads "catch <try> [Type, ...] <exception> <stacktrace> [needs_stacktrace]".
func (p *Parser) parseCatch(rest []Token) (*ir.CatchBlockEntry, bool) {
	if len(rest) < 2 || rest[1].Type != TokenInteger {
		p.errorf(rest[0].Pos, "want catch <try index>")
		return nil, false
	}
	tryIndex, _ := strconv.Atoi(rest[1].Literal)
	i := 2
	var types []*ir.Type
	if i < len(rest) && rest[i].Type == TokenLBracket {
		for i++; i < len(rest) && rest[i].Type != TokenRBracket; i++ {
			switch rest[i].Type {
			case TokenComma:
			case TokenIdent:
				types = append(types, p.typeNamed(rest[i].Literal))
			default:
				p.errorf(rest[i].Pos, "unexpected %s in handled types", rest[i])
				return nil, false
			}
		}
		if i == len(rest) {
			p.errorf(rest[0].Pos, "unterminated handled types")
			return nil, false
		}
		i++
	}
	var vars []*ir.LocalVariable
	needsStackTrace := false
	for ; i < len(rest); i++ {
		t := rest[i]
		switch {
		case isWord(t, "needs_stacktrace"):
			needsStackTrace = true
		case t.Type == TokenIdent && len(vars) < 2:
			v, ok := p.local(t)
			if !ok {
				return nil, false
			}
			vars = append(vars, v)
		default:
			p.errorf(t.Pos, "unexpected %s in catch header", t)
			return nil, false
		}
	}
	for len(vars) < 2 {
		vars = append(vars, nil)
	}
	return ir.NewCatchBlockEntry(tryIndex, types, vars[0], vars[1], needsStackTrace), true
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// parseInstruction reads
//
//	[vN <-] Kind(args) trailer...
//	goto Bn trailer...
//	Branch Kind(args) Btrue Bfalse trailer...
func (p *Parser) parseInstruction(line []Token) {
	var def Token
	if len(line) > 2 && line[1].Type == TokenArrow {
		def, line = line[0], line[2:]
		if _, dup := p.values[def.Literal]; dup {
			p.errorf(def.Pos, "%s defined twice", def.Literal)
			return
		}
	}

	switch {
	case isWord(line[0], "goto"):
		if len(line) < 2 {
			p.errorf(line[0].Pos, "goto without target")
			return
		}
		target, ok := p.block(line[1])
		if !ok {
			return
		}
		p.b.Goto(target)
		p.parseTrailer(nil, line[2:])
		return

	case isWord(line[0], "Branch"):
		cmp, rest, ok := p.parseCall(line[1:])
		if !ok {
			return
		}
		comparison, isCmp := cmp.(ir.Comparison)
		if !isCmp {
			p.errorf(line[1].Pos, "%s is not a comparison", cmp.Kind())
			return
		}
		if len(rest) < 2 {
			p.errorf(line[0].Pos, "branch needs two targets")
			return
		}
		t, ok1 := p.block(rest[0])
		f, ok2 := p.block(rest[1])
		if !ok1 || !ok2 {
			return
		}
		br := p.b.Branch(comparison, t, f)
		p.parseTrailer(br, rest[2:])
		return
	}

	instr, rest, ok := p.parseCall(line)
	if !ok {
		return
	}
	switch instr.(type) {
	case *ir.Parameter, *ir.Phi:
		// Registered by the builder outside the block.
	default:
		p.b.Add(instr)
	}
	if def.Type == TokenIdent {
		if !instr.Kind().HasOutput() {
			p.errorf(def.Pos, "%s defines no value", instr.Kind())
		}
		p.values[def.Literal] = instr
	}
	p.parseTrailer(instr, rest)
}

func (p *Parser) block(t Token) (*ir.Block, bool) {
	blk, ok := p.blocks[t.Literal]
	if !ok {
		p.errorf(t.Pos, "unknown block %s", t.Literal)
	}
	return blk, ok
}

// parseCall reads Kind(args) and returns the unattached instruction and the
// tokens after it. Constructors take the position, so it is read from the
// trailer here.
func (p *Parser) parseCall(line []Token) (ir.Instruction, []Token, bool) {
	if len(line) < 3 || line[0].Type != TokenIdent || line[1].Type != TokenLParen {
		p.errorf(line[0].Pos, "want Kind(args)")
		return nil, nil, false
	}
	kind, ok := ir.KindByName(line[0].Literal)
	if !ok {
		p.errorf(line[0].Pos, "unknown instruction kind %s", line[0].Literal)
		return nil, nil, false
	}
	args, rest, ok := p.splitArgs(line[1:])
	if !ok {
		return nil, nil, false
	}

	pos, hasPos := ir.NoSourcePos, false
	for _, t := range rest {
		if t.Type == TokenPosition {
			pos, hasPos = p.position(t)
		}
	}

	build, ok := builders[kind]
	if !ok {
		build = buildGeneric
	}
	c := &call{p: p, kind: kind, name: line[0], args: args, pos: pos, hasPos: hasPos}
	instr := build(c)
	if instr == nil {
		return nil, nil, false
	}
	return instr, rest, !c.failed
}

// splitArgs reads "(" arg {"," arg} ")" and returns the tokens after ")".
func (p *Parser) splitArgs(line []Token) ([]arg, []Token, bool) {
	var (
		args  []arg
		cur   arg
		depth int
	)
	for i := 1; i < len(line); i++ {
		t := line[i]
		switch t.Type {
		case TokenLParen, TokenLBracket:
			depth++
		case TokenRBracket:
			depth--
		case TokenRParen:
			if depth == 0 {
				if len(cur) > 0 {
					args = append(args, cur)
				} else if len(args) > 0 {
					p.errorf(t.Pos, "empty argument")
					return nil, nil, false
				}
				return args, line[i+1:], true
			}
			depth--
		case TokenComma:
			if depth == 0 {
				if len(cur) == 0 {
					p.errorf(t.Pos, "empty argument")
					return nil, nil, false
				}
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
	p.errorf(line[0].Pos, "unterminated argument list")
	return nil, nil, false
}

// parseTrailer applies "env(...)" and checks that only positions and
// environments follow the instruction.
func (p *Parser) parseTrailer(instr ir.Instruction, rest []Token) {
	for i := 0; i < len(rest); i++ {
		t := rest[i]
		switch {
		case t.Type == TokenPosition:
		case isWord(t, "env") && instr != nil:
			args, after, ok := p.splitArgs(rest[i+1:])
			if !ok {
				return
			}
			values := make([]ir.Instruction, 0, len(args))
			for _, a := range args {
				v, ok := p.valueOf(a)
				if !ok {
					return
				}
				values = append(values, v)
			}
			instr.SetEnv(ir.NewEnvironment(p.fn, instr.DeoptID(), p.fn.NumParameters, values, nil))
			i = len(rest) - len(after) - 1
		default:
			p.errorf(t.Pos, "unexpected %s after instruction", t)
			return
		}
	}
}

// position resolves the literal of a TokenPosition.
func (p *Parser) position(t Token) (ir.TokenPosition, bool) {
	lit := t.Literal
	if pos, ok := ir.ParseClassifyingPosition(lit); ok {
		return pos, true
	}
	if line, col, ok := strings.Cut(lit, ":"); ok {
		if p.script == nil {
			p.errorf(t.Pos, "position %s needs a script", lit)
			return ir.NoSourcePos, false
		}
		l, err1 := strconv.Atoi(line)
		c, err2 := strconv.Atoi(col)
		if err1 != nil || err2 != nil {
			p.errorf(t.Pos, "bad position %s", lit)
			return ir.NoSourcePos, false
		}
		pos, err := p.script.TokenPos(l, c)
		if err != nil {
			p.errorf(t.Pos, "%v", err)
			return ir.NoSourcePos, false
		}
		return pos, true
	}
	off, err := strconv.Atoi(lit)
	if err != nil || off < 0 {
		p.errorf(t.Pos, "bad position %s", lit)
		return ir.NoSourcePos, false
	}
	return ir.TokenPosition(off), true
}

func (p *Parser) resolvePhis() {
	for _, pp := range p.phis {
		for i, name := range pp.names {
			v, ok := p.values[name.Literal]
			if !ok {
				p.errorf(name.Pos, "undefined value %s", name.Literal)
				continue
			}
			pp.phi.SetInputAt(i, v)
		}
	}
}

func (p *Parser) valueOf(a arg) (ir.Instruction, bool) {
	if len(a) != 1 || a[0].Type != TokenIdent {
		p.errorf(a[0].Pos, "want a value, got %s", a)
		return nil, false
	}
	v, ok := p.values[a[0].Literal]
	if !ok {
		p.errorf(a[0].Pos, "undefined value %s", a[0].Literal)
	}
	return v, ok
}

// ---------------------------------------------------------------------------
// Named runtime objects
// ---------------------------------------------------------------------------

func (p *Parser) fieldNamed(name string, static bool) *ir.Field {
	f, ok := p.fields[name]
	if !ok {
		f = &ir.Field{Name: name, IsStatic: static}
		p.fields[name] = f
	}
	return f
}

func (p *Parser) classNamed(name string) *ir.Class {
	c, ok := p.classes[name]
	if !ok {
		cid, known := ir.ClassIDByName(name)
		if !known {
			cid = ir.NumPredefinedCids + ir.ClassID(len(p.classes))
		}
		c = &ir.Class{Name: name, ID: cid}
		p.classes[name] = c
	}
	return c
}

func (p *Parser) functionNamed(name string, params int) *ir.Function {
	f, ok := p.functions[name]
	if !ok {
		f = &ir.Function{Name: name, NumParameters: params, IsStatic: true}
		p.functions[name] = f
	}
	return f
}

func (p *Parser) typeNamed(name string) *ir.Type {
	t, ok := p.types[name]
	if !ok {
		t = &ir.Type{Name: name}
		p.types[name] = t
	}
	return t
}
