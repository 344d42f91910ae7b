package ir

// Builder assembles a FlowGraph block by block.
type Builder struct {
	g   *FlowGraph
	cur *Block
}

// NewBuilder starts a graph for fn.
func NewBuilder(fn *Function) *Builder {
	return &Builder{g: NewFlowGraph(fn)}
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *FlowGraph { return b.g }

// Current returns the block instructions are appended to.
func (b *Builder) Current() *Block { return b.cur }

// SetCurrent switches the insertion block.
func (b *Builder) SetCurrent(blk *Block) { b.cur = blk }

// NewTarget creates a target block.
func (b *Builder) NewTarget() *Block {
	return b.g.NewBlock(NewTargetEntry())
}

// NewJoin creates a join block.
func (b *Builder) NewJoin() *Block {
	return b.g.NewBlock(NewJoinEntry())
}

// NewCatch creates a catch block and registers it with the graph entry.
func (b *Builder) NewCatch(entry *CatchBlockEntry, tryIndex int) *Block {
	blk := b.g.NewBlock(entry)
	blk.TryIndex = tryIndex
	ge := b.g.GraphEntry()
	ge.CatchEntries = append(ge.CatchEntries, blk)
	return blk
}

// SetNormalEntry marks blk as the block the graph entry continues to, and
// makes it current.
func (b *Builder) SetNormalEntry(blk *Block) {
	b.g.GraphEntry().NormalEntry = blk
	b.cur = blk
}

// Parameter declares incoming parameter index.
func (b *Builder) Parameter(index int) *Parameter {
	p := NewParameter(index)
	p.base().block = b.g.Entry
	b.g.Register(p)
	ge := b.g.GraphEntry()
	ge.Parameters = append(ge.Parameters, p)
	return p
}

// Add appends instr to the current block.
func (b *Builder) Add(instr Instruction) Instruction {
	if b.cur == nil {
		panic("builder has no current block")
	}
	return b.g.Add(b.cur, instr)
}

// Emit appends instr to the current block and returns it with its concrete
// type.
func Emit[T Instruction](b *Builder, instr T) T {
	b.Add(instr)
	return instr
}

// Constant appends a constant.
func (b *Builder) Constant(v any, pos TokenPosition) *Constant {
	return Emit(b, NewConstant(v, pos))
}

// Push appends a PushArgument of v.
func (b *Builder) Push(v Instruction) *PushArgument {
	return Emit(b, NewPushArgument(v))
}

// Goto closes the current block with a jump to target.
func (b *Builder) Goto(target *Block) *Goto {
	return Emit(b, NewGoto(target))
}

// Branch closes the current block with a conditional branch.
func (b *Builder) Branch(cmp Comparison, t, f *Block) *Branch {
	return Emit(b, NewBranch(cmp, t, f))
}

// Return closes the current block with a return of v.
func (b *Builder) Return(v Instruction, pos TokenPosition) *Return {
	return Emit(b, NewReturn(v, pos))
}

// Phi adds a phi to a join block.
func (b *Builder) Phi(join *Block, inputs ...Instruction) *Phi {
	je, ok := join.Entry.(*JoinEntry)
	if !ok {
		panic("phi added to " + join.Entry.Kind().Name())
	}
	phi := NewPhi(inputs...)
	phi.base().block = join
	b.g.Register(phi)
	je.Phis = append(je.Phis, phi)
	return phi
}

// Finish links the blocks and returns the graph.
func (b *Builder) Finish() *FlowGraph {
	b.g.ComputeEdges()
	return b.g
}
