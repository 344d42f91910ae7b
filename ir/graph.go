package ir

import "fmt"

// InvalidTryIndex marks blocks outside any try region.
const InvalidTryIndex = -1

// Block is a basic block: an entry instruction followed by straight-line
// instructions, the last of which transfers control.
type Block struct {
	ID        int
	Entry     Instruction
	Instrs    []Instruction
	Preds     []*Block
	Succs     []*Block
	TryIndex  int
	LoopDepth int
	// EntryMove is resolved after the entry and before the first instruction.
	EntryMove *ParallelMove

	graph *FlowGraph
}

// Graph returns the flow graph the block belongs to.
func (b *Block) Graph() *FlowGraph { return b.graph }

// Last returns the block's control instruction, or nil while the block is
// still open.
func (b *Block) Last() Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// IndexOf returns the position of instr in the block, or -1.
func (b *Block) IndexOf(instr Instruction) int {
	for i, in := range b.Instrs {
		if in == instr {
			return i
		}
	}
	return -1
}

// InsertAt inserts instr before position i.
func (b *Block) InsertAt(i int, instr Instruction) {
	instr.base().block = b
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[i+1:], b.Instrs[i:])
	b.Instrs[i] = instr
}

func (b *Block) String() string {
	return fmt.Sprintf("B%d", b.ID)
}

// successors derives the successor list from the entry and control
// instruction.
func (b *Block) successors() []*Block {
	if ge, ok := b.Entry.(*GraphEntry); ok {
		// Catch entries first so that the normal entry follows the graph
		// entry in reverse postorder.
		succs := append([]*Block(nil), ge.CatchEntries...)
		if ge.NormalEntry != nil {
			succs = append(succs, ge.NormalEntry)
		}
		return succs
	}
	switch last := b.Last().(type) {
	case *Goto:
		return []*Block{last.Target}
	case *Branch:
		return []*Block{last.True, last.False}
	}
	return nil
}

// ---------------------------------------------------------------------------
// FlowGraph
// ---------------------------------------------------------------------------

// FlowGraph is a function's control-flow graph.
type FlowGraph struct {
	Function *Function
	Blocks   []*Block
	Entry    *Block

	// NumStackLocals is the number of local slots of the unoptimized frame.
	NumStackLocals int
	// SpillSlotCount is the number of pseudo-registers used by optimized
	// code, set by the allocator.
	SpillSlotCount int

	order       []*Block
	nextTemp    int
	nextDeoptID int
}

// NewFlowGraph creates a graph with its graph entry block.
func NewFlowGraph(fn *Function) *FlowGraph {
	g := &FlowGraph{Function: fn}
	entry := g.NewBlock(NewGraphEntry())
	g.Entry = entry
	return g
}

// GraphEntry returns the entry instruction of the graph.
func (g *FlowGraph) GraphEntry() *GraphEntry {
	return g.Entry.Entry.(*GraphEntry)
}

// NewBlock appends a block started by entry.
func (g *FlowGraph) NewBlock(entry Instruction) *Block {
	b := &Block{ID: len(g.Blocks), Entry: entry, TryIndex: InvalidTryIndex, graph: g}
	entry.base().block = b
	if entry.Kind() != KindGraphEntry {
		g.assignDeoptID(entry)
	}
	g.Blocks = append(g.Blocks, b)
	return b
}

// Add appends instr to block b, numbering its SSA temp and deopt id.
func (g *FlowGraph) Add(b *Block, instr Instruction) Instruction {
	g.Register(instr)
	instr.base().block = b
	if br, ok := instr.(*Branch); ok {
		// A fused comparison defines no value of its own.
		g.assignDeoptID(br.Comparison)
		br.Comparison.base().block = b
	}
	b.Instrs = append(b.Instrs, instr)
	return instr
}

// Register numbers an instruction that lives outside a block's instruction
// list, such as a phi or a parameter.
func (g *FlowGraph) Register(instr Instruction) {
	base := instr.base()
	if base.kind.HasOutput() && base.ssaTemp < 0 {
		base.ssaTemp = g.nextTemp
		g.nextTemp++
	}
	g.assignDeoptID(instr)
}

func (g *FlowGraph) assignDeoptID(instr Instruction) {
	base := instr.base()
	if base.kind.info().deopt && base.deoptID == NoDeoptID {
		base.deoptID = g.nextDeoptID
		g.nextDeoptID += deoptIDStep
	}
}

// NumSSATemps is the number of SSA values defined in the graph.
func (g *FlowGraph) NumSSATemps() int { return g.nextTemp }

// ComputeEdges rebuilds predecessor and successor lists from the control
// instructions.
func (g *FlowGraph) ComputeEdges() {
	for _, b := range g.Blocks {
		b.Preds = nil
	}
	for _, b := range g.Blocks {
		b.Succs = b.successors()
		for _, s := range b.Succs {
			s.Preds = append(s.Preds, b)
		}
	}
}

// SetBlockOrder fixes the emission order.
func (g *FlowGraph) SetBlockOrder(order []*Block) {
	g.order = order
}

// CodegenBlockOrder returns the order blocks are emitted in: the explicit
// order if one was set, otherwise reverse postorder from the entry.
func (g *FlowGraph) CodegenBlockOrder() []*Block {
	if g.order != nil {
		return g.order
	}
	g.order = g.reversePostorder()
	return g.order
}

func (g *FlowGraph) reversePostorder() []*Block {
	visited := make(map[*Block]bool, len(g.Blocks))
	var post []*Block
	var visit func(b *Block)
	visit = func(b *Block) {
		visited[b] = true
		for _, s := range b.successors() {
			if !visited[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(g.Entry)
	order := make([]*Block, len(post))
	for i, b := range post {
		order[len(post)-1-i] = b
	}
	return order
}

// ForEachInstruction calls fn for every instruction in codegen order,
// including block entries and branch comparisons.
func (g *FlowGraph) ForEachInstruction(fn func(b *Block, instr Instruction)) {
	for _, b := range g.CodegenBlockOrder() {
		fn(b, b.Entry)
		if je, ok := b.Entry.(*JoinEntry); ok {
			for _, phi := range je.Phis {
				fn(b, phi)
			}
		}
		if ge, ok := b.Entry.(*GraphEntry); ok {
			for _, p := range ge.Parameters {
				fn(b, p)
			}
		}
		for _, instr := range b.Instrs {
			if br, ok := instr.(*Branch); ok {
				fn(b, br.Comparison)
			}
			fn(b, instr)
		}
	}
}
