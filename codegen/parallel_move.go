package codegen

import (
	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

// ---------------------------------------------------------------------------
// Parallel move resolution
// ---------------------------------------------------------------------------

// pendingMove is the resolver's working copy of one move. The IR move is
// never modified.
type pendingMove struct {
	src, dest ir.Location
	pending   bool
	done      bool
}

// blocks reports whether the move still needs to read loc.
func (m *pendingMove) blocks(loc ir.Location) bool {
	return !m.done && m.src.Equals(loc)
}

// moveResolver sequentializes parallel moves. Moves are performed in
// dependency order; cycles are broken with swaps. Constant sources cannot
// block anything and are loaded last.
type moveResolver struct {
	c     *Compiler
	moves []*pendingMove
}

func (r *moveResolver) emit(pm *ir.ParallelMove) {
	r.moves = r.moves[:0]
	for _, m := range pm.Moves {
		if m.Dest.IsInvalid() || m.Src.Equals(m.Dest) {
			continue
		}
		r.c.assert(m.Dest.IsFrameSlot(), "parallel move into %s", m.Dest)
		r.moves = append(r.moves, &pendingMove{src: m.Src, dest: m.Dest})
	}

	for _, m := range r.moves {
		if !m.done && !m.src.IsConstant() {
			r.perform(m)
		}
	}
	for _, m := range r.moves {
		if !m.done {
			r.c.assert(m.src.IsConstant(), "unresolved move %s <- %s", m.dest, m.src)
			r.c.asm.LoadConstant(m.dest.Slot(), m.src.Constant().Value)
			m.done = true
		}
	}
}

// perform emits m after every move that reads its destination.
func (r *moveResolver) perform(m *pendingMove) {
	m.pending = true
	for _, other := range r.moves {
		if !other.pending && other.blocks(m.dest) {
			r.perform(other)
		}
	}
	m.pending = false

	// A swap performed deeper in the recursion may have moved our source
	// into place.
	if m.src.Equals(m.dest) {
		m.done = true
		return
	}

	// A pending move still reads our destination: a cycle.
	for _, other := range r.moves {
		if other != m && other.blocks(m.dest) {
			r.swap(m)
			return
		}
	}

	r.c.asm.Emit(bytecode.OpMove, m.dest.Slot(), m.src.Slot())
	m.done = true
}

// swap exchanges the source and destination of m and redirects the
// remaining reads of either slot.
func (r *moveResolver) swap(m *pendingMove) {
	src, dest := m.src, m.dest
	r.c.asm.Emit(bytecode.OpSwap, dest.Slot(), src.Slot())
	m.done = true
	for _, other := range r.moves {
		switch {
		case other.blocks(src):
			other.src = dest
		case other.blocks(dest):
			other.src = src
		}
	}
}
