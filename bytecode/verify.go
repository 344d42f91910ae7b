package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Operand stack verification
// ---------------------------------------------------------------------------

// StackError reports an operand stack inconsistency at Offset.
type StackError struct {
	Offset int
	Msg    string
}

func (e *StackError) Error() string {
	return fmt.Sprintf("operand stack at %04d: %s", e.Offset, e.Msg)
}

func stackErrorf(offset int, format string, args ...any) *StackError {
	return &StackError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// Pops returns the number of operands in takes from the stack, resolving
// operand-dependent effects.
func (in Instruction) Pops() int {
	info := in.Op.Info()
	if info.Pops != VarStackEffect {
		return info.Pops
	}
	switch in.Op {
	case OpDrop:
		return in.Operands[0]
	case OpStaticCall:
		return in.Operands[0] + 1 // arguments and the function above them
	case OpInstanceCall1, OpInstanceCall2:
		return in.Operands[0]
	}
	return 0
}

// CheckStack follows every path through code from its first instruction
// and from each of entries (handler offsets, entered with an empty stack)
// and tracks the operand stack depth. ENTRY, ENTRY_OPTIMIZED and SET_FRAME
// reset the depth. It fails when an instruction takes more operands than
// the stack holds, when paths meet with different depths, when a return
// leaves values behind or when a path runs off the end. On success it
// returns the deepest stack seen.
func CheckStack(code []byte, entries ...int) (int, error) {
	instrs, err := Decode(code)
	if err != nil {
		return 0, err
	}
	if len(instrs) == 0 {
		return 0, nil
	}
	index := make(map[int]int, len(instrs))
	for i, in := range instrs {
		index[in.Offset] = i
	}
	depth := make([]int, len(instrs))
	seen := make([]bool, len(instrs))
	var work []int

	enter := func(from, offset, d int) error {
		i, ok := index[offset]
		if !ok {
			if offset == len(code) {
				return stackErrorf(from, "falls off the end of the code")
			}
			return stackErrorf(from, "transfers to %04d, which starts no instruction", offset)
		}
		if seen[i] {
			if depth[i] != d {
				return stackErrorf(offset, "%s reached with depth %d and %d", instrs[i].Op, depth[i], d)
			}
			return nil
		}
		seen[i], depth[i] = true, d
		work = append(work, i)
		return nil
	}

	if err := enter(0, 0, 0); err != nil {
		return 0, err
	}
	for _, pc := range entries {
		if err := enter(pc, pc, 0); err != nil {
			return 0, err
		}
	}

	deepest := 0
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := instrs[i]
		d := depth[i]

		switch in.Op {
		case OpEntry, OpEntryOptimized, OpSetFrame:
			d = 0
		default:
			n := in.Pops()
			if d < n {
				return deepest, stackErrorf(in.Offset, "%s needs %d operands, stack holds %d", in.Op, n, d)
			}
			d += in.Op.Info().Pushes - n
		}
		deepest = max(deepest, d)

		next := in.Offset + in.Op.Size()
		switch in.Op {
		case OpReturnTOS, OpReturn:
			if d != 0 {
				return deepest, stackErrorf(in.Offset, "%s leaves %d values on the stack", in.Op, d)
			}
			continue
		case OpThrow, OpTrap:
			continue
		case OpJump:
			if err := enter(in.Offset, in.JumpTarget(), d); err != nil {
				return deepest, err
			}
			continue
		}
		if err := enter(in.Offset, next, d); err != nil {
			return deepest, err
		}
		if in.Op.IsSkipNext() {
			j := index[next]
			if err := enter(in.Offset, next+instrs[j].Op.Size(), d); err != nil {
				return deepest, err
			}
		}
	}
	return deepest, nil
}
