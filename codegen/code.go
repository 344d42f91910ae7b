package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/ir"
)

// ---------------------------------------------------------------------------
// Code: the result of compiling one flow graph
// ---------------------------------------------------------------------------

// Code is compiled bytecode together with the metadata the runtime needs
// to walk, deoptimize and unwind its frames.
type Code struct {
	Name          string
	Optimized     bool
	NumParameters int
	FrameSize     int // locals (unoptimized) or pseudo-registers (optimized)
	EdgeCounters  int

	// Compiled code
	Bytecode []byte
	Pool     *bytecode.ObjectPool

	// Metadata, each ordered by code offset
	Descriptors []PcDescriptor
	StackMaps   []StackMap
	Handlers    []ExceptionHandler
	DeoptInfos  []DeoptInfo
}

// PcDescriptor maps a code offset to what happens there.
type PcDescriptor struct {
	PC       int
	Kind     ir.PcDescriptorKind
	DeoptID  int
	TokenPos ir.TokenPosition
	TryIndex int
}

func (d PcDescriptor) String() string {
	return fmt.Sprintf("%04d %-12s deopt=%d pos=%s try=%d", d.PC, d.Kind, d.DeoptID, d.TokenPos, d.TryIndex)
}

// StackMap records which frame slots hold tagged values at a safepoint.
type StackMap struct {
	PC        int
	SlotCount int
	Live      []int // ascending frame slots
}

func (m StackMap) String() string {
	return fmt.Sprintf("%04d slots=%d live=%v", m.PC, m.SlotCount, m.Live)
}

// ExceptionHandler is one row of the handler table.
type ExceptionHandler struct {
	TryIndex        int
	OuterTryIndex   int
	PC              int
	HandledTypes    []*ir.Type
	NeedsStackTrace bool
}

func (h ExceptionHandler) String() string {
	names := make([]string, len(h.HandledTypes))
	for i, t := range h.HandledTypes {
		names[i] = t.Name
	}
	return fmt.Sprintf("try %d (outer %d) -> %04d types=[%s] stacktrace=%t",
		h.TryIndex, h.OuterTryIndex, h.PC, strings.Join(names, ", "), h.NeedsStackTrace)
}

// DeoptInfo is the environment to rebuild when optimized code deoptimizes
// at PC.
type DeoptInfo struct {
	PC      int
	DeoptID int
	Env     *ir.Environment
}

func (d DeoptInfo) String() string {
	if d.Env == nil {
		return fmt.Sprintf("%04d deopt=%d", d.PC, d.DeoptID)
	}
	return fmt.Sprintf("%04d deopt=%d%s", d.PC, d.DeoptID, d.Env)
}

// ---------------------------------------------------------------------------
// Metadata queries
// ---------------------------------------------------------------------------

// DescriptorsOfKind returns the descriptors whose kind intersects mask.
func (c *Code) DescriptorsOfKind(mask ir.PcDescriptorKind) []PcDescriptor {
	var out []PcDescriptor
	for _, d := range c.Descriptors {
		if d.Kind&mask != 0 {
			out = append(out, d)
		}
	}
	return out
}

// DescriptorAt returns the first descriptor recorded at pc.
func (c *Code) DescriptorAt(pc int) (PcDescriptor, bool) {
	i := sort.Search(len(c.Descriptors), func(i int) bool {
		return c.Descriptors[i].PC >= pc
	})
	if i < len(c.Descriptors) && c.Descriptors[i].PC == pc {
		return c.Descriptors[i], true
	}
	return PcDescriptor{}, false
}

// StackMapAt returns the stack map recorded at pc.
func (c *Code) StackMapAt(pc int) (StackMap, bool) {
	for _, m := range c.StackMaps {
		if m.PC == pc {
			return m, true
		}
	}
	return StackMap{}, false
}

// HandlerFor returns the handler of try index idx.
func (c *Code) HandlerFor(idx int) (ExceptionHandler, bool) {
	for _, h := range c.Handlers {
		if h.TryIndex == idx {
			return h, true
		}
	}
	return ExceptionHandler{}, false
}

// CheckStack verifies the operand stack depth along every path, entering
// exception handlers with an empty stack. It returns the deepest stack.
func (c *Code) CheckStack() (int, error) {
	entries := make([]int, len(c.Handlers))
	for i, h := range c.Handlers {
		entries[i] = h.PC
	}
	return bytecode.CheckStack(c.Bytecode, entries...)
}

// ---------------------------------------------------------------------------
// Debugging support
// ---------------------------------------------------------------------------

// Disassemble returns the bytecode listing with pool annotations.
func (c *Code) Disassemble() string {
	return bytecode.Disassemble(c.Bytecode, c.Pool)
}

// String returns a full listing: header, code, and metadata tables.
func (c *Code) String() string {
	var sb strings.Builder
	mode := "unoptimized"
	if c.Optimized {
		mode = "optimized"
	}
	fmt.Fprintf(&sb, "Code %s (%s, params=%d, frame=%d)\n", c.Name, mode, c.NumParameters, c.FrameSize)
	sb.WriteString(c.Disassemble())
	sb.WriteString("\n")
	if len(c.Descriptors) > 0 {
		sb.WriteString("PcDescriptors:\n")
		for _, d := range c.Descriptors {
			sb.WriteString("  " + d.String() + "\n")
		}
	}
	if len(c.Handlers) > 0 {
		sb.WriteString("Handlers:\n")
		for _, h := range c.Handlers {
			sb.WriteString("  " + h.String() + "\n")
		}
	}
	if len(c.StackMaps) > 0 {
		sb.WriteString("StackMaps:\n")
		for _, m := range c.StackMaps {
			sb.WriteString("  " + m.String() + "\n")
		}
	}
	if len(c.DeoptInfos) > 0 {
		sb.WriteString("DeoptInfos:\n")
		for _, d := range c.DeoptInfos {
			sb.WriteString("  " + d.String() + "\n")
		}
	}
	return sb.String()
}
