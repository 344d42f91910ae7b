// Package codeimage is the serialized form of compiled code. An Image holds
// the bytecode, a self-describing copy of the object pool and the metadata
// tables, encoded as canonical CBOR so that equal code hashes equally.
package codeimage

import (
	"fmt"
	"strings"

	"github.com/chazu/bcgen/bytecode"
	"github.com/chazu/bcgen/codegen"
	"github.com/chazu/bcgen/ir"
)

// FormatVersion is bumped whenever the encoding changes incompatibly.
const FormatVersion = 1

// ---------------------------------------------------------------------------
// Image
// ---------------------------------------------------------------------------

// Image is a Code with its runtime object references flattened to text.
type Image struct {
	Version       int          `cbor:"1,keyasint"`
	Name          string       `cbor:"2,keyasint"`
	Optimized     bool         `cbor:"3,keyasint,omitempty"`
	NumParameters int          `cbor:"4,keyasint"`
	FrameSize     int          `cbor:"5,keyasint"`
	EdgeCounters  int          `cbor:"6,keyasint,omitempty"`
	Bytecode      []byte       `cbor:"7,keyasint"`
	Pool          []PoolEntry  `cbor:"8,keyasint"`
	Descriptors   []Descriptor `cbor:"9,keyasint,omitempty"`
	StackMaps     []StackMap   `cbor:"10,keyasint,omitempty"`
	Handlers      []Handler    `cbor:"11,keyasint,omitempty"`
	DeoptInfos    []DeoptInfo  `cbor:"12,keyasint,omitempty"`
}

// PoolEntry tags.
const (
	TagNull   = "null"
	TagInt    = "int"
	TagFloat  = "float"
	TagString = "string"
	TagBool   = "bool"
	TagWord   = "word" // immediate entry
	TagObject = "object"
)

// PoolEntry is one object pool slot. Primitive values survive the round
// trip; object references keep only their printed form.
type PoolEntry struct {
	Immediate bool    `cbor:"1,keyasint,omitempty"`
	Tag       string  `cbor:"2,keyasint"`
	Int       int64   `cbor:"3,keyasint,omitempty"`
	Word      uint64  `cbor:"4,keyasint,omitempty"`
	Float     float64 `cbor:"5,keyasint,omitempty"`
	Text      string  `cbor:"6,keyasint,omitempty"`
	Bool      bool    `cbor:"7,keyasint,omitempty"`
}

type Descriptor struct {
	PC       int   `cbor:"1,keyasint"`
	Kind     uint8 `cbor:"2,keyasint"`
	DeoptID  int   `cbor:"3,keyasint"`
	TokenPos int32 `cbor:"4,keyasint"`
	TryIndex int   `cbor:"5,keyasint"`
}

type StackMap struct {
	PC        int   `cbor:"1,keyasint"`
	SlotCount int   `cbor:"2,keyasint"`
	Live      []int `cbor:"3,keyasint,omitempty"`
}

type Handler struct {
	TryIndex        int      `cbor:"1,keyasint"`
	OuterTryIndex   int      `cbor:"2,keyasint"`
	PC              int      `cbor:"3,keyasint"`
	HandledTypes    []string `cbor:"4,keyasint,omitempty"`
	NeedsStackTrace bool     `cbor:"5,keyasint,omitempty"`
}

// DeoptInfo lists the environment chain innermost first.
type DeoptInfo struct {
	PC      int          `cbor:"1,keyasint"`
	DeoptID int          `cbor:"2,keyasint"`
	Frames  []DeoptFrame `cbor:"3,keyasint,omitempty"`
}

// DeoptFrame is one environment: the values it materializes and, once
// allocated, where each of them lives.
type DeoptFrame struct {
	Function  string   `cbor:"1,keyasint,omitempty"`
	Values    []string `cbor:"2,keyasint"`
	Locations []string `cbor:"3,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Conversion from codegen.Code
// ---------------------------------------------------------------------------

// FromCode flattens c into an image.
func FromCode(c *codegen.Code) *Image {
	img := &Image{
		Version:       FormatVersion,
		Name:          c.Name,
		Optimized:     c.Optimized,
		NumParameters: c.NumParameters,
		FrameSize:     c.FrameSize,
		EdgeCounters:  c.EdgeCounters,
		Bytecode:      append([]byte(nil), c.Bytecode...),
	}
	if c.Pool != nil {
		for _, e := range c.Pool.Entries() {
			img.Pool = append(img.Pool, encodeEntry(e))
		}
	}
	for _, d := range c.Descriptors {
		img.Descriptors = append(img.Descriptors, Descriptor{
			PC:       d.PC,
			Kind:     uint8(d.Kind),
			DeoptID:  d.DeoptID,
			TokenPos: int32(d.TokenPos),
			TryIndex: d.TryIndex,
		})
	}
	for _, m := range c.StackMaps {
		img.StackMaps = append(img.StackMaps, StackMap{
			PC:        m.PC,
			SlotCount: m.SlotCount,
			Live:      append([]int(nil), m.Live...),
		})
	}
	for _, h := range c.Handlers {
		names := make([]string, len(h.HandledTypes))
		for i, t := range h.HandledTypes {
			names[i] = t.Name
		}
		img.Handlers = append(img.Handlers, Handler{
			TryIndex:        h.TryIndex,
			OuterTryIndex:   h.OuterTryIndex,
			PC:              h.PC,
			HandledTypes:    names,
			NeedsStackTrace: h.NeedsStackTrace,
		})
	}
	for _, d := range c.DeoptInfos {
		info := DeoptInfo{PC: d.PC, DeoptID: d.DeoptID}
		for env := d.Env; env != nil; env = env.Outer() {
			info.Frames = append(info.Frames, encodeEnv(env))
		}
		img.DeoptInfos = append(img.DeoptInfos, info)
	}
	return img
}

func encodeEntry(e bytecode.PoolEntry) PoolEntry {
	if e.Kind == bytecode.EntryImmediate {
		w, _ := e.Value.(uint64)
		return PoolEntry{Immediate: true, Tag: TagWord, Word: w}
	}
	switch v := e.Value.(type) {
	case nil:
		return PoolEntry{Tag: TagNull}
	case int64:
		return PoolEntry{Tag: TagInt, Int: v}
	case int:
		return PoolEntry{Tag: TagInt, Int: int64(v)}
	case float64:
		return PoolEntry{Tag: TagFloat, Float: v}
	case string:
		return PoolEntry{Tag: TagString, Text: v}
	case bool:
		return PoolEntry{Tag: TagBool, Bool: v}
	}
	if e.Value == ir.Null {
		return PoolEntry{Tag: TagNull}
	}
	return PoolEntry{Tag: TagObject, Text: bytecode.Describe(e.Value)}
}

func encodeEnv(env *ir.Environment) DeoptFrame {
	f := DeoptFrame{Values: make([]string, env.Length())}
	if fn := env.Function(); fn != nil {
		f.Function = fn.Name
	}
	for i, v := range env.Values() {
		f.Values[i] = valueName(v)
	}
	if env.HasLocations() {
		f.Locations = make([]string, len(env.Locations()))
		for i, l := range env.Locations() {
			f.Locations[i] = l.String()
		}
	}
	return f
}

func valueName(v ir.Instruction) string {
	if v == nil {
		return "<nil>"
	}
	if t := v.SSATemp(); t >= 0 {
		return fmt.Sprintf("v%d", t)
	}
	return v.Kind().Name()
}

// ---------------------------------------------------------------------------
// Rebuilding runtime-side views
// ---------------------------------------------------------------------------

// Object stands in for a pool object reference read back from an image.
type Object struct {
	Text string
}

func (o Object) String() string { return o.Text }

// Value returns the in-memory value of the entry.
func (e PoolEntry) Value() any {
	switch e.Tag {
	case TagNull:
		return nil
	case TagInt:
		return e.Int
	case TagFloat:
		return e.Float
	case TagString:
		return e.Text
	case TagBool:
		return e.Bool
	case TagWord:
		return e.Word
	}
	return Object{Text: e.Text}
}

// ObjectPool rebuilds a pool with the image's entries at their original
// indices.
func (img *Image) ObjectPool() *bytecode.ObjectPool {
	entries := make([]bytecode.PoolEntry, len(img.Pool))
	for i, e := range img.Pool {
		kind := bytecode.EntryTagged
		if e.Immediate {
			kind = bytecode.EntryImmediate
		}
		entries[i] = bytecode.PoolEntry{Kind: kind, Value: e.Value()}
	}
	return bytecode.PoolOf(entries)
}

// PcDescriptors converts the descriptor table back to codegen rows.
func (img *Image) PcDescriptors() []codegen.PcDescriptor {
	out := make([]codegen.PcDescriptor, len(img.Descriptors))
	for i, d := range img.Descriptors {
		out[i] = codegen.PcDescriptor{
			PC:       d.PC,
			Kind:     ir.PcDescriptorKind(d.Kind),
			DeoptID:  d.DeoptID,
			TokenPos: ir.TokenPosition(d.TokenPos),
			TryIndex: d.TryIndex,
		}
	}
	return out
}

// Disassemble returns the bytecode listing with pool annotations.
func (img *Image) Disassemble() string {
	return bytecode.Disassemble(img.Bytecode, img.ObjectPool())
}

func (f DeoptFrame) String() string {
	parts := make([]string, len(f.Values))
	for i, v := range f.Values {
		if i < len(f.Locations) {
			parts[i] = fmt.Sprintf("%s [%s]", v, f.Locations[i])
		} else {
			parts[i] = v
		}
	}
	return fmt.Sprintf("%s{ %s }", f.Function, strings.Join(parts, ", "))
}

func (d DeoptInfo) String() string {
	s := fmt.Sprintf("%04d deopt=%d", d.PC, d.DeoptID)
	for _, f := range d.Frames {
		s += " " + f.String()
	}
	return s
}

// String returns a listing in the same layout as codegen.Code.String.
func (img *Image) String() string {
	var sb strings.Builder
	mode := "unoptimized"
	if img.Optimized {
		mode = "optimized"
	}
	fmt.Fprintf(&sb, "Code %s (%s, params=%d, frame=%d)\n", img.Name, mode, img.NumParameters, img.FrameSize)
	sb.WriteString(img.Disassemble())
	sb.WriteString("\n")
	if len(img.Descriptors) > 0 {
		sb.WriteString("PcDescriptors:\n")
		for _, d := range img.PcDescriptors() {
			sb.WriteString("  " + d.String() + "\n")
		}
	}
	if len(img.Handlers) > 0 {
		sb.WriteString("Handlers:\n")
		for _, h := range img.Handlers {
			fmt.Fprintf(&sb, "  try %d (outer %d) -> %04d types=[%s] stacktrace=%t\n",
				h.TryIndex, h.OuterTryIndex, h.PC, strings.Join(h.HandledTypes, ", "), h.NeedsStackTrace)
		}
	}
	if len(img.StackMaps) > 0 {
		sb.WriteString("StackMaps:\n")
		for _, m := range img.StackMaps {
			fmt.Fprintf(&sb, "  %04d slots=%d live=%v\n", m.PC, m.SlotCount, m.Live)
		}
	}
	if len(img.DeoptInfos) > 0 {
		sb.WriteString("DeoptInfos:\n")
		for _, d := range img.DeoptInfos {
			sb.WriteString("  " + d.String() + "\n")
		}
	}
	return sb.String()
}
