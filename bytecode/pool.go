package bytecode

import (
	"fmt"
	"math"
	"reflect"
)

// ---------------------------------------------------------------------------
// ObjectPool: deduplicated constants referenced by index from bytecode
// ---------------------------------------------------------------------------

// EntryKind says how the runtime should treat a pool entry.
type EntryKind uint8

const (
	EntryTagged    EntryKind = iota // object reference, visited by the GC
	EntryImmediate                  // raw machine word
)

func (k EntryKind) String() string {
	if k == EntryImmediate {
		return "immediate"
	}
	return "tagged"
}

// PoolEntry is one constant pool slot.
type PoolEntry struct {
	Kind  EntryKind
	Value any
}

func (e PoolEntry) String() string {
	if e.Kind == EntryImmediate {
		return fmt.Sprintf("imm %#x", e.Value)
	}
	return Describe(e.Value)
}

// PoolKeyer lets values that are rebuilt per use site (argument descriptors,
// for example) share one pool slot by structural equality.
type PoolKeyer interface {
	PoolKey() string
}

type poolKey struct {
	kind EntryKind
	key  any
}

type nilKey struct{}
type floatKey uint64
type keyerKey string

// ObjectPool is an append-only table of constants. Equal values are stored
// once; indices are stable for the lifetime of the pool.
type ObjectPool struct {
	entries []PoolEntry
	index   map[poolKey]int
}

// NewObjectPool creates an empty pool.
func NewObjectPool() *ObjectPool {
	return &ObjectPool{index: make(map[poolKey]int)}
}

func keyFor(kind EntryKind, v any) (poolKey, bool) {
	switch x := v.(type) {
	case nil:
		return poolKey{kind, nilKey{}}, true
	case PoolKeyer:
		return poolKey{kind, keyerKey(x.PoolKey())}, true
	case float64:
		// Compare by bits: NaN dedups with itself, -0.0 stays distinct.
		return poolKey{kind, floatKey(math.Float64bits(x))}, true
	}
	if !reflect.TypeOf(v).Comparable() {
		return poolKey{}, false
	}
	return poolKey{kind, v}, true
}

func (p *ObjectPool) add(kind EntryKind, v any) int {
	key, ok := keyFor(kind, v)
	if ok {
		if idx, found := p.index[key]; found {
			return idx
		}
	}
	idx := len(p.entries)
	p.entries = append(p.entries, PoolEntry{Kind: kind, Value: v})
	if ok {
		p.index[key] = idx
	}
	return idx
}

// AddObject returns the index of the tagged constant v, adding it if needed.
func (p *ObjectPool) AddObject(v any) int {
	return p.add(EntryTagged, v)
}

// AddImmediate returns the index of the raw word v, adding it if needed.
func (p *ObjectPool) AddImmediate(v uint64) int {
	return p.add(EntryImmediate, v)
}

// Len returns the number of entries.
func (p *ObjectPool) Len() int {
	return len(p.entries)
}

// At returns entry i.
func (p *ObjectPool) At(i int) PoolEntry {
	return p.entries[i]
}

// Entries returns a copy of all entries in index order.
func (p *ObjectPool) Entries() []PoolEntry {
	out := make([]PoolEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Describe renders a pool value for listings.
func Describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

// PoolOf rebuilds a pool from entries read back from a serialized image.
// Entries keep their indices even when two of them compare equal.
func PoolOf(entries []PoolEntry) *ObjectPool {
	p := NewObjectPool()
	for i, e := range entries {
		p.entries = append(p.entries, e)
		if key, ok := keyFor(e.Kind, e.Value); ok {
			if _, dup := p.index[key]; !dup {
				p.index[key] = i
			}
		}
	}
	return p
}
