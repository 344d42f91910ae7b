package bytecode

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ---------------------------------------------------------------------------
// SymbolTable: interned names shared across compilations
// ---------------------------------------------------------------------------

const (
	symbolShardBits = 4
	symbolShards    = 1 << symbolShardBits
)

type symbolShard struct {
	mu     sync.RWMutex
	byName map[string]uint32 // name -> local index
	byID   []string          // local index -> name
}

// SymbolTable interns selector and function names to stable ids. It is the
// one structure shared by concurrent code generators: entries are only ever
// appended, each shard has its own lock, and the shard is chosen by hashing
// the name so that independent names rarely contend.
type SymbolTable struct {
	shards [symbolShards]symbolShard
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{}
	for i := range st.shards {
		st.shards[i].byName = make(map[string]uint32)
	}
	return st
}

func shardOf(name string) uint32 {
	return uint32(xxhash.Sum64String(name) & (symbolShards - 1))
}

// Intern returns the id for name, creating it if needed.
func (st *SymbolTable) Intern(name string) uint32 {
	s := shardOf(name)
	sh := &st.shards[s]

	// Fast path: read-only lookup
	sh.mu.RLock()
	if local, ok := sh.byName[name]; ok {
		sh.mu.RUnlock()
		return local<<symbolShardBits | s
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	// Double-check after acquiring write lock
	if local, ok := sh.byName[name]; ok {
		return local<<symbolShardBits | s
	}
	local := uint32(len(sh.byID))
	sh.byName[name] = local
	sh.byID = append(sh.byID, name)
	return local<<symbolShardBits | s
}

// Lookup returns the id for name without interning it.
func (st *SymbolTable) Lookup(name string) (uint32, bool) {
	s := shardOf(name)
	sh := &st.shards[s]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	local, ok := sh.byName[name]
	if !ok {
		return 0, false
	}
	return local<<symbolShardBits | s, true
}

// Name returns the name for id, or "" if id was never issued.
func (st *SymbolTable) Name(id uint32) string {
	sh := &st.shards[id&(symbolShards-1)]
	local := id >> symbolShardBits
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if int(local) >= len(sh.byID) {
		return ""
	}
	return sh.byID[local]
}

// Len returns the number of interned names.
func (st *SymbolTable) Len() int {
	n := 0
	for i := range st.shards {
		sh := &st.shards[i]
		sh.mu.RLock()
		n += len(sh.byID)
		sh.mu.RUnlock()
	}
	return n
}
