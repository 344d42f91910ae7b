package codeimage

import (
	"bytes"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Store: content-addressed images
// ---------------------------------------------------------------------------

// Store indexes images by content hash and remembers the latest image
// stored under each function name. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	images map[[32]byte]*Image
	byName map[string][32]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		images: make(map[[32]byte]*Image),
		byName: make(map[string][32]byte),
	}
}

// Put adds img and returns its hash. Storing an identical image again is a
// no-op apart from updating the name index.
func (s *Store) Put(img *Image) ([32]byte, error) {
	h, err := Hash(img)
	if err != nil {
		return [32]byte{}, err
	}
	s.mu.Lock()
	if _, ok := s.images[h]; !ok {
		s.images[h] = img
	}
	s.byName[img.Name] = h
	s.mu.Unlock()
	return h, nil
}

// Get returns the image with hash h, or nil.
func (s *Store) Get(h [32]byte) *Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.images[h]
}

// Has reports whether an image with hash h is present.
func (s *Store) Has(h [32]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[h]
	return ok
}

// Lookup returns the latest image stored under name.
func (s *Store) Lookup(name string) (*Image, [32]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byName[name]
	if !ok {
		return nil, [32]byte{}, false
	}
	return s.images[h], h, true
}

// Hashes returns all stored hashes in ascending byte order.
func (s *Store) Hashes() [][32]byte {
	s.mu.RLock()
	out := make([][32]byte, 0, len(s.images))
	for h := range s.images {
		out = append(out, h)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Names returns the function names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.byName))
	for n := range s.byName {
		out = append(out, n)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of distinct images.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
