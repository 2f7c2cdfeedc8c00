package openaddr

import "iter"

// Set is an open-addressing set of non-negative int64 keys.
type Set struct {
	keys          []int64
	size          int
	maxLoadFactor float64
}

// NewSet creates a set sized for expected keys.
func NewSet(expected int, opts ...Option) *Set {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Set{
		keys:          newKeyTable(tableSizeFor(expected, cfg.maxLoadFactor)),
		maxLoadFactor: cfg.maxLoadFactor,
	}
}

// Size returns the number of keys.
func (s *Set) Size() int { return s.size }

// Capacity returns the number of slots.
func (s *Set) Capacity() int { return len(s.keys) }

// Put adds key, reporting false if it was already present.
func (s *Set) Put(key int64) bool {
	must(key >= 0, "openaddr: keys must be non-negative")
	i := probe(s.keys, key)
	if s.keys[i] == key {
		return false
	}
	if float64(s.size+1)/float64(len(s.keys)) > s.maxLoadFactor {
		s.rehash(2*len(s.keys) + 1)
		i = probe(s.keys, key)
	}
	s.keys[i] = key
	s.size++
	return true
}

// Contains reports whether key is present.
func (s *Set) Contains(key int64) bool {
	if key < 0 {
		return false
	}
	return s.keys[probe(s.keys, key)] == key
}

// Remove deletes key, reporting whether it was present.
func (s *Set) Remove(key int64) bool {
	if key < 0 {
		return false
	}
	i := probe(s.keys, key)
	if s.keys[i] != key {
		return false
	}
	deleteSlot(s.keys, i, nil)
	s.size--
	return true
}

// Clear removes every key, keeping the current capacity.
func (s *Set) Clear() {
	for i := range s.keys {
		s.keys[i] = EmptyKey
	}
	s.size = 0
}

// Copy returns an independent set with the same keys.
func (s *Set) Copy() *Set {
	return &Set{
		keys:          append([]int64(nil), s.keys...),
		size:          s.size,
		maxLoadFactor: s.maxLoadFactor,
	}
}

// All yields every key in table order.
func (s *Set) All() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for _, k := range s.keys {
			if k != EmptyKey && !yield(k) {
				return
			}
		}
	}
}

func (s *Set) rehash(n int) {
	old := s.keys
	s.keys = newKeyTable(n)
	for _, k := range old {
		if k != EmptyKey {
			s.keys[probe(s.keys, k)] = k
		}
	}
}
