package openaddr

import (
	"cmp"
	"iter"
	"slices"

	ngerrors "github.com/tamirms/ngramstore/errors"
)

// Entry is a key/value pair of a Map.
type Entry struct {
	Key   int64
	Value int64
}

// Map is an open-addressing map from non-negative int64 keys to int64 values.
//
// ToSorted freezes the map into parallel sorted arrays searched by binary
// search. A frozen map rejects every mutation with errors.ErrImmutable.
type Map struct {
	keys          []int64
	values        []int64
	size          int
	maxLoadFactor float64
	frozen        bool
}

// NewMap creates a map sized for expected keys.
func NewMap(expected int, opts ...Option) *Map {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	n := tableSizeFor(expected, cfg.maxLoadFactor)
	return &Map{
		keys:          newKeyTable(n),
		values:        make([]int64, n),
		maxLoadFactor: cfg.maxLoadFactor,
	}
}

// Size returns the number of entries.
func (m *Map) Size() int { return m.size }

// Frozen reports whether ToSorted has been called.
func (m *Map) Frozen() bool { return m.frozen }

// find returns the slot of key and whether it is present.
func (m *Map) find(key int64) (int, bool) {
	if key < 0 {
		return -1, false
	}
	if m.frozen {
		i, ok := slices.BinarySearch(m.keys, key)
		return i, ok
	}
	i := probe(m.keys, key)
	return i, m.keys[i] == key
}

// Put sets key to value.
func (m *Map) Put(key, value int64) error {
	if m.frozen {
		return ngerrors.ErrImmutable
	}
	must(key >= 0, "openaddr: keys must be non-negative")
	i := probe(m.keys, key)
	if m.keys[i] == key {
		m.values[i] = value
		return nil
	}
	if float64(m.size+1)/float64(len(m.keys)) > m.maxLoadFactor {
		m.rehash(2*len(m.keys) + 1)
		i = probe(m.keys, key)
	}
	m.keys[i] = key
	m.values[i] = value
	m.size++
	return nil
}

// Get returns the value of key, or def when absent.
func (m *Map) Get(key, def int64) int64 {
	if i, ok := m.find(key); ok {
		return m.values[i]
	}
	return def
}

// Contains reports whether key is present.
func (m *Map) Contains(key int64) bool {
	_, ok := m.find(key)
	return ok
}

// IncrementCount adds delta to the value of key, inserting delta when the
// key is absent.
func (m *Map) IncrementCount(key, delta int64) error {
	if m.frozen {
		return ngerrors.ErrImmutable
	}
	if i, ok := m.find(key); ok {
		m.values[i] += delta
		return nil
	}
	return m.Put(key, delta)
}

// Remove deletes key, reporting whether it was present.
func (m *Map) Remove(key int64) (bool, error) {
	if m.frozen {
		return false, ngerrors.ErrImmutable
	}
	i, ok := m.find(key)
	if !ok {
		return false, nil
	}
	deleteSlot(m.keys, i, func(dst, src int) { m.values[dst] = m.values[src] })
	m.size--
	return true, nil
}

// Clear removes every entry.
func (m *Map) Clear() error {
	if m.frozen {
		return ngerrors.ErrImmutable
	}
	for i := range m.keys {
		m.keys[i] = EmptyKey
		m.values[i] = 0
	}
	m.size = 0
	return nil
}

// All yields every entry. Frozen maps yield in ascending key order.
func (m *Map) All() iter.Seq2[int64, int64] {
	return func(yield func(int64, int64) bool) {
		for i, k := range m.keys {
			if k != EmptyKey && !yield(k, m.values[i]) {
				return
			}
		}
	}
}

// Keys yields every key.
func (m *Map) Keys() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// SortedByValue returns all entries ordered by value, descending or
// ascending. Ties are broken by ascending key.
func (m *Map) SortedByValue(descending bool) []Entry {
	entries := make([]Entry, 0, m.size)
	for k, v := range m.All() {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		c := cmp.Compare(a.Value, b.Value)
		if descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return entries
}

// ToSorted freezes the map into sorted arrays. Lookups become binary
// searches and every later mutation fails with errors.ErrImmutable.
// Calling ToSorted on a frozen map is a no-op.
func (m *Map) ToSorted() {
	if m.frozen {
		return
	}
	entries := make([]Entry, 0, m.size)
	for k, v := range m.All() {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Key, b.Key) })
	m.keys = make([]int64, len(entries))
	m.values = make([]int64, len(entries))
	for i, e := range entries {
		m.keys[i] = e.Key
		m.values[i] = e.Value
	}
	m.frozen = true
}

func (m *Map) rehash(n int) {
	oldKeys, oldValues := m.keys, m.values
	m.keys = newKeyTable(n)
	m.values = make([]int64, n)
	for i, k := range oldKeys {
		if k != EmptyKey {
			j := probe(m.keys, k)
			m.keys[j] = k
			m.values[j] = oldValues[i]
		}
	}
}
