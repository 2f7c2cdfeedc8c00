package openaddr

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ngerrors "github.com/tamirms/ngramstore/errors"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

func TestMapScenario(t *testing.T) {
	m := NewMap(2, WithMaxLoadFactor(0.5))
	for i, k := range []int64{3, 19, 47, 1000003} {
		require.NoError(t, m.Put(k, int64(i+1)))
	}
	require.Equal(t, 4, m.Size())
	assert.Equal(t, int64(3), m.Get(47, -1))

	removed, err := m.Remove(19)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, m.Contains(19))
	assert.Equal(t, 3, m.Size())

	assert.Equal(t, int64(1), m.Get(3, -1))
	assert.Equal(t, int64(4), m.Get(1000003, -1))
	assert.Equal(t, int64(-1), m.Get(19, -1))
}

// TestSetMatchesReference runs random put/remove sequences against a Go map.
func TestSetMatchesReference(t *testing.T) {
	rng := newTestRNG(t)
	s := NewSet(4)
	ref := make(map[int64]struct{})

	for i := 0; i < 50000; i++ {
		k := int64(rng.IntN(2000))
		if rng.IntN(3) == 0 {
			_, had := ref[k]
			delete(ref, k)
			require.Equal(t, had, s.Remove(k), "Remove(%d) at op %d", k, i)
		} else {
			_, had := ref[k]
			ref[k] = struct{}{}
			require.Equal(t, !had, s.Put(k), "Put(%d) at op %d", k, i)
		}
		require.Equal(t, len(ref), s.Size())
	}
	for k := int64(0); k < 2000; k++ {
		_, want := ref[k]
		require.Equal(t, want, s.Contains(k), "Contains(%d)", k)
	}
	n := 0
	for k := range s.All() {
		_, ok := ref[k]
		require.True(t, ok, "All yielded %d", k)
		n++
	}
	require.Equal(t, len(ref), n)
}

// TestMapMatchesReference covers colliding keys, rehashing and backward
// shift deletion on the map.
func TestMapMatchesReference(t *testing.T) {
	rng := newTestRNG(t)
	m := NewMap(0)
	ref := make(map[int64]int64)

	for i := 0; i < 50000; i++ {
		k := int64(rng.IntN(3000))
		switch rng.IntN(4) {
		case 0:
			_, had := ref[k]
			delete(ref, k)
			removed, err := m.Remove(k)
			require.NoError(t, err)
			require.Equal(t, had, removed)
		case 1:
			ref[k]++
			require.NoError(t, m.IncrementCount(k, 1))
		default:
			v := rng.Int64()
			ref[k] = v
			require.NoError(t, m.Put(k, v))
		}
	}
	require.Equal(t, len(ref), m.Size())
	for k, v := range ref {
		require.Equal(t, v, m.Get(k, -1), "Get(%d)", k)
	}
	assert.LessOrEqual(t, float64(m.Size())/float64(len(m.keys)), defaultMaxLoadFactor)
}

func TestSetCopyIsIndependent(t *testing.T) {
	s := NewSet(8)
	for k := int64(0); k < 100; k += 3 {
		s.Put(k)
	}
	c := s.Copy()
	require.Equal(t, s.Size(), c.Size())
	for k := int64(0); k < 100; k++ {
		require.Equal(t, s.Contains(k), c.Contains(k))
	}

	c.Put(1)
	c.Remove(0)
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(0))
	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(0))

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.Contains(3))
	assert.True(t, c.Contains(3))
}

func TestRehashGrowth(t *testing.T) {
	s := NewSet(0)
	start := s.Capacity()
	for k := int64(0); k < 100; k++ {
		s.Put(k)
		require.LessOrEqual(t, float64(s.Size())/float64(s.Capacity()), defaultMaxLoadFactor)
	}
	assert.Greater(t, s.Capacity(), start)
	// every capacity is reached by repeated 2n+1
	c := start
	for c < s.Capacity() {
		c = 2*c + 1
	}
	assert.Equal(t, c, s.Capacity())
}

func TestEmptyKeyRejected(t *testing.T) {
	s := NewSet(4)
	assert.Panics(t, func() { s.Put(EmptyKey) })
	assert.False(t, s.Contains(EmptyKey))
	assert.False(t, s.Remove(EmptyKey))
}

func TestSortedByValue(t *testing.T) {
	m := NewMap(8)
	for k, v := range map[int64]int64{10: 5, 11: 9, 12: 5, 13: 1} {
		require.NoError(t, m.Put(k, v))
	}
	want := []Entry{{11, 9}, {10, 5}, {12, 5}, {13, 1}}
	assert.Equal(t, want, m.SortedByValue(true))
	assert.Equal(t, []Entry{{13, 1}, {10, 5}, {12, 5}, {11, 9}}, m.SortedByValue(false))
}

func TestToSortedFreezes(t *testing.T) {
	rng := newTestRNG(t)
	m := NewMap(16)
	ref := make(map[int64]int64)
	for i := 0; i < 500; i++ {
		k := int64(rng.IntN(100000))
		ref[k] = int64(i)
		require.NoError(t, m.Put(k, int64(i)))
	}
	m.ToSorted()
	require.True(t, m.Frozen())
	require.Equal(t, len(ref), m.Size())
	for k, v := range ref {
		require.Equal(t, v, m.Get(k, -1))
	}
	assert.Equal(t, int64(-7), m.Get(100001, -7))

	prev := int64(-1)
	for k := range m.Keys() {
		require.Greater(t, k, prev)
		prev = k
	}

	assert.ErrorIs(t, m.Put(1, 1), ngerrors.ErrImmutable)
	assert.ErrorIs(t, m.IncrementCount(1, 1), ngerrors.ErrImmutable)
	_, err := m.Remove(1)
	assert.ErrorIs(t, err, ngerrors.ErrImmutable)
	assert.ErrorIs(t, m.Clear(), ngerrors.ErrImmutable)
}

func BenchmarkMapIncrement(b *testing.B) {
	m := NewMap(1 << 16)
	for i := 0; i < b.N; i++ {
		_ = m.IncrementCount(int64(i&(1<<16-1)), 1)
	}
}
