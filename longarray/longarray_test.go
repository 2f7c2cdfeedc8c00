package longarray

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"testing"

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

type variant struct {
	name     string
	maxValue uint64
	packed   bool
}

var variants = []variant{
	{"byte", math.MaxUint8, false},
	{"int", 1 << 20, false},
	{"long", math.MaxUint64, false},
	{"packed_5", 31, true},
	{"packed_64", math.MaxUint64, true},
}

func newVariant(t *testing.T, v variant, maxCount int64) LongArray {
	t.Helper()
	var (
		a   LongArray
		err error
	)
	if v.packed {
		a, err = NewPacked(v.maxValue, maxCount)
	} else {
		a, err = New(v.maxValue, maxCount)
	}
	if err != nil {
		t.Fatalf("%s: %v", v.name, err)
	}
	return a
}

func TestFactorySelectsNarrowestBacking(t *testing.T) {
	tests := []struct {
		maxValue uint64
		want     uint64
	}{
		{0, math.MaxUint8},
		{255, math.MaxUint8},
		{256, math.MaxUint32},
		{math.MaxUint32, math.MaxUint32},
		{math.MaxUint32 + 1, math.MaxUint64},
	}
	for _, tc := range tests {
		a, err := New(tc.maxValue, 10)
		if err != nil {
			t.Fatal(err)
		}
		if a.MaxValue() != tc.want {
			t.Errorf("New(%d).MaxValue() = %d, want %d", tc.maxValue, a.MaxValue(), tc.want)
		}
	}

	p, err := NewPacked(1000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxValue() != 1023 {
		t.Errorf("NewPacked(1000).MaxValue() = %d, want 1023", p.MaxValue())
	}
}

func TestCapacityErrorsAtConstruction(t *testing.T) {
	if _, err := New(10, maxNarrowLength+1); !errors.Is(err, ngerrors.ErrCapacity) {
		t.Errorf("narrow overflow err = %v, want ErrCapacity", err)
	}
	if _, err := New(math.MaxUint64, maxWideLength+1); !errors.Is(err, ngerrors.ErrCapacity) {
		t.Errorf("wide overflow err = %v, want ErrCapacity", err)
	}
	if _, err := NewPacked(10, -1); !errors.Is(err, ngerrors.ErrCapacity) {
		t.Errorf("negative count err = %v, want ErrCapacity", err)
	}
}

func TestAppendGetAllVariants(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			rng := newTestRNG(t)
			a := newVariant(t, v, 5000)
			want := make([]uint64, 5000)
			for i := range want {
				want[i] = rng.Uint64() & a.MaxValue()
				if err := a.Add(want[i]); err != nil {
					t.Fatalf("Add: %v", err)
				}
			}
			if a.Size() != int64(len(want)) {
				t.Fatalf("Size = %d, want %d", a.Size(), len(want))
			}
			if err := a.Trim(); err != nil {
				t.Fatal(err)
			}
			for i, w := range want {
				got, err := a.Get(int64(i))
				if err != nil || got != w {
					t.Fatalf("Get(%d) = %d, %v; want %d", i, got, err, w)
				}
			}
			if _, err := a.Get(int64(len(want))); !errors.Is(err, ngerrors.ErrOutOfRange) {
				t.Errorf("Get past end err = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestSetGrowFillIncrement(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			a := newVariant(t, v, 100)
			if err := a.Set(0, 1); !errors.Is(err, ngerrors.ErrOutOfRange) {
				t.Errorf("Set on empty err = %v, want ErrOutOfRange", err)
			}
			if err := a.SetAndGrowIfNeeded(9, 3); err != nil {
				t.Fatal(err)
			}
			if a.Size() != 10 {
				t.Fatalf("Size = %d, want 10", a.Size())
			}
			if got, _ := a.Get(4); got != 0 {
				t.Errorf("gap Get(4) = %d, want 0", got)
			}
			if err := a.Fill(2, 20); err != nil {
				t.Fatal(err)
			}
			if a.Size() != 20 {
				t.Fatalf("Size after Fill = %d, want 20", a.Size())
			}
			if got, _ := a.Get(9); got != 2 {
				t.Errorf("Get(9) after Fill = %d, want 2", got)
			}
			if err := a.IncrementCount(5, 7); err != nil {
				t.Fatal(err)
			}
			if got, _ := a.Get(5); got != 9 {
				t.Errorf("Get(5) after increment = %d, want 9", got)
			}
			if err := a.IncrementCount(30, 4); err != nil {
				t.Fatal(err)
			}
			if a.Size() != 31 {
				t.Errorf("Size after increment past end = %d, want 31", a.Size())
			}
			if got, _ := a.Get(30); got != 4 {
				t.Errorf("Get(30) = %d, want 4", got)
			}
			if err := a.EnsureCapacity(1000); err != nil {
				t.Fatal(err)
			}
			if a.Size() != 31 {
				t.Errorf("EnsureCapacity changed Size to %d", a.Size())
			}
		})
	}
}

func TestNarrowValueOverflow(t *testing.T) {
	a, _ := New(200, 10)
	if err := a.Add(256); !errors.Is(err, ngerrors.ErrCapacity) {
		t.Errorf("Add(256) on byte backing err = %v, want ErrCapacity", err)
	}
	_ = a.Add(250)
	if err := a.IncrementCount(0, 10); !errors.Is(err, ngerrors.ErrCapacity) {
		t.Errorf("overflowing increment err = %v, want ErrCapacity", err)
	}
}

// TestValueOverflowAllVariants checks that every backing reports values
// wider than its elements as ErrCapacity and keeps its size.
func TestValueOverflowAllVariants(t *testing.T) {
	for _, v := range variants {
		if v.maxValue == math.MaxUint64 {
			continue
		}
		t.Run(v.name, func(t *testing.T) {
			a := newVariant(t, v, 10)
			tooBig := a.MaxValue() + 1
			_ = a.Fill(1, 3)

			if err := a.Add(tooBig); !errors.Is(err, ngerrors.ErrCapacity) {
				t.Errorf("Add err = %v, want ErrCapacity", err)
			}
			if err := a.Set(0, tooBig); !errors.Is(err, ngerrors.ErrCapacity) {
				t.Errorf("Set err = %v, want ErrCapacity", err)
			}
			if err := a.SetAndGrowIfNeeded(5, tooBig); !errors.Is(err, ngerrors.ErrCapacity) {
				t.Errorf("SetAndGrowIfNeeded err = %v, want ErrCapacity", err)
			}
			if err := a.IncrementCount(5, tooBig); !errors.Is(err, ngerrors.ErrCapacity) {
				t.Errorf("IncrementCount past size err = %v, want ErrCapacity", err)
			}
			if err := a.IncrementCount(0, a.MaxValue()); !errors.Is(err, ngerrors.ErrCapacity) {
				t.Errorf("IncrementCount in range err = %v, want ErrCapacity", err)
			}
			if a.Size() != 3 {
				t.Errorf("Size = %d after rejected writes, want 3", a.Size())
			}
			if got, _ := a.Get(0); got != 1 {
				t.Errorf("Get(0) = %d, want 1", got)
			}
		})
	}
}

func TestTrimToSizePastSize(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			a := newVariant(t, v, 100)
			_ = a.EnsureCapacity(50)
			_ = a.Fill(7, 5)
			if err := a.TrimToSize(6); !errors.Is(err, ngerrors.ErrOutOfRange) {
				t.Errorf("TrimToSize(6) with size 5 err = %v, want ErrOutOfRange", err)
			}
			if a.Size() != 5 {
				t.Errorf("Size = %d, want 5", a.Size())
			}
		})
	}
}

func TestLinearSearchAllVariants(t *testing.T) {
	const empty = 0
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			a := newVariant(t, v, 8)
			_ = a.Fill(empty, 8)
			_ = a.Set(6, 5)
			_ = a.Set(7, 9)
			_ = a.Set(0, 3)

			if got := a.LinearSearch(3, 0, 8, 6, empty, false); got != 0 {
				t.Errorf("wrapping search = %d, want 0", got)
			}
			if got := a.LinearSearch(4, 0, 8, 6, empty, true); got != 1 {
				t.Errorf("first empty = %d, want 1", got)
			}
			if got := a.LinearSearch(4, 0, 8, 6, empty, false); got != -1 {
				t.Errorf("miss = %d, want -1", got)
			}
		})
	}
}

func TestTrimToSize(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			a := newVariant(t, v, 100)
			for i := uint64(0); i < 20; i++ {
				_ = a.Add(i)
			}
			if err := a.TrimToSize(12); err != nil {
				t.Fatal(err)
			}
			if a.Size() != 12 {
				t.Fatalf("Size = %d, want 12", a.Size())
			}
			if got, _ := a.Get(11); got != 11 {
				t.Errorf("Get(11) = %d, want 11", got)
			}
		})
	}
}
