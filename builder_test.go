package ngramstore

import (
	"context"
	"errors"
	"testing"

	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
	"github.com/tamirms/ngramstore/rank"
	"golang.org/x/sync/errgroup"
)

func TestBuilderRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 3, 2000)
	b := m.build(t, rng, WithSuffixOffsets(m.numNgrams))

	checkValues(t, m, b.GetFromOffset)
	for order := range m.values {
		if b.Size(order) != 2000 {
			t.Errorf("Size(%d) = %d, want 2000", order, b.Size(order))
		}
	}

	v, err := b.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, m, v.GetFromOffset)
	for order := 1; order < len(m.values); order++ {
		for i, want := range m.suffixes[order] {
			got, err := v.SuffixOffset(int64(i), order)
			if err != nil || got != want {
				t.Fatalf("SuffixOffset(%d, %d) = %d, %v; want %d", i, order, got, err, want)
			}
		}
	}
	if _, err := v.SuffixOffset(0, 0); !errors.Is(err, ngerrors.ErrNoSuffixes) {
		t.Errorf("order 0 suffix: err = %v, want ErrNoSuffixes", err)
	}
}

func TestNumValueBits(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 3, 1000)
	b := m.build(t, rng, WithSuffixOffsets(m.numNgrams))

	vw := b.q.Width()
	want := []int{vw, vw + intbits.NumBitsNeeded(1000), vw + intbits.NumBitsNeeded(1000)}
	for order, w := range want {
		if got := b.NumValueBits(order); got != w {
			t.Errorf("NumValueBits(%d) = %d, want %d", order, got, w)
		}
	}

	plain := m.build(t, rng)
	for order := range m.values {
		if got := plain.NumValueBits(order); got != vw {
			t.Errorf("without suffixes NumValueBits(%d) = %d, want %d", order, got, vw)
		}
	}
}

func TestAddRejects(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 2, 100)
	b := m.build(t, rng)
	pb := m.values[0][0]

	if b.Add(nil, 0, 0, 0, -1, -1, 0, pb, 0, true) {
		t.Error("Add with negative offset stored a value")
	}
	if b.Add(nil, 0, 0, 2, 0, -1, 0, pb, 0, true) {
		t.Error("Add with unknown order stored a value")
	}

	b.ClearStorageForOrder(1)
	if b.Add(nil, 0, 0, 1, 0, -1, 0, pb, 0, true) {
		t.Error("Add to a cleared order stored a value")
	}
	var out rank.ProbBackoff
	if err := b.GetFromOffset(0, 1, &out); !errors.Is(err, ngerrors.ErrNoStorage) {
		t.Errorf("GetFromOffset on cleared order: err = %v", err)
	}
	if err := b.GetFromOffset(100, 0, &out); !errors.Is(err, ngerrors.ErrOutOfRange) {
		t.Errorf("GetFromOffset past size: err = %v", err)
	}
	if err := b.GetFromOffset(0, -1, &out); !errors.Is(err, ngerrors.ErrInvalidOrder) {
		t.Errorf("GetFromOffset order -1: err = %v", err)
	}
}

func TestAddUnobservedValuePanics(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 1, 10)
	b := m.build(t, rng)
	defer func() {
		if recover() == nil {
			t.Fatal("Add of a value absent from the rank tables did not panic")
		}
	}()
	b.Add(nil, 0, 0, 0, 0, -1, 0, rank.ProbBackoff{Prob: 1.5, Backoff: 2.5}, 0, true)
}

// TestAddSuffixTooWide checks that a suffix offset past its field panics
// before any part of the record is written.
func TestAddSuffixTooWide(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 2, 100)
	b := m.build(t, rng, WithSuffixOffsets(m.numNgrams))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Add with a suffix offset wider than its field did not panic")
			}
		}()
		b.Add(nil, 0, 0, 1, 100, -1, 0, m.values[1][0], 1<<20, true)
	}()
	if b.Size(1) != 100 {
		t.Errorf("rejected Add grew order 1 to %d records", b.Size(1))
	}
}

func TestAddOverwrites(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 1, 50)
	b := m.build(t, rng)

	replacement := m.values[0][7]
	b.Add(nil, 0, 0, 0, 3, -1, 0, replacement, 0, false)
	var got rank.ProbBackoff
	if err := b.GetFromOffset(3, 0, &got); err != nil || got != replacement {
		t.Fatalf("GetFromOffset(3) = %+v, %v; want %+v", got, err, replacement)
	}
}

func TestSetSizeAtLeast(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 2, 10)
	b := m.build(t, rng)

	if err := b.SetSizeAtLeast(5, 0); err != nil {
		t.Fatal(err)
	}
	if b.Size(0) != 10 {
		t.Errorf("shrinking SetSizeAtLeast changed size to %d", b.Size(0))
	}
	if err := b.SetSizeAtLeast(500, 0); err != nil {
		t.Fatal(err)
	}
	if b.Size(0) != 500 {
		t.Fatalf("Size = %d, want 500", b.Size(0))
	}

	// padding records hold rank 0, the most frequent value
	var want, got rank.ProbBackoff
	b.q.Expand(0, &want)
	if err := b.GetFromOffset(499, 0, &got); err != nil || got != want {
		t.Errorf("padding record = %+v, %v; want %+v", got, err, want)
	}
	if err := b.SetSizeAtLeast(1, 5); !errors.Is(err, ngerrors.ErrInvalidOrder) {
		t.Errorf("unknown order: err = %v", err)
	}
}

func TestFreezeLifecycle(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 2, 10)
	b := m.build(t, rng)

	if _, err := b.Freeze(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Freeze(); !errors.Is(err, ngerrors.ErrImmutable) {
		t.Errorf("second Freeze: err = %v", err)
	}
	var out rank.ProbBackoff
	if err := b.GetFromOffset(0, 0, &out); !errors.Is(err, ngerrors.ErrImmutable) {
		t.Errorf("GetFromOffset after Freeze: err = %v", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Add after Freeze did not panic")
			}
		}()
		b.Add(nil, 0, 0, 0, 0, -1, 0, m.values[0][0], 0, true)
	}()
}

func TestCreateFreshValues(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 3, 100)
	b := m.build(t, rng, WithSuffixOffsets(m.numNgrams))

	fresh := b.CreateFreshValues()
	for order := range m.values {
		if fresh.NumValueBits(order) != b.NumValueBits(order) {
			t.Errorf("order %d: fresh width %d, want %d", order, fresh.NumValueBits(order), b.NumValueBits(order))
		}
	}
	var out rank.ProbBackoff
	if err := fresh.GetFromOffset(0, 0, &out); !errors.Is(err, ngerrors.ErrOutOfRange) {
		t.Errorf("fresh container is not empty: err = %v", err)
	}
	if !fresh.Add(nil, 0, 0, 1, 0, -1, 0, m.values[1][0], m.suffixes[1][0], true) {
		t.Error("Add to fresh container failed")
	}
	if b.Size(1) != 100 {
		t.Errorf("fresh container shares storage with its source")
	}
}

func TestBuilderOptionsValidation(t *testing.T) {
	c := rank.NewProbBackoffCounter(4)
	_ = c.Observe(rank.ProbBackoff{Prob: -1, Backoff: -0.5}, 1)

	tests := []struct {
		name      string
		numOrders int
		opts      []Option
		want      error
	}{
		{"no_orders", 0, nil, ngerrors.ErrInvalidOrder},
		{"too_many_orders", 256, nil, ngerrors.ErrInvalidOrder},
		{"bad_radix", 2, []Option{WithCompressionRadix(0)}, ngerrors.ErrInvalidRadix},
		{"short_ngram_counts", 3, []Option{WithSuffixOffsets([]int64{10})}, ngerrors.ErrInvalidOrder},
		{"negative_ngram_count", 2, []Option{WithSuffixOffsets([]int64{-1})}, ngerrors.ErrCapacity},
		{"suffix_too_wide", 2, []Option{WithSuffixOffsets([]int64{1 << 62})}, ngerrors.ErrInvalidWidth},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProbBackoffBuilder(c, tc.numOrders, tc.opts...)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDefaultRankOption(t *testing.T) {
	c := rank.NewProbBackoffCounter(4)
	for i := range 5 {
		_ = c.Observe(rank.ProbBackoff{Prob: -float32(i + 1), Backoff: -0.5}, int64(10-i))
	}
	b, err := NewProbBackoffBuilder(c, 1, WithDefaultRank(2))
	if err != nil {
		t.Fatal(err)
	}
	tables := b.q.(*rank.ProbBackoffTables)
	if tables.ProbForRank(2) != 0 {
		t.Errorf("default probability at rank %v, want rank 2", tables.ProbForRank(2))
	}

	b, err = NewProbBackoffBuilder(c, 1, WithDefaultRank(rank.NoDefault))
	if err != nil {
		t.Fatal(err)
	}
	if n := b.q.(*rank.ProbBackoffTables).NumProbs(); n != 5 {
		t.Errorf("NoDefault: %d probabilities, want 5", n)
	}
}

func TestCountBuilder(t *testing.T) {
	rng := newTestRNG(t)
	counts := make([]uint64, 3000)
	c := rank.NewCountCounter(64)
	for i := range counts {
		counts[i] = uint64(rng.IntN(40)+1) << uint(rng.IntN(3)*8)
		if err := c.Observe(counts[i], 1); err != nil {
			t.Fatal(err)
		}
	}
	b, err := NewCountBuilder(c, 1, WithInitialCapacity(16))
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range counts {
		b.Add(nil, 0, 0, 0, int64(i), -1, 0, n, 0, true)
	}
	v, err := b.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range counts {
		var got uint64
		if err := v.GetFromOffset(int64(i), 0, &got); err != nil || got != want {
			t.Fatalf("count %d = %d, %v; want %d", i, got, err, want)
		}
	}
}

// TestConcurrentReads reads a frozen container from several goroutines.
func TestConcurrentReads(t *testing.T) {
	rng := newTestRNG(t)
	m := generateModel(rng, 3, 5000)
	v, err := m.build(t, rng, WithSuffixOffsets(m.numNgrams)).Freeze()
	if err != nil {
		t.Fatal(err)
	}

	g, _ := errgroup.WithContext(context.Background())
	for w := range 8 {
		g.Go(func() error {
			for order, vals := range m.values {
				for i := w; i < len(vals); i += 8 {
					var got rank.ProbBackoff
					if err := v.GetFromOffset(int64(i), order, &got); err != nil {
						return err
					}
					if got != vals[i] {
						return errors.New("concurrent read returned a wrong value")
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkGetFromOffset(b *testing.B) {
	rng := newTestRNG(b)
	m := generateModel(rng, 3, 100000)
	v, err := m.build(b, rng, WithSuffixOffsets(m.numNgrams)).Freeze()
	if err != nil {
		b.Fatal(err)
	}
	offsets := make([]int64, 4096)
	for i := range offsets {
		offsets[i] = rng.Int64N(100000)
	}
	var out rank.ProbBackoff
	b.ResetTimer()
	i := 0
	for b.Loop() {
		_ = v.GetFromOffset(offsets[i&4095], 2, &out)
		i++
	}
}
