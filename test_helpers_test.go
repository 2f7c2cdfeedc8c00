package ngramstore

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"

	"github.com/tamirms/ngramstore/rank"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG generator seeded from the test name, so every
// test is reproducible and independent of execution order.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// testModel is the expected content of a built container.
type testModel struct {
	numNgrams []int64
	values    [][]rank.ProbBackoff // [order][offset]
	suffixes  [][]int64            // [order][offset], order 0 empty
}

// generateModel draws perOrder records for each order from small skewed
// pools of probabilities and backoffs.
func generateModel(rng *rand.Rand, numOrders, perOrder int) *testModel {
	probs := make([]float32, 120)
	for i := range probs {
		probs[i] = -float32(rng.IntN(6000)+1) / 1000
	}
	backoffs := make([]float32, 16)
	for i := range backoffs {
		backoffs[i] = -float32(rng.IntN(900)+1) / 1000
	}

	m := &testModel{
		numNgrams: make([]int64, numOrders),
		values:    make([][]rank.ProbBackoff, numOrders),
		suffixes:  make([][]int64, numOrders),
	}
	for order := range numOrders {
		m.numNgrams[order] = int64(perOrder)
		m.values[order] = make([]rank.ProbBackoff, perOrder)
		for i := range m.values[order] {
			pb := rank.ProbBackoff{
				Prob: probs[min(rng.IntN(len(probs)), rng.IntN(len(probs)))],
			}
			// highest order n-grams carry no backoff
			if order < numOrders-1 {
				pb.Backoff = backoffs[rng.IntN(len(backoffs))]
			}
			m.values[order][i] = pb
		}
		if order > 0 {
			m.suffixes[order] = make([]int64, perOrder)
			for i := range m.suffixes[order] {
				m.suffixes[order][i] = rng.Int64N(int64(perOrder))
			}
		}
	}
	return m
}

func (m *testModel) counter(t testing.TB) *rank.ProbBackoffCounter {
	t.Helper()
	c := rank.NewProbBackoffCounter(256)
	for _, vals := range m.values {
		for _, pb := range vals {
			if err := c.Observe(pb, 1); err != nil {
				t.Fatal(err)
			}
		}
	}
	return c
}

// build adds every record of m to a fresh builder. Records are added in a
// shuffled order so growth is exercised out of sequence.
func (m *testModel) build(t testing.TB, rng *rand.Rand, opts ...Option) *Builder[rank.ProbBackoff] {
	t.Helper()
	b, err := NewProbBackoffBuilder(m.counter(t), len(m.values), opts...)
	if err != nil {
		t.Fatal(err)
	}
	for order, vals := range m.values {
		perm := rng.Perm(len(vals))
		for _, i := range perm {
			var suffix int64
			if order > 0 {
				suffix = m.suffixes[order][i]
			}
			ngram := []int32{int32(i), int32(order)}
			if !b.Add(ngram, 0, len(ngram), order, int64(i), -1, int32(i), vals[i], suffix, true) {
				t.Fatalf("Add(order=%d, offset=%d) returned false", order, i)
			}
		}
	}
	return b
}

// checkValues compares every stored record with m.
func checkValues(t testing.TB, m *testModel, get func(offset int64, order int, out *rank.ProbBackoff) error) {
	t.Helper()
	for order, vals := range m.values {
		for i, want := range vals {
			var got rank.ProbBackoff
			if err := get(int64(i), order, &got); err != nil {
				t.Fatalf("GetFromOffset(%d, %d): %v", i, order, err)
			}
			if got != want {
				t.Fatalf("GetFromOffset(%d, %d) = %+v, want %+v", i, order, got, want)
			}
		}
	}
}
