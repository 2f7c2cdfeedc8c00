package rank

import (
	"encoding/binary"
	"fmt"
	"math"

	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
	"github.com/tamirms/ngramstore/openaddr"
)

// ProbBackoff is a log-probability and backoff weight pair.
type ProbBackoff struct {
	Prob    float32
	Backoff float32
}

// DefaultProbBackoff is the model-wide fallback pair: probability and
// backoff of 0 (log10 of 1).
var DefaultProbBackoff = ProbBackoff{}

// Encode packs the float bits into one word, probability in the high half.
func (p ProbBackoff) Encode() uint64 {
	return uint64(math.Float32bits(p.Prob))<<32 | uint64(math.Float32bits(p.Backoff))
}

// DecodeProbBackoff is the inverse of Encode.
func DecodeProbBackoff(v uint64) ProbBackoff {
	return ProbBackoff{
		Prob:    math.Float32frombits(uint32(v >> 32)),
		Backoff: math.Float32frombits(uint32(v)),
	}
}

// floatKey maps a float32 to a non-negative hash key (its raw bits).
func floatKey(f float32) int64 {
	return int64(math.Float32bits(f))
}

// ProbBackoffCounter counts probability and backoff values independently.
type ProbBackoffCounter struct {
	probs    *openaddr.Map
	backoffs *openaddr.Map
}

// NewProbBackoffCounter creates a counter sized for expected distinct values.
func NewProbBackoffCounter(expected int) *ProbBackoffCounter {
	return &ProbBackoffCounter{
		probs:    openaddr.NewMap(expected),
		backoffs: openaddr.NewMap(expected),
	}
}

// Observe records n occurrences of pb.
func (c *ProbBackoffCounter) Observe(pb ProbBackoff, n int64) error {
	if err := c.probs.IncrementCount(floatKey(pb.Prob), n); err != nil {
		return err
	}
	return c.backoffs.IncrementCount(floatKey(pb.Backoff), n)
}

// ObserveEncoded records n occurrences of an Encode()d pair.
func (c *ProbBackoffCounter) ObserveEncoded(v uint64, n int64) error {
	return c.Observe(DecodeProbBackoff(v), n)
}

// ProbBackoffTables quantizes ProbBackoff pairs. The probability and the
// backoff are ranked independently and combined as
// probRank<<BackoffWidth() | backoffRank.
type ProbBackoffTables struct {
	probs        *Indexer
	backoffs     *Indexer
	backoffWidth int
	valueWidth   int
}

var _ Quantizer[ProbBackoff] = (*ProbBackoffTables)(nil)

// NewProbBackoffTables ranks the values counted by c. When def is not among
// the observed values its components are reserved at defaultRank.
func NewProbBackoffTables(c *ProbBackoffCounter, def ProbBackoff, defaultRank int) *ProbBackoffTables {
	t := newProbBackoffTables(
		NewIndexer(c.probs, floatKey(def.Prob), defaultRank),
		NewIndexer(c.backoffs, floatKey(def.Backoff), defaultRank),
	)
	tracer().Infof("prob/backoff rank tables: probs=%d backoffs=%d valueWidth=%d",
		t.probs.Len(), t.backoffs.Len(), t.valueWidth)
	return t
}

func newProbBackoffTables(probs, backoffs *Indexer) *ProbBackoffTables {
	bw := intbits.NumBitsNeeded(uint64(backoffs.Len()))
	return &ProbBackoffTables{
		probs:        probs,
		backoffs:     backoffs,
		backoffWidth: bw,
		valueWidth:   intbits.NumBitsNeeded(uint64(probs.Len())) + bw,
	}
}

// BackoffWidth returns the number of bits of the backoff rank.
func (t *ProbBackoffTables) BackoffWidth() int { return t.backoffWidth }

// Width returns the number of bits of a combined code.
func (t *ProbBackoffTables) Width() int { return t.valueWidth }

// Kind returns KindProbBackoff.
func (t *ProbBackoffTables) Kind() Kind { return KindProbBackoff }

// NumProbs returns the number of distinct probabilities.
func (t *ProbBackoffTables) NumProbs() int { return t.probs.Len() }

// NumBackoffs returns the number of distinct backoff weights.
func (t *ProbBackoffTables) NumBackoffs() int { return t.backoffs.Len() }

// Combine packs a probability rank and a backoff rank into one code.
func (t *ProbBackoffTables) Combine(probRank, backoffRank int) uint64 {
	return uint64(probRank)<<t.backoffWidth | uint64(backoffRank)
}

// Split is the inverse of Combine.
func (t *ProbBackoffTables) Split(code uint64) (probRank, backoffRank int) {
	return int(code >> t.backoffWidth), int(code & intbits.Mask(t.backoffWidth))
}

// Lookup returns the code of pb, or false if either component was never
// observed.
func (t *ProbBackoffTables) Lookup(pb ProbBackoff) (uint64, bool) {
	p, ok := t.probs.Rank(floatKey(pb.Prob))
	if !ok {
		return 0, false
	}
	b, ok := t.backoffs.Rank(floatKey(pb.Backoff))
	if !ok {
		return 0, false
	}
	return t.Combine(p, b), true
}

// Code returns the code of pb and panics if pb was never observed.
func (t *ProbBackoffTables) Code(pb ProbBackoff) uint64 {
	code, ok := t.Lookup(pb)
	if !ok {
		panic(fmt.Sprintf("rank: value %+v was not observed when building rank tables", pb))
	}
	return code
}

// Valid reports whether both ranks of code lie inside their tables.
func (t *ProbBackoffTables) Valid(code uint64) bool {
	return code>>t.backoffWidth < uint64(t.probs.Len()) &&
		code&intbits.Mask(t.backoffWidth) < uint64(t.backoffs.Len())
}

// Expand writes the pair for code into out.
func (t *ProbBackoffTables) Expand(code uint64, out *ProbBackoff) {
	p, b := t.Split(code)
	out.Prob = math.Float32frombits(uint32(t.probs.Value(p)))
	out.Backoff = math.Float32frombits(uint32(t.backoffs.Value(b)))
}

// ProbForRank returns the probability at rank r.
func (t *ProbBackoffTables) ProbForRank(r int) float32 {
	return math.Float32frombits(uint32(t.probs.Value(r)))
}

// BackoffForRank returns the backoff weight at rank r.
func (t *ProbBackoffTables) BackoffForRank(r int) float32 {
	return math.Float32frombits(uint32(t.backoffs.Value(r)))
}

// MarshalBinary encodes the tables as
// [numProbs u32][numBackoffs u32][prob bits u32...][backoff bits u32...].
func (t *ProbBackoffTables) MarshalBinary() ([]byte, error) {
	np, nb := t.probs.Len(), t.backoffs.Len()
	buf := make([]byte, 8+4*(np+nb))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(np))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(nb))
	off := 8
	for _, v := range t.probs.Values() {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	for _, v := range t.backoffs.Values() {
		binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		off += 4
	}
	return buf, nil
}

// UnmarshalProbBackoffTables decodes tables written by MarshalBinary.
func UnmarshalProbBackoffTables(data []byte) (*ProbBackoffTables, error) {
	if len(data) < 8 {
		return nil, ngerrors.ErrTruncatedFile
	}
	np := int(binary.LittleEndian.Uint32(data[0:4]))
	nb := int(binary.LittleEndian.Uint32(data[4:8]))
	if uint64(len(data)-8) < 4*(uint64(np)+uint64(nb)) {
		return nil, ngerrors.ErrTruncatedFile
	}
	read := func(off, n int) []int64 {
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(binary.LittleEndian.Uint32(data[off+4*i:]))
		}
		return vals
	}
	probs, err := IndexerFromValues(read(8, np))
	if err != nil {
		return nil, err
	}
	backoffs, err := IndexerFromValues(read(8+4*np, nb))
	if err != nil {
		return nil, err
	}
	return newProbBackoffTables(probs, backoffs), nil
}
