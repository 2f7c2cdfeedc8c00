package rank

import (
	"encoding/binary"
	"fmt"
	"math"

	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
	"github.com/tamirms/ngramstore/openaddr"
)

// CountCounter counts how many n-grams carry each raw count value.
type CountCounter struct {
	counts *openaddr.Map
}

// NewCountCounter creates a counter sized for expected distinct counts.
func NewCountCounter(expected int) *CountCounter {
	return &CountCounter{counts: openaddr.NewMap(expected)}
}

// Observe records n n-grams carrying count.
func (c *CountCounter) Observe(count uint64, n int64) error {
	if count > math.MaxInt64 {
		return fmt.Errorf("%w: count %d", ngerrors.ErrCapacity, count)
	}
	return c.counts.IncrementCount(int64(count), n)
}

// CountTables quantizes raw n-gram counts through a single rank table.
type CountTables struct {
	counts *Indexer
	width  int
}

var _ Quantizer[uint64] = (*CountTables)(nil)

// NewCountTables ranks the counts recorded by c. When def was not observed
// it is reserved at defaultRank.
func NewCountTables(c *CountCounter, def uint64, defaultRank int) *CountTables {
	t := newCountTables(NewIndexer(c.counts, int64(def), defaultRank))
	tracer().Infof("count rank table: distinct=%d width=%d", t.counts.Len(), t.width)
	return t
}

func newCountTables(ix *Indexer) *CountTables {
	return &CountTables{counts: ix, width: intbits.NumBitsNeeded(uint64(ix.Len()))}
}

// Width returns the number of bits of a code.
func (t *CountTables) Width() int { return t.width }

// Kind returns KindCount.
func (t *CountTables) Kind() Kind { return KindCount }

// Len returns the number of distinct counts.
func (t *CountTables) Len() int { return t.counts.Len() }

// Lookup returns the rank of count.
func (t *CountTables) Lookup(count uint64) (uint64, bool) {
	if count > math.MaxInt64 {
		return 0, false
	}
	r, ok := t.counts.Rank(int64(count))
	return uint64(r), ok
}

// Code returns the rank of count and panics if it was never observed.
func (t *CountTables) Code(count uint64) uint64 {
	r, ok := t.Lookup(count)
	if !ok {
		panic(fmt.Sprintf("rank: count %d was not observed when building rank tables", count))
	}
	return r
}

// Valid reports whether code is a rank of the table.
func (t *CountTables) Valid(code uint64) bool { return code < uint64(t.counts.Len()) }

// Expand writes the count for rank code into out.
func (t *CountTables) Expand(code uint64, out *uint64) {
	*out = uint64(t.counts.Value(int(code)))
}

// MarshalBinary encodes the table as [n u32][count u64...].
func (t *CountTables) MarshalBinary() ([]byte, error) {
	vals := t.counts.Values()
	buf := make([]byte, 4+8*len(vals))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vals)))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[4+8*i:], uint64(v))
	}
	return buf, nil
}

// UnmarshalCountTables decodes a table written by MarshalBinary.
func UnmarshalCountTables(data []byte) (*CountTables, error) {
	if len(data) < 4 {
		return nil, ngerrors.ErrTruncatedFile
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	if uint64(len(data)-4) < 8*uint64(n) {
		return nil, ngerrors.ErrTruncatedFile
	}
	vals := make([]int64, n)
	for i := range vals {
		vals[i] = int64(binary.LittleEndian.Uint64(data[4+8*i:]))
	}
	ix, err := IndexerFromValues(vals)
	if err != nil {
		return nil, err
	}
	return newCountTables(ix), nil
}
