package rank

import (
	"fmt"

	ngerrors "github.com/tamirms/ngramstore/errors"
	"github.com/tamirms/ngramstore/openaddr"
)

// NoDefault disables reserving a rank for a default value.
const NoDefault = -1

// Indexer is a bijection between distinct values and dense ranks in
// [0, Len()). It is immutable once built.
type Indexer struct {
	values []int64        // rank -> value
	ranks  *openaddr.Map // value -> rank, frozen
}

// NewIndexer assigns ranks to the keys of counts in descending order of
// count, ties broken by ascending value, so the most frequent value gets
// rank 0. If defaultRank is not NoDefault and defaultValue was never
// observed, defaultValue is inserted at position min(defaultRank, distinct).
func NewIndexer(counts *openaddr.Map, defaultValue int64, defaultRank int) *Indexer {
	sorted := counts.SortedByValue(true)
	values := make([]int64, 0, len(sorted)+1)
	for _, e := range sorted {
		values = append(values, e.Key)
	}
	if defaultRank != NoDefault && !counts.Contains(defaultValue) {
		pos := min(defaultRank, len(values))
		values = append(values, 0)
		copy(values[pos+1:], values[pos:])
		values[pos] = defaultValue
	}
	ix, err := IndexerFromValues(values)
	assert(err == nil, "rank: observed values are not distinct")
	return ix
}

// IndexerFromValues rebuilds an indexer from its rank-ordered values.
func IndexerFromValues(values []int64) (*Indexer, error) {
	ranks := openaddr.NewMap(len(values))
	for r, v := range values {
		if v < 0 || ranks.Contains(v) {
			return nil, fmt.Errorf("%w: value %d at rank %d", ngerrors.ErrCorruptedFile, v, r)
		}
		if err := ranks.Put(v, int64(r)); err != nil {
			return nil, err
		}
	}
	ranks.ToSorted()
	return &Indexer{values: values, ranks: ranks}, nil
}

// Len returns the number of distinct values.
func (ix *Indexer) Len() int { return len(ix.values) }

// Rank returns the rank of v.
func (ix *Indexer) Rank(v int64) (int, bool) {
	r := ix.ranks.Get(v, -1)
	return int(r), r >= 0
}

// Value returns the value at rank r.
func (ix *Indexer) Value(r int) int64 { return ix.values[r] }

// Values returns the rank-ordered values. The slice must not be modified.
func (ix *Indexer) Values() []int64 { return ix.values }
