package ngramstore

import (
	"fmt"

	"github.com/tamirms/ngramstore/bitarray"
	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
	"github.com/tamirms/ngramstore/rank"
)

// ValueContainer is the contract between an n-gram index and the store of
// its per-n-gram values. Orders are 0-based: order 0 holds unigrams.
type ValueContainer[V any] interface {
	// Add stores val for the n-gram ngram[startPos:endPos] of the given
	// order at offset. suffixOffset is the offset of the n-gram's suffix in
	// order-1, ignored unless suffix offsets are stored. Add returns false
	// if nothing was stored.
	Add(ngram []int32, startPos, endPos, order int, offset, contextOffset int64,
		word int32, val V, suffixOffset int64, isNew bool) bool
	// GetFromOffset writes the value stored at offset into out.
	GetFromOffset(offset int64, order int, out *V) error
	// SetSizeAtLeast makes offsets below size addressable in order.
	SetSizeAtLeast(size int64, order int) error
	// Trim releases spare capacity in every order.
	Trim() error
	// CreateFreshValues returns an empty container with the same
	// configuration.
	CreateFreshValues() ValueContainer[V]
	// ClearStorageForOrder releases the storage of order.
	ClearStorageForOrder(order int)
	// NumValueBits returns the record width of order in bits.
	NumValueBits(order int) int
}

// Builder is the mutable ValueContainer used while a model is loaded. It
// stores the quantizer code of each value in a bit-packed record per
// n-gram, followed by the suffix offset when those are configured.
//
// Builder is not safe for concurrent use. Freeze hands its storage to an
// immutable Values; the builder must not be used afterwards.
type Builder[V any] struct {
	q            rank.Quantizer[V]
	cfg          *config
	numOrders    int
	valueWidth   int
	suffixWidths []int
	arrays       []*bitarray.Array
	frozen       bool
}

var _ ValueContainer[rank.ProbBackoff] = (*Builder[rank.ProbBackoff])(nil)

// NewBuilder creates a builder for numOrders orders whose values are
// quantized by q.
func NewBuilder[V any](q rank.Quantizer[V], numOrders int, opts ...Option) (*Builder[V], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newBuilder(q, numOrders, cfg)
}

// NewProbBackoffBuilder ranks the pairs counted by c and returns a builder
// for them. rank.DefaultProbBackoff is reserved at the configured default
// rank when it was never observed.
func NewProbBackoffBuilder(c *rank.ProbBackoffCounter, numOrders int, opts ...Option) (*Builder[rank.ProbBackoff], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newBuilder(rank.NewProbBackoffTables(c, rank.DefaultProbBackoff, cfg.defaultRank), numOrders, cfg)
}

// NewCountBuilder ranks the counts recorded by c and returns a builder for
// them. A count of zero is reserved at the configured default rank.
func NewCountBuilder(c *rank.CountCounter, numOrders int, opts ...Option) (*Builder[uint64], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newBuilder(rank.NewCountTables(c, 0, cfg.defaultRank), numOrders, cfg)
}

func newBuilder[V any](q rank.Quantizer[V], numOrders int, cfg *config) (*Builder[V], error) {
	if numOrders < 1 || numOrders > maxOrders {
		return nil, fmt.Errorf("%w: %d orders", ngerrors.ErrInvalidOrder, numOrders)
	}
	if cfg.radix < 1 || cfg.radix > 64 {
		return nil, fmt.Errorf("%w: %d", ngerrors.ErrInvalidRadix, cfg.radix)
	}
	suffixWidths, err := suffixWidthsFor(cfg.numNgramsPerOrder, numOrders)
	if err != nil {
		return nil, err
	}
	b := &Builder[V]{
		q:            q,
		cfg:          cfg,
		numOrders:    numOrders,
		valueWidth:   q.Width(),
		suffixWidths: suffixWidths,
		arrays:       make([]*bitarray.Array, numOrders),
	}
	for order := range b.arrays {
		arr, err := bitarray.NewWithFullWidth(cfg.initialCapacity, b.valueWidth, b.valueWidth+suffixWidths[order])
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", order, err)
		}
		b.arrays[order] = arr
	}
	tracer().Infof("value builder: kind=%s orders=%d valueWidth=%d suffixes=%t",
		q.Kind(), numOrders, b.valueWidth, cfg.numNgramsPerOrder != nil)
	return b, nil
}

// suffixWidthsFor sizes the suffix field of each order. Order 0 has no
// suffix; order o stores offsets into order o-1.
func suffixWidthsFor(numNgramsPerOrder []int64, numOrders int) ([]int, error) {
	widths := make([]int, numOrders)
	if numNgramsPerOrder == nil {
		return widths, nil
	}
	if len(numNgramsPerOrder) < numOrders-1 {
		return nil, fmt.Errorf("%w: suffix offsets need %d n-gram counts, got %d",
			ngerrors.ErrInvalidOrder, numOrders-1, len(numNgramsPerOrder))
	}
	for order := 1; order < numOrders; order++ {
		n := numNgramsPerOrder[order-1]
		if n < 0 {
			return nil, fmt.Errorf("%w: negative n-gram count %d for order %d", ngerrors.ErrCapacity, n, order-1)
		}
		widths[order] = intbits.NumBitsNeeded(uint64(n))
	}
	return widths, nil
}

func (b *Builder[V]) checkOrder(order int) error {
	if b.frozen {
		return ngerrors.ErrImmutable
	}
	if order < 0 || order >= b.numOrders {
		return fmt.Errorf("%w: %d not in [0, %d)", ngerrors.ErrInvalidOrder, order, b.numOrders)
	}
	if b.arrays[order] == nil {
		return fmt.Errorf("%w: %d", ngerrors.ErrNoStorage, order)
	}
	return nil
}

// Add stores the code of val at offset. The n-gram key, context offset and
// word identify the record for containers that need them; a rank-quantized
// builder only needs the offset. A repeated offset is overwritten whatever
// isNew says. Add returns false for a negative offset, an unknown order or
// a cleared order, and panics if val was never observed when the rank
// tables were built.
func (b *Builder[V]) Add(ngram []int32, startPos, endPos, order int, offset, contextOffset int64,
	word int32, val V, suffixOffset int64, isNew bool) bool {
	assert(!b.frozen, "ngramstore: Add on a frozen builder")
	if offset < 0 || b.checkOrder(order) != nil {
		return false
	}
	w := b.suffixWidths[order]
	if w > 0 {
		assert(suffixOffset >= 0 && uint64(suffixOffset) <= intbits.Mask(w),
			"ngramstore: suffix offset does not fit the suffix field")
	}
	arr := b.arrays[order]
	if err := arr.SetFieldAndGrowIfNeeded(offset, b.q.Code(val), 0, b.valueWidth); err != nil {
		tracer().Errorf("add order %d offset %d: %v", order, offset, err)
		return false
	}
	if w > 0 {
		if err := arr.SetField(offset, uint64(suffixOffset), b.valueWidth, w); err != nil {
			tracer().Errorf("add order %d offset %d suffix: %v", order, offset, err)
			return false
		}
	}
	return true
}

// GetFromOffset writes the value stored at offset into out.
func (b *Builder[V]) GetFromOffset(offset int64, order int, out *V) error {
	if err := b.checkOrder(order); err != nil {
		return err
	}
	code, err := b.arrays[order].Get(offset)
	if err != nil {
		return err
	}
	if !b.q.Valid(code) {
		return fmt.Errorf("%w: code %d past the rank tables", ngerrors.ErrOutOfRange, code)
	}
	b.q.Expand(code, out)
	return nil
}

// SetSizeAtLeast grows order so that offsets below size are addressable.
// New records hold code 0, the most frequent value.
func (b *Builder[V]) SetSizeAtLeast(size int64, order int) error {
	if err := b.checkOrder(order); err != nil {
		return err
	}
	arr := b.arrays[order]
	if size <= arr.Size() {
		return nil
	}
	return arr.SetFieldAndGrowIfNeeded(size-1, 0, 0, b.valueWidth)
}

// Trim releases spare capacity in every order.
func (b *Builder[V]) Trim() error {
	for order, arr := range b.arrays {
		if arr == nil {
			continue
		}
		if err := arr.Trim(); err != nil {
			return fmt.Errorf("trim order %d: %w", order, err)
		}
	}
	return nil
}

// CreateFreshValues returns an empty builder with the same quantizer and
// configuration.
func (b *Builder[V]) CreateFreshValues() ValueContainer[V] {
	fresh, err := newBuilder(b.q, b.numOrders, b.cfg)
	assert(err == nil, "ngramstore: configuration of an existing builder rejected")
	return fresh
}

// ClearStorageForOrder releases the storage of order. Later calls for the
// order fail with ErrNoStorage.
func (b *Builder[V]) ClearStorageForOrder(order int) {
	if !b.frozen && order >= 0 && order < b.numOrders {
		b.arrays[order] = nil
	}
}

// NumValueBits returns the record width of order: the code width plus the
// suffix field.
func (b *Builder[V]) NumValueBits(order int) int {
	if order < 0 || order >= b.numOrders {
		return 0
	}
	return b.valueWidth + b.suffixWidths[order]
}

// Size returns the number of records of order, or 0 for a cleared order.
func (b *Builder[V]) Size(order int) int64 {
	if b.checkOrder(order) != nil {
		return 0
	}
	return b.arrays[order].Size()
}

// Freeze trims the storage and returns it as an immutable Values.
func (b *Builder[V]) Freeze() (*Values[V], error) {
	if b.frozen {
		return nil, ngerrors.ErrImmutable
	}
	if err := b.Trim(); err != nil {
		return nil, err
	}
	b.frozen = true
	v := &Values[V]{
		q:            b.q,
		valueWidth:   b.valueWidth,
		suffixWidths: b.suffixWidths,
		arrays:       b.arrays,
		radix:        b.cfg.radix,
		workers:      b.cfg.workers,
	}
	b.arrays = nil
	var records int64
	for _, arr := range v.arrays {
		if arr != nil {
			records += arr.Size()
		}
	}
	tracer().Infof("values frozen: orders=%d records=%d", len(v.arrays), records)
	return v, nil
}
