package ngramstore

import (
	"fmt"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"github.com/tamirms/ngramstore/bitarray"
	ngerrors "github.com/tamirms/ngramstore/errors"
	"github.com/tamirms/ngramstore/rank"
)

// Values is the immutable reader produced by Builder.Freeze or by opening a
// file written with WriteFile.
//
// Thread Safety:
// - GetFromOffset, SuffixOffset and the other read methods are safe for concurrent use
// - Close is NOT safe to call concurrently with reads
// - After Close returns, reads fail with ErrClosed
type Values[V any] struct {
	q            rank.Quantizer[V]
	valueWidth   int
	suffixWidths []int
	arrays       []*bitarray.Array // nil entry: order was cleared
	radix        int
	workers      int

	// Set when the records are views into a memory-mapped file.
	mmap mmap.MMap
	data []byte

	closed atomic.Bool
}

func (v *Values[V]) array(order int) (*bitarray.Array, error) {
	if v.closed.Load() {
		return nil, ngerrors.ErrClosed
	}
	if order < 0 || order >= len(v.arrays) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ngerrors.ErrInvalidOrder, order, len(v.arrays))
	}
	arr := v.arrays[order]
	if arr == nil {
		return nil, fmt.Errorf("%w: %d", ngerrors.ErrNoStorage, order)
	}
	return arr, nil
}

// GetFromOffset writes the value stored at offset of order into out.
func (v *Values[V]) GetFromOffset(offset int64, order int, out *V) error {
	arr, err := v.array(order)
	if err != nil {
		return err
	}
	if uint64(offset) >= uint64(arr.Size()) {
		return fmt.Errorf("%w: offset %d >= %d", ngerrors.ErrOutOfRange, offset, arr.Size())
	}
	code := arr.FieldAt(offset, 0, v.valueWidth)
	if !v.q.Valid(code) {
		return fmt.Errorf("%w: order %d offset %d holds code %d past the rank tables",
			ngerrors.ErrCorruptedFile, order, offset, code)
	}
	v.q.Expand(code, out)
	return nil
}

// SuffixOffset returns the offset in order-1 of the suffix of the n-gram
// at offset.
func (v *Values[V]) SuffixOffset(offset int64, order int) (int64, error) {
	arr, err := v.array(order)
	if err != nil {
		return 0, err
	}
	w := v.suffixWidths[order]
	if w == 0 {
		return 0, ngerrors.ErrNoSuffixes
	}
	if uint64(offset) >= uint64(arr.Size()) {
		return 0, fmt.Errorf("%w: offset %d >= %d", ngerrors.ErrOutOfRange, offset, arr.Size())
	}
	return int64(arr.FieldAt(offset, v.valueWidth, w)), nil
}

// Code returns the raw quantizer code stored at offset.
func (v *Values[V]) Code(offset int64, order int) (uint64, error) {
	arr, err := v.array(order)
	if err != nil {
		return 0, err
	}
	return arr.Get(offset)
}

// NumOrders returns the number of orders.
func (v *Values[V]) NumOrders() int { return len(v.arrays) }

// NumRecords returns the number of records of order, or 0 when the order
// is unknown or was cleared.
func (v *Values[V]) NumRecords(order int) int64 {
	arr, err := v.array(order)
	if err != nil {
		return 0
	}
	return arr.Size()
}

// HasSuffixOffsets reports whether records carry suffix offsets.
func (v *Values[V]) HasSuffixOffsets() bool {
	for _, w := range v.suffixWidths {
		if w > 0 {
			return true
		}
	}
	return false
}

// NumValueBits returns the record width of order in bits.
func (v *Values[V]) NumValueBits(order int) int {
	if order < 0 || order >= len(v.suffixWidths) {
		return 0
	}
	return v.valueWidth + v.suffixWidths[order]
}

// Quantizer returns the rank tables that expand stored codes.
func (v *Values[V]) Quantizer() rank.Quantizer[V] { return v.q }

// Radix returns the block width used by Compress.
func (v *Values[V]) Radix() int { return v.radix }

// Close releases the memory map, if any. Close is idempotent.
func (v *Values[V]) Close() error {
	if v.closed.Swap(true) {
		return nil
	}
	if v.mmap != nil {
		return v.mmap.Unmap()
	}
	return nil
}
