// Package longarray provides growable sequences of non-negative integers
// behind a single LongArray interface, with backings chosen by the largest
// value that must be stored.
//
// Variants:
//   - uint8, uint32 and uint64 slice backings (one generic implementation)
//   - a bit-packed backing using exactly NumBitsNeeded(maxValue) bits per element
//
// Mutating methods are defined only before Trim; afterwards the array is
// treated as immutable and is safe for concurrent reads.
package longarray

import (
	"fmt"
	"math"

	"github.com/tamirms/ngramstore/bitarray"
	ngerrors "github.com/tamirms/ngramstore/errors"
)

const (
	// maxNarrowLength is the addressable element count of the uint8 and
	// uint32 backings.
	maxNarrowLength = math.MaxInt32

	// maxWideLength is the addressable element count of the uint64 backing.
	maxWideLength = 1 << 40
)

// LongArray is an index-addressable sequence of non-negative integers.
type LongArray interface {
	// Get returns the element at index.
	Get(index int64) (uint64, error)
	// Set overwrites the element at index < Size.
	Set(index int64, v uint64) error
	// SetAndGrowIfNeeded sets index, extending Size to index+1 if needed.
	SetAndGrowIfNeeded(index int64, v uint64) error
	// Add appends v.
	Add(v uint64) error
	// EnsureCapacity grows storage to hold n elements without changing Size.
	EnsureCapacity(n int64) error
	// Fill sets the first n elements to v, extending Size to n if needed.
	Fill(v uint64, n int64) error
	// IncrementCount adds delta at index, initializing it beyond Size.
	IncrementCount(index int64, delta uint64) error
	// LinearSearch scans [rangeStart, rangeEnd) circularly from startIndex.
	LinearSearch(key uint64, rangeStart, rangeEnd, startIndex int64, emptyKey uint64, returnFirstEmpty bool) int64
	// Trim releases storage beyond Size.
	Trim() error
	// TrimToSize truncates to n elements and releases the rest.
	TrimToSize(n int64) error
	// Size returns the element count.
	Size() int64
	// MaxValue returns the largest storable element.
	MaxValue() uint64
}

// New returns the narrowest slice backing that can hold maxValue and
// address maxCount elements.
func New(maxValue uint64, maxCount int64) (LongArray, error) {
	if maxCount < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ngerrors.ErrCapacity, maxCount)
	}
	switch {
	case maxValue <= math.MaxUint8:
		return newSliceArray[uint8](maxCount, maxNarrowLength)
	case maxValue <= math.MaxUint32:
		return newSliceArray[uint32](maxCount, maxNarrowLength)
	default:
		return newSliceArray[uint64](maxCount, maxWideLength)
	}
}

// NewPacked returns a bit-packed backing storing each element in exactly
// NumBitsNeeded(maxValue) bits.
func NewPacked(maxValue uint64, maxCount int64) (LongArray, error) {
	if maxCount < 0 || maxCount > maxWideLength {
		return nil, fmt.Errorf("%w: %d elements exceeds backing limit %d", ngerrors.ErrCapacity, maxCount, int64(maxWideLength))
	}
	a, err := bitarray.New(0, bitarray.NumBitsNeeded(maxValue))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Bit-packed arrays satisfy LongArray directly.
var _ LongArray = (*bitarray.Array)(nil)

type element interface {
	~uint8 | ~uint32 | ~uint64
}

// sliceArray is a LongArray backed by a flat slice of T.
type sliceArray[T element] struct {
	data      []T
	maxLength int64
}

func newSliceArray[T element](maxCount, maxLength int64) (LongArray, error) {
	if maxCount > maxLength {
		return nil, fmt.Errorf("%w: %d elements exceeds backing limit %d", ngerrors.ErrCapacity, maxCount, maxLength)
	}
	return &sliceArray[T]{maxLength: maxLength}, nil
}

func (a *sliceArray[T]) Size() int64 { return int64(len(a.data)) }

func (a *sliceArray[T]) MaxValue() uint64 { return uint64(^T(0)) }

func (a *sliceArray[T]) Get(index int64) (uint64, error) {
	if uint64(index) >= uint64(len(a.data)) {
		return 0, fmt.Errorf("%w: %d >= size %d", ngerrors.ErrOutOfRange, index, len(a.data))
	}
	return uint64(a.data[index]), nil
}

func (a *sliceArray[T]) checkValue(v uint64) error {
	if v > a.MaxValue() {
		return fmt.Errorf("%w: value %d exceeds backing max %d", ngerrors.ErrCapacity, v, a.MaxValue())
	}
	return nil
}

func (a *sliceArray[T]) Set(index int64, v uint64) error {
	if uint64(index) >= uint64(len(a.data)) {
		return fmt.Errorf("%w: %d >= size %d", ngerrors.ErrOutOfRange, index, len(a.data))
	}
	if err := a.checkValue(v); err != nil {
		return err
	}
	a.data[index] = T(v)
	return nil
}

func (a *sliceArray[T]) SetAndGrowIfNeeded(index int64, v uint64) error {
	if index < 0 {
		return fmt.Errorf("%w: negative index %d", ngerrors.ErrOutOfRange, index)
	}
	if err := a.checkValue(v); err != nil {
		return err
	}
	if err := a.grow(index + 1); err != nil {
		return err
	}
	a.data[index] = T(v)
	return nil
}

func (a *sliceArray[T]) Add(v uint64) error {
	return a.SetAndGrowIfNeeded(int64(len(a.data)), v)
}

func (a *sliceArray[T]) EnsureCapacity(n int64) error {
	if n > a.maxLength {
		return fmt.Errorf("%w: %d elements exceeds backing limit %d", ngerrors.ErrCapacity, n, a.maxLength)
	}
	old := int64(cap(a.data))
	if n <= old {
		return nil
	}
	newCap := min(max(n, old*3/2+1), a.maxLength)
	grown := make([]T, len(a.data), newCap)
	copy(grown, a.data)
	a.data = grown
	return nil
}

// grow extends the length to n, zero-filling new elements.
func (a *sliceArray[T]) grow(n int64) error {
	if n <= int64(len(a.data)) {
		return nil
	}
	if err := a.EnsureCapacity(n); err != nil {
		return err
	}
	old := len(a.data)
	a.data = a.data[:n]
	clear(a.data[old:])
	return nil
}

func (a *sliceArray[T]) Fill(v uint64, n int64) error {
	if n <= 0 {
		return nil
	}
	if err := a.checkValue(v); err != nil {
		return err
	}
	if err := a.grow(n); err != nil {
		return err
	}
	for i := range a.data[:n] {
		a.data[i] = T(v)
	}
	return nil
}

func (a *sliceArray[T]) IncrementCount(index int64, delta uint64) error {
	if index >= int64(len(a.data)) {
		return a.SetAndGrowIfNeeded(index, delta)
	}
	cur, err := a.Get(index)
	if err != nil {
		return err
	}
	if delta > a.MaxValue()-cur {
		return fmt.Errorf("%w: count %d + %d exceeds backing max %d", ngerrors.ErrCapacity, cur, delta, a.MaxValue())
	}
	a.data[index] = T(cur + delta)
	return nil
}

func (a *sliceArray[T]) LinearSearch(key uint64, rangeStart, rangeEnd, startIndex int64, emptyKey uint64, returnFirstEmpty bool) int64 {
	if rangeStart < 0 || rangeEnd > int64(len(a.data)) || startIndex < rangeStart || startIndex >= rangeEnd {
		return -1
	}
	i := startIndex
	for n := rangeEnd - rangeStart; n > 0; n-- {
		v := uint64(a.data[i])
		if v == key {
			return i
		}
		if v == emptyKey {
			if returnFirstEmpty {
				return i
			}
			return -1
		}
		i++
		if i == rangeEnd {
			i = rangeStart
		}
	}
	return -1
}

func (a *sliceArray[T]) Trim() error {
	return a.TrimToSize(int64(len(a.data)))
}

func (a *sliceArray[T]) TrimToSize(n int64) error {
	if n < 0 || n > int64(len(a.data)) {
		return fmt.Errorf("%w: trim to %d with size %d", ngerrors.ErrOutOfRange, n, len(a.data))
	}
	if int64(cap(a.data)) != n {
		a.data = append(make([]T, 0, n), a.data[:n]...)
	} else {
		a.data = a.data[:n]
	}
	return nil
}
