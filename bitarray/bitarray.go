// Package bitarray implements a growable array of fixed-width integer
// records packed across a contiguous sequence of 64-bit words.
//
// Each record is fullWidth bits wide. The low keyWidth bits hold the primary
// value; the remaining bits may carry auxiliary fields (for example a suffix
// offset) addressed through GetField/SetField.
//
// Thread Safety: mutating methods require exclusive access. Once construction
// is finished and Trim has been called, concurrent reads are safe.
package bitarray

import (
	"encoding/binary"
	"fmt"
	"math"

	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
)

// maxRecords bounds the record count so that bit positions fit in uint64.
const maxRecords = math.MaxInt64 / 64

// marshalHeaderSize is size(8) + keyWidth(1) + fullWidth(1) + numWords(8).
const marshalHeaderSize = 18

// Array is a bit-packed array of fixed-width records.
type Array struct {
	words     []uint64
	size      int64
	keyWidth  int
	fullWidth int
}

// NumBitsNeeded returns ceil(log2(n+1)), with NumBitsNeeded(0) == 1.
func NumBitsNeeded(n uint64) int {
	return intbits.NumBitsNeeded(n)
}

// New creates an array whose records are exactly keyWidth bits wide.
func New(capacity int64, keyWidth int) (*Array, error) {
	return NewWithFullWidth(capacity, keyWidth, keyWidth)
}

// NewWithFullWidth creates an array of fullWidth-bit records whose primary
// value occupies the low keyWidth bits.
func NewWithFullWidth(capacity int64, keyWidth, fullWidth int) (*Array, error) {
	if keyWidth < 0 || keyWidth > fullWidth || fullWidth > 64 {
		return nil, fmt.Errorf("%w: keyWidth=%d fullWidth=%d", ngerrors.ErrInvalidWidth, keyWidth, fullWidth)
	}
	if capacity < 0 || capacity > maxRecords {
		return nil, fmt.Errorf("%w: capacity %d", ngerrors.ErrCapacity, capacity)
	}
	return &Array{
		words:     make([]uint64, intbits.WordsFor(uint64(capacity), fullWidth)),
		keyWidth:  keyWidth,
		fullWidth: fullWidth,
	}, nil
}

// FromWords wraps an existing word slice without copying. The words must
// hold at least size records of fullWidth bits. Used to view serialized or
// memory-mapped data; the result must not be grown.
func FromWords(words []uint64, size int64, keyWidth, fullWidth int) (*Array, error) {
	if keyWidth < 0 || keyWidth > fullWidth || fullWidth > 64 {
		return nil, fmt.Errorf("%w: keyWidth=%d fullWidth=%d", ngerrors.ErrInvalidWidth, keyWidth, fullWidth)
	}
	if size < 0 || size > maxRecords || uint64(len(words)) < intbits.WordsFor(uint64(size), fullWidth) {
		return nil, fmt.Errorf("%w: %d words cannot hold %d records of %d bits",
			ngerrors.ErrCapacity, len(words), size, fullWidth)
	}
	return &Array{words: words, size: size, keyWidth: keyWidth, fullWidth: fullWidth}, nil
}

// Size returns the number of records.
func (a *Array) Size() int64 { return a.size }

// KeyWidth returns the width of the primary value field.
func (a *Array) KeyWidth() int { return a.keyWidth }

// FullWidth returns the width of a whole record.
func (a *Array) FullWidth() int { return a.fullWidth }

// Capacity returns the number of records the backing words can hold.
func (a *Array) Capacity() int64 {
	if a.fullWidth == 0 {
		return maxRecords
	}
	return int64(uint64(len(a.words)) * 64 / uint64(a.fullWidth))
}

// MaxValue returns the largest value the key field can hold.
func (a *Array) MaxValue() uint64 { return intbits.Mask(a.keyWidth) }

// Words returns the backing words, trimmed to the words covering Size records.
// The slice aliases the array.
func (a *Array) Words() []uint64 {
	return a.words[:intbits.WordsFor(uint64(a.size), a.fullWidth)]
}

func (a *Array) pos(index int64, offset int) uint64 {
	return uint64(index)*uint64(a.fullWidth) + uint64(offset)
}

// Get returns the key field of record index.
func (a *Array) Get(index int64) (uint64, error) {
	if uint64(index) >= uint64(a.size) {
		return 0, fmt.Errorf("%w: %d >= size %d", ngerrors.ErrOutOfRange, index, a.size)
	}
	return intbits.ReadSpan(a.words, a.pos(index, 0), a.keyWidth), nil
}

// At returns the key field of record index without a bounds check against
// Size. Callers must have validated index.
func (a *Array) At(index int64) uint64 {
	return intbits.ReadSpan(a.words, a.pos(index, 0), a.keyWidth)
}

// FieldAt is the unchecked counterpart of GetField.
func (a *Array) FieldAt(index int64, offset, width int) uint64 {
	return intbits.ReadSpan(a.words, a.pos(index, offset), width)
}

// GetField returns width bits at offset within record index.
func (a *Array) GetField(index int64, offset, width int) (uint64, error) {
	if uint64(index) >= uint64(a.size) {
		return 0, fmt.Errorf("%w: %d >= size %d", ngerrors.ErrOutOfRange, index, a.size)
	}
	if err := a.checkField(offset, width); err != nil {
		return 0, err
	}
	return intbits.ReadSpan(a.words, a.pos(index, offset), width), nil
}

// Set stores v in the key field of record index.
func (a *Array) Set(index int64, v uint64) error {
	if uint64(index) >= uint64(a.size) {
		return fmt.Errorf("%w: %d >= size %d", ngerrors.ErrOutOfRange, index, a.size)
	}
	if err := checkValue(v, a.keyWidth); err != nil {
		return err
	}
	intbits.WriteSpan(a.words, a.pos(index, 0), a.keyWidth, v)
	return nil
}

// SetField stores v in width bits at offset within record index.
func (a *Array) SetField(index int64, v uint64, offset, width int) error {
	if uint64(index) >= uint64(a.size) {
		return fmt.Errorf("%w: %d >= size %d", ngerrors.ErrOutOfRange, index, a.size)
	}
	if err := a.checkField(offset, width); err != nil {
		return err
	}
	if err := checkValue(v, width); err != nil {
		return err
	}
	intbits.WriteSpan(a.words, a.pos(index, offset), width, v)
	return nil
}

func checkValue(v uint64, width int) error {
	if v > intbits.Mask(width) {
		return fmt.Errorf("%w: value %d does not fit in %d bits", ngerrors.ErrCapacity, v, width)
	}
	return nil
}

func (a *Array) checkField(offset, width int) error {
	if offset < 0 || width < 0 || offset+width > a.fullWidth {
		return fmt.Errorf("%w: field [%d, %d) outside %d-bit record",
			ngerrors.ErrInvalidWidth, offset, offset+width, a.fullWidth)
	}
	return nil
}

// Add appends v as a new record.
func (a *Array) Add(v uint64) error {
	return a.SetAndGrowIfNeeded(a.size, v)
}

// SetAndGrowIfNeeded stores v at index, growing Size to index+1 if needed.
func (a *Array) SetAndGrowIfNeeded(index int64, v uint64) error {
	return a.SetFieldAndGrowIfNeeded(index, v, 0, a.keyWidth)
}

// SetFieldAndGrowIfNeeded is SetField that grows Size to index+1 if needed.
func (a *Array) SetFieldAndGrowIfNeeded(index int64, v uint64, offset, width int) error {
	if index < 0 {
		return fmt.Errorf("%w: negative index %d", ngerrors.ErrOutOfRange, index)
	}
	if err := a.checkField(offset, width); err != nil {
		return err
	}
	if err := checkValue(v, width); err != nil {
		return err
	}
	if err := a.EnsureCapacity(index + 1); err != nil {
		return err
	}
	if index >= a.size {
		a.size = index + 1
	}
	return a.SetField(index, v, offset, width)
}

// EnsureCapacity grows the backing words so that n records fit, without
// changing Size. New capacity is max(n, old*3/2+1) records, zero-extended.
func (a *Array) EnsureCapacity(n int64) error {
	if n > maxRecords {
		return fmt.Errorf("%w: %d records", ngerrors.ErrCapacity, n)
	}
	old := a.Capacity()
	if n <= old {
		return nil
	}
	newCap := max(n, old*3/2+1)
	if newCap > maxRecords {
		newCap = maxRecords
	}
	grown := make([]uint64, intbits.WordsFor(uint64(newCap), a.fullWidth))
	copy(grown, a.words)
	tracer().Debugf("bitarray grow: %d -> %d records of %d bits", old, newCap, a.fullWidth)
	a.words = grown
	return nil
}

// Fill sets the key field of the first n records to v, growing Size to n
// if it is smaller.
func (a *Array) Fill(v uint64, n int64) error {
	if n <= 0 {
		return nil
	}
	if err := checkValue(v, a.keyWidth); err != nil {
		return err
	}
	if err := a.EnsureCapacity(n); err != nil {
		return err
	}
	if n > a.size {
		a.size = n
	}
	for i := int64(0); i < n; i++ {
		intbits.WriteSpan(a.words, a.pos(i, 0), a.keyWidth, v)
	}
	return nil
}

// IncrementCount adds delta to the key field at index, initializing it to
// delta when index is beyond Size.
func (a *Array) IncrementCount(index int64, delta uint64) error {
	if index >= a.size {
		return a.SetAndGrowIfNeeded(index, delta)
	}
	cur, err := a.Get(index)
	if err != nil {
		return err
	}
	if delta > a.MaxValue()-cur {
		return fmt.Errorf("%w: count %d + %d exceeds %d-bit field", ngerrors.ErrCapacity, cur, delta, a.keyWidth)
	}
	return a.Set(index, cur+delta)
}

// LinearSearch scans from startIndex, wrapping within [rangeStart, rangeEnd),
// for a record whose key equals key. It stops at the first record holding
// emptyKey, returning that index if returnFirstEmpty and -1 otherwise.
// Returns -1 when the whole range holds neither.
func (a *Array) LinearSearch(key uint64, rangeStart, rangeEnd, startIndex int64, emptyKey uint64, returnFirstEmpty bool) int64 {
	if rangeStart < 0 || rangeEnd > a.size || startIndex < rangeStart || startIndex >= rangeEnd {
		return -1
	}
	i := startIndex
	for n := rangeEnd - rangeStart; n > 0; n-- {
		v := a.At(i)
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

// TrimToSize truncates to n records and shrinks the backing words to fit
// them exactly. n must not exceed Size.
func (a *Array) TrimToSize(n int64) error {
	if n < 0 || n > a.size {
		return fmt.Errorf("%w: trim to %d with size %d", ngerrors.ErrOutOfRange, n, a.size)
	}
	need := intbits.WordsFor(uint64(n), a.fullWidth)
	if uint64(len(a.words)) != need {
		trimmed := make([]uint64, need)
		copy(trimmed, a.words)
		a.words = trimmed
	}
	a.size = n
	// clear stale bits past the last record so serialized words are canonical
	if tail := uint64(n) * uint64(a.fullWidth) % 64; tail != 0 {
		a.words[need-1] &= intbits.Mask(int(tail))
	}
	return nil
}

// Trim shrinks the backing words to exactly Size records.
func (a *Array) Trim() error {
	return a.TrimToSize(a.size)
}

// MarshalBinary encodes size, widths and the raw words (little-endian).
func (a *Array) MarshalBinary() ([]byte, error) {
	words := a.Words()
	buf := make([]byte, marshalHeaderSize+8*len(words))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(a.size))
	buf[8] = byte(a.keyWidth)
	buf[9] = byte(a.fullWidth)
	binary.LittleEndian.PutUint64(buf[10:18], uint64(len(words)))
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[marshalHeaderSize+8*i:], w)
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (a *Array) UnmarshalBinary(data []byte) error {
	if len(data) < marshalHeaderSize {
		return ngerrors.ErrTruncatedFile
	}
	size := binary.LittleEndian.Uint64(data[0:8])
	keyWidth, fullWidth := int(data[8]), int(data[9])
	numWords := binary.LittleEndian.Uint64(data[10:18])
	if numWords > uint64(len(data)-marshalHeaderSize)/8 {
		return ngerrors.ErrTruncatedFile
	}
	if size > maxRecords {
		return ngerrors.ErrCorruptedFile
	}
	words := make([]uint64, numWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[marshalHeaderSize+8*i:])
	}
	decoded, err := FromWords(words, int64(size), keyWidth, fullWidth)
	if err != nil {
		return err
	}
	*a = *decoded
	return nil
}
