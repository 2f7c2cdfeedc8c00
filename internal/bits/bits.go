// Package bits provides low-level bit manipulation primitives.
//
// Packed records are laid out LSB-first across a sequence of 64-bit words:
// bit position p lives in word p/64 at bit p%64, and a record of width w
// starting at p may straddle words p/64 and p/64+1.
package bits

import "math/bits"

// WordIndex returns the index of the word holding bit position pos.
func WordIndex(pos uint64) uint64 {
	return pos >> 6
}

// BitOffset returns the offset of bit position pos within its word.
func BitOffset(pos uint64) uint {
	return uint(pos & 63)
}

// Mask returns a mask of the low width bits. Mask(64) is all ones.
func Mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// ReadSpan reads width bits starting at bit position pos.
// The caller guarantees the span lies within words.
func ReadSpan(words []uint64, pos uint64, width int) uint64 {
	if width == 0 {
		return 0
	}
	i := WordIndex(pos)
	off := BitOffset(pos)
	v := words[i] >> off
	if int(off)+width > 64 {
		// off > 0 here, so 64-off is in [1, 63]
		v |= words[i+1] << (64 - off)
	}
	return v & Mask(width)
}

// WriteSpan writes the low width bits of v starting at bit position pos,
// leaving every other bit untouched.
func WriteSpan(words []uint64, pos uint64, width int, v uint64) {
	if width == 0 {
		return
	}
	i := WordIndex(pos)
	off := BitOffset(pos)
	mask := Mask(width)
	v &= mask
	words[i] = words[i]&^(mask<<off) | v<<off
	if int(off)+width > 64 {
		rem := 64 - off
		words[i+1] = words[i+1]&^(mask>>rem) | v>>rem
	}
}

// WordsFor returns the number of words needed to hold n records of width bits.
func WordsFor(n uint64, width int) uint64 {
	return (n*uint64(width) + 63) / 64
}

// NumBitsNeeded returns ceil(log2(n+1)), the number of bits needed to
// represent n. NumBitsNeeded(0) is 1 so that every field has a width.
func NumBitsNeeded(n uint64) int {
	if n == 0 {
		return 1
	}
	return bits.Len64(n)
}

// Mix64 is the 64-bit finalizer of MurmurHash3 (fmix64).
func Mix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}
