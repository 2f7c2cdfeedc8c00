package rank

import (
	"encoding/binary"
	"math/bits"

	ngerrors "github.com/tamirms/ngramstore/errors"
)

// =============================================================================
// Bit Writer
// =============================================================================

// bitWriter appends bits LSB-first into little-endian 64-bit words.
type bitWriter struct {
	buf     []byte
	current uint64
	bitPos  int
}

func newBitWriter(sizeHint int) *bitWriter {
	return &bitWriter{
		buf: make([]byte, 0, max(sizeHint, 64)),
	}
}

func (bw *bitWriter) flushWord() {
	var wordBuf [8]byte
	binary.LittleEndian.PutUint64(wordBuf[:], bw.current)
	bw.buf = append(bw.buf, wordBuf[:]...)
	bw.current = 0
	bw.bitPos = 0
}

func (bw *bitWriter) writeBit(bit uint8) {
	if bit != 0 {
		bw.current |= uint64(1) << bw.bitPos
	}
	bw.bitPos++
	if bw.bitPos == 64 {
		bw.flushWord()
	}
}

// writeBits writes the low n bits of v, 0 <= n <= 64.
func (bw *bitWriter) writeBits(v uint64, n int) {
	if n == 0 {
		return
	}

	// for n == 64 the shift yields 0 and the mask becomes all ones
	mask := (uint64(1) << n) - 1
	v &= mask

	if bw.bitPos+n <= 64 {
		bw.current |= v << bw.bitPos
		bw.bitPos += n
		if bw.bitPos == 64 {
			bw.flushWord()
		}
		return
	}

	bitsInCurrent := 64 - bw.bitPos
	bw.current |= (v & ((1 << bitsInCurrent) - 1)) << bw.bitPos
	bw.flushWord()

	bw.current = v >> bitsInCurrent
	bw.bitPos = n - bitsInCurrent
}

func (bw *bitWriter) writeOnes(n int) {
	for n >= 64-bw.bitPos {
		n -= 64 - bw.bitPos
		bw.current |= (^uint64(0)) << bw.bitPos
		bw.flushWord()
	}
	if n > 0 {
		bw.current |= ((uint64(1) << n) - 1) << bw.bitPos
		bw.bitPos += n
	}
}

// flush writes the partial word (rounded up to whole bytes) and returns the
// encoded bytes.
func (bw *bitWriter) flush() []byte {
	if bw.bitPos > 0 {
		numBytes := (bw.bitPos + 7) / 8
		var wordBuf [8]byte
		binary.LittleEndian.PutUint64(wordBuf[:], bw.current)
		bw.buf = append(bw.buf, wordBuf[:numBytes]...)
		bw.current = 0
		bw.bitPos = 0
	}
	return bw.buf
}

func (bw *bitWriter) reset() {
	bw.buf = bw.buf[:0]
	bw.current = 0
	bw.bitPos = 0
}

func (bw *bitWriter) bitsWritten() int {
	return len(bw.buf)*8 + bw.bitPos
}

// =============================================================================
// Bit Reader
// =============================================================================

// bitReader reads bits written by bitWriter. Reads past the end of the data
// fail with ErrTruncatedInput.
type bitReader struct {
	data     []byte
	current  uint64
	bitPos   int
	bytePos  int
	consumed int
	total    int
}

func newBitReader(data []byte) *bitReader {
	br := &bitReader{
		data:  data,
		total: len(data) * 8,
	}
	br.refill()
	return br
}

func (br *bitReader) refill() {
	remaining := len(br.data) - br.bytePos
	if remaining >= 8 {
		br.current = binary.LittleEndian.Uint64(br.data[br.bytePos:])
		br.bytePos += 8
	} else if remaining > 0 {
		br.current = 0
		for i := range remaining {
			br.current |= uint64(br.data[br.bytePos+i]) << (i * 8)
		}
		br.bytePos += remaining
	} else {
		br.current = 0
	}
	br.bitPos = 0
}

func (br *bitReader) remaining() int {
	return br.total - br.consumed
}

// readBits reads n bits, 0 <= n <= 64.
func (br *bitReader) readBits(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > br.remaining() {
		return 0, ngerrors.ErrTruncatedInput
	}
	br.consumed += n
	if br.bitPos+n > 64 {
		bitsFromCurrent := 64 - br.bitPos
		var lowBits uint64
		if bitsFromCurrent > 0 {
			lowBits = br.current >> br.bitPos
		}

		br.refill()

		bitsFromNext := n - bitsFromCurrent
		mask := (uint64(1) << bitsFromNext) - 1
		highBits := br.current & mask
		br.bitPos = bitsFromNext

		return lowBits | (highBits << bitsFromCurrent), nil
	}

	mask := (uint64(1) << n) - 1
	result := (br.current >> br.bitPos) & mask
	br.bitPos += n
	return result, nil
}

// readUnary counts 1-bits up to the next 0-bit, which is consumed. It fails
// once the count exceeds limit.
func (br *bitReader) readUnary(limit int) (int, error) {
	count := 0
	for {
		if br.remaining() == 0 {
			return 0, ngerrors.ErrTruncatedInput
		}
		if br.bitPos >= 64 {
			br.refill()
		}

		available := min(64-br.bitPos, br.remaining())
		ones := bits.TrailingZeros64(^(br.current >> br.bitPos))
		if ones < available {
			count += ones
			br.bitPos += ones + 1
			br.consumed += ones + 1
			if count > limit {
				return 0, ngerrors.ErrTruncatedInput
			}
			return count, nil
		}

		count += available
		br.bitPos += available
		br.consumed += available
		if count > limit {
			return 0, ngerrors.ErrTruncatedInput
		}
	}
}
