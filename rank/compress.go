package rank

import (
	"fmt"

	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
)

// Variable-length code overview:
//
// A value n needing b = NumBitsNeeded(n) bits is split into k = ceil(b/radix)
// blocks of radix bits. The code is k-1 in unary (k-1 ones and a zero)
// followed by n in min(k*radix, 64) bits. With radix r, values below 2^r
// cost r+1 bits, values below 2^(2r) cost 2r+2 bits, and so on, so the
// frequent low ranks stay short.

// VariableLengthCompressor encodes ranks with a radix-parameterized
// universal code.
type VariableLengthCompressor struct {
	radix     int
	maxBlocks int
}

// NewVariableLengthCompressor creates a compressor with the given radix.
func NewVariableLengthCompressor(radix int) (*VariableLengthCompressor, error) {
	if radix < 1 || radix > 64 {
		return nil, fmt.Errorf("%w: %d", ngerrors.ErrInvalidRadix, radix)
	}
	return &VariableLengthCompressor{
		radix:     radix,
		maxBlocks: (64 + radix - 1) / radix,
	}, nil
}

// Radix returns the block width.
func (c *VariableLengthCompressor) Radix() int { return c.radix }

func (c *VariableLengthCompressor) blocks(n uint64) int {
	return (intbits.NumBitsNeeded(n) + c.radix - 1) / c.radix
}

func (c *VariableLengthCompressor) payloadWidth(blocks int) int {
	return min(blocks*c.radix, 64)
}

// CodeLength returns the number of bits used to encode n.
func (c *VariableLengthCompressor) CodeLength(n uint64) int {
	k := c.blocks(n)
	return k + c.payloadWidth(k)
}

// Encoder appends codes to a bit stream.
type Encoder struct {
	c     *VariableLengthCompressor
	bw    *bitWriter
	count int
}

// NewEncoder returns an encoder with room for sizeHint bytes.
func (c *VariableLengthCompressor) NewEncoder(sizeHint int) *Encoder {
	return &Encoder{c: c, bw: newBitWriter(sizeHint)}
}

// Encode appends the code of n.
func (e *Encoder) Encode(n uint64) {
	k := e.c.blocks(n)
	e.bw.writeOnes(k - 1)
	e.bw.writeBit(0)
	e.bw.writeBits(n, e.c.payloadWidth(k))
	e.count++
}

// Count returns the number of encoded values.
func (e *Encoder) Count() int { return e.count }

// BitsWritten returns the stream length in bits.
func (e *Encoder) BitsWritten() int { return e.bw.bitsWritten() }

// Bytes flushes and returns the stream. The encoder must not be used
// afterwards except through Reset.
func (e *Encoder) Bytes() []byte { return e.bw.flush() }

// Reset empties the encoder for reuse.
func (e *Encoder) Reset() {
	e.bw.reset()
	e.count = 0
}

// Decoder reads codes sequentially from a stream.
type Decoder struct {
	c  *VariableLengthCompressor
	br *bitReader
}

// NewDecoder returns a decoder over data.
func (c *VariableLengthCompressor) NewDecoder(data []byte) *Decoder {
	return &Decoder{c: c, br: newBitReader(data)}
}

// Decode returns the next value. A stream that ends mid-code, or whose
// unary prefix is longer than any valid code, fails with ErrTruncatedInput.
func (d *Decoder) Decode() (uint64, error) {
	k, err := d.br.readUnary(d.c.maxBlocks - 1)
	if err != nil {
		return 0, err
	}
	return d.br.readBits(d.c.payloadWidth(k + 1))
}

// Compress encodes values into a single stream.
func (c *VariableLengthCompressor) Compress(values []uint64) []byte {
	e := c.NewEncoder(len(values))
	for _, v := range values {
		e.Encode(v)
	}
	return e.Bytes()
}

// Decompress decodes n values from data.
func (c *VariableLengthCompressor) Decompress(data []byte, n int) ([]uint64, error) {
	d := c.NewDecoder(data)
	out := make([]uint64, n)
	for i := range out {
		v, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode value %d of %d: %w", i, n, err)
		}
		out[i] = v
	}
	return out, nil
}
