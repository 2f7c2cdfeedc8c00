package ngramstore

import (
	"context"
	"fmt"

	"github.com/tamirms/ngramstore/bitarray"
	ngerrors "github.com/tamirms/ngramstore/errors"
	intbits "github.com/tamirms/ngramstore/internal/bits"
	"github.com/tamirms/ngramstore/rank"
	"golang.org/x/sync/errgroup"
)

// CompressedOrder is the variable-length form of one order: for every
// record the rank code, then the suffix offset if the order has one, each
// as a radix-parameterized universal code.
type CompressedOrder struct {
	Order int
	Count int64
	Radix int
	Data  []byte
}

// BitsPerRecord returns the average compressed record size.
func (c *CompressedOrder) BitsPerRecord() float64 {
	if c.Count == 0 {
		return 0
	}
	return float64(len(c.Data)*8) / float64(c.Count)
}

// Compress encodes the records of order.
func (v *Values[V]) Compress(order int) (*CompressedOrder, error) {
	arr, err := v.array(order)
	if err != nil {
		return nil, err
	}
	comp, err := rank.NewVariableLengthCompressor(v.radix)
	if err != nil {
		return nil, err
	}
	sw := v.suffixWidths[order]
	n := arr.Size()
	enc := comp.NewEncoder(int(n) * (v.radix + 1) / 8)
	for i := int64(0); i < n; i++ {
		enc.Encode(arr.FieldAt(i, 0, v.valueWidth))
		if sw > 0 {
			enc.Encode(arr.FieldAt(i, v.valueWidth, sw))
		}
	}
	c := &CompressedOrder{Order: order, Count: n, Radix: v.radix, Data: enc.Bytes()}
	tracer().Debugf("compressed order %d: %d records, %.2f bits/record (packed %d)",
		order, n, c.BitsPerRecord(), v.NumValueBits(order))
	return c, nil
}

// CompressAll compresses every stored order, running up to the configured
// number of workers in parallel. Cleared orders yield nil entries.
func (v *Values[V]) CompressAll(ctx context.Context) ([]*CompressedOrder, error) {
	out := make([]*CompressedOrder, len(v.arrays))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(v.workers, 1))
	for order, arr := range v.arrays {
		if arr == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := v.Compress(order)
			if err != nil {
				return fmt.Errorf("compress order %d: %w", order, err)
			}
			out[order] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DecompressOrder decodes c back into a packed array with the record layout
// of c.Order.
func (v *Values[V]) DecompressOrder(c *CompressedOrder) (*bitarray.Array, error) {
	if c.Order < 0 || c.Order >= len(v.suffixWidths) {
		return nil, fmt.Errorf("%w: %d", ngerrors.ErrInvalidOrder, c.Order)
	}
	comp, err := rank.NewVariableLengthCompressor(c.Radix)
	if err != nil {
		return nil, err
	}
	sw := v.suffixWidths[c.Order]
	// every code takes at least radix+1 bits
	minBits := int64(c.Radix + 1)
	if sw > 0 {
		minBits *= 2
	}
	if c.Count > int64(len(c.Data))*8/minBits {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d records of order %d",
			ngerrors.ErrTruncatedInput, len(c.Data), c.Count, c.Order)
	}
	arr, err := bitarray.NewWithFullWidth(c.Count, v.valueWidth, v.valueWidth+sw)
	if err != nil {
		return nil, err
	}
	dec := comp.NewDecoder(c.Data)
	read := func(i int64, width int) (uint64, error) {
		x, err := dec.Decode()
		if err != nil {
			return 0, fmt.Errorf("record %d of order %d: %w", i, c.Order, err)
		}
		if x > intbits.Mask(width) {
			return 0, fmt.Errorf("%w: record %d of order %d holds %d, wider than %d bits",
				ngerrors.ErrCorruptedFile, i, c.Order, x, width)
		}
		return x, nil
	}
	for i := int64(0); i < c.Count; i++ {
		code, err := read(i, v.valueWidth)
		if err != nil {
			return nil, err
		}
		if !v.q.Valid(code) {
			return nil, fmt.Errorf("%w: record %d of order %d holds code %d past the rank tables",
				ngerrors.ErrCorruptedFile, i, c.Order, code)
		}
		if err := arr.SetFieldAndGrowIfNeeded(i, code, 0, v.valueWidth); err != nil {
			return nil, err
		}
		if sw > 0 {
			suffix, err := read(i, sw)
			if err != nil {
				return nil, err
			}
			if err := arr.SetField(i, suffix, v.valueWidth, sw); err != nil {
				return nil, err
			}
		}
	}
	return arr, nil
}
