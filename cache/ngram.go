package cache

import (
	"fmt"
	"slices"

	ngerrors "github.com/tamirms/ngramstore/errors"
)

// NgramLmCache memoizes scores keyed by an explicit n-gram.
type NgramLmCache interface {
	GetCached(ngram []int32, startPos, endPos int, hash uint64) float32
	PutCached(ngram []int32, startPos, endPos int, val float32, hash uint64)
	Clear()
	Capacity() int
}

// NgramCache is a direct-mapped cache keyed by ngram[startPos:endPos].
//
// Keys live in a flat slab of maxOrder words per bucket. A bucket whose
// stored length is zero is empty, so empty keys and keys longer than
// maxOrder are never cached.
type NgramCache struct {
	maxOrder int
	capacity uint64
	keys     []int32   // capacity*maxOrder words
	lens     []uint8   // key length per bucket, 0 = empty
	vals     []float32 // cached score per bucket
}

var _ NgramLmCache = (*NgramCache)(nil)

// NewNgramCache creates a cache of 2^bits-1 buckets holding keys of up to
// maxOrder words.
func NewNgramCache(bits, maxOrder int) (*NgramCache, error) {
	if bits < 1 || bits > maxBits {
		return nil, fmt.Errorf("%w: cache bits %d not in [1, %d]", ngerrors.ErrCapacity, bits, maxBits)
	}
	if maxOrder < 1 || maxOrder > 255 {
		return nil, fmt.Errorf("%w: max order %d not in [1, 255]", ngerrors.ErrInvalidOrder, maxOrder)
	}
	n := bucketCount(bits)
	tracer().Debugf("ngram cache: buckets=%d maxOrder=%d", n, maxOrder)
	return &NgramCache{
		maxOrder: maxOrder,
		capacity: uint64(n),
		keys:     make([]int32, n*maxOrder),
		lens:     make([]uint8, n),
		vals:     make([]float32, n),
	}, nil
}

// Capacity returns the number of buckets.
func (c *NgramCache) Capacity() int { return int(c.capacity) }

// MaxOrder returns the longest cacheable key.
func (c *NgramCache) MaxOrder() int { return c.maxOrder }

func (c *NgramCache) bucket(hash uint64) int {
	return int(hash % c.capacity)
}

// GetCached returns the score stored for ngram[startPos:endPos] in the
// bucket selected by hash, or NaN if the bucket holds another key.
func (c *NgramCache) GetCached(ngram []int32, startPos, endPos int, hash uint64) float32 {
	n := endPos - startPos
	if n <= 0 || n > c.maxOrder {
		return absent
	}
	b := c.bucket(hash)
	if int(c.lens[b]) != n {
		return absent
	}
	base := b * c.maxOrder
	if !slices.Equal(c.keys[base:base+n], ngram[startPos:endPos]) {
		return absent
	}
	return c.vals[b]
}

// PutCached stores val for ngram[startPos:endPos], overwriting the bucket.
func (c *NgramCache) PutCached(ngram []int32, startPos, endPos int, val float32, hash uint64) {
	n := endPos - startPos
	if n <= 0 || n > c.maxOrder {
		return
	}
	b := c.bucket(hash)
	base := b * c.maxOrder
	copy(c.keys[base:base+n], ngram[startPos:endPos])
	c.lens[b] = uint8(n)
	c.vals[b] = val
}

// Clear empties every bucket.
func (c *NgramCache) Clear() {
	clear(c.lens)
}
