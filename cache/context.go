package cache

import (
	"fmt"
	"math"

	ngerrors "github.com/tamirms/ngramstore/errors"
)

// ContextOutput is the auxiliary result stored next to a context score:
// the offset and order of the extended context.
type ContextOutput struct {
	Offset int64
	Order  int
}

// ContextLmCache memoizes scores keyed by (contextOffset, contextOrder, word).
type ContextLmCache interface {
	GetCached(contextOffset int64, contextOrder int, word int32, hash uint64) (float32, ContextOutput)
	PutCached(contextOffset int64, contextOrder int, word int32, val float32, out ContextOutput, hash uint64)
	Clear()
	Capacity() int
}

type contextSlot struct {
	key           uint64 // word<<32 | contextOrder+1, 0 = empty
	contextOffset int64
	outOffset     int64
	outOrder      int32
	val           float32
}

// ContextCache is a direct-mapped cache keyed by a context triple.
type ContextCache struct {
	capacity uint64
	slots    []contextSlot
}

var _ ContextLmCache = (*ContextCache)(nil)

// NewContextCache creates a cache of 2^bits-1 buckets.
func NewContextCache(bits int) (*ContextCache, error) {
	if bits < 1 || bits > maxBits {
		return nil, fmt.Errorf("%w: cache bits %d not in [1, %d]", ngerrors.ErrCapacity, bits, maxBits)
	}
	n := bucketCount(bits)
	tracer().Debugf("context cache: buckets=%d", n)
	return &ContextCache{
		capacity: uint64(n),
		slots:    make([]contextSlot, n),
	}, nil
}

// Capacity returns the number of buckets.
func (c *ContextCache) Capacity() int { return int(c.capacity) }

// packContextKey packs word and order into one word. The order is stored
// plus one so that a valid key is never zero.
func packContextKey(contextOrder int, word int32) (uint64, bool) {
	if contextOrder < 0 || uint64(contextOrder) >= math.MaxUint32 {
		return 0, false
	}
	return uint64(uint32(word))<<32 | uint64(contextOrder+1), true
}

// GetCached returns the score and auxiliary output stored for the triple,
// or NaN and a zero ContextOutput if the bucket holds another key.
func (c *ContextCache) GetCached(contextOffset int64, contextOrder int, word int32, hash uint64) (float32, ContextOutput) {
	key, ok := packContextKey(contextOrder, word)
	if !ok {
		return absent, ContextOutput{}
	}
	s := &c.slots[hash%c.capacity]
	if s.key != key || s.contextOffset != contextOffset {
		return absent, ContextOutput{}
	}
	return s.val, ContextOutput{Offset: s.outOffset, Order: int(s.outOrder)}
}

// PutCached stores val and out for the triple, overwriting the bucket.
func (c *ContextCache) PutCached(contextOffset int64, contextOrder int, word int32, val float32, out ContextOutput, hash uint64) {
	key, ok := packContextKey(contextOrder, word)
	if !ok {
		return
	}
	c.slots[hash%c.capacity] = contextSlot{
		key:           key,
		contextOffset: contextOffset,
		outOffset:     out.Offset,
		outOrder:      int32(out.Order),
		val:           val,
	}
}

// Clear empties every bucket.
func (c *ContextCache) Clear() {
	clear(c.slots)
}
