// Package cache provides direct-mapped memoization caches for n-gram
// scoring.
//
// A direct-mapped cache has exactly one slot per bucket. A lookup hashes its
// key to a bucket and compares the full key stored there, so two keys whose
// hashes alias never return each other's values. A store always overwrites
// the bucket, evicting whatever occupied it. Misses are reported as NaN.
//
// Caches perform no locking. A cache instance must be used by one goroutine
// at a time; Factory hands out either one shared instance (the caller
// serializes access) or one instance per worker.
package cache

import (
	"math"

	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'ngramstore.cache'
func tracer() tracing.Trace {
	return tracing.Select("ngramstore.cache")
}

// maxBits bounds the bucket count at 2^30-1.
const maxBits = 30

var absent = float32(math.NaN())

// IsAbsent reports whether v is the miss sentinel returned by GetCached.
func IsAbsent(v float32) bool {
	return v != v
}

func bucketCount(bits int) int {
	return 1<<bits - 1
}
