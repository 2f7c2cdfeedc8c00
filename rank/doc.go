// Package rank quantizes n-gram values into small dense ranks.
//
// Values observed during construction are counted, then ranked by
// descending frequency so that the most common value gets rank 0. Only the
// rank is stored per n-gram; the rank tables expand it back to the original
// value. Two quantizers are provided:
//
//   - ProbBackoffTables ranks probabilities and backoff weights
//     independently and combines the two ranks into one code
//     (probRank<<backoffWidth | backoffRank).
//   - CountTables ranks raw occurrence counts.
//
// VariableLengthCompressor serializes ranks with a radix-parameterized
// universal code in which lower (more frequent) ranks get shorter codes.
//
// Tables are immutable once built and safe for concurrent use.
package rank

import "github.com/npillmayer/schuko/tracing"

// tracer writes to trace with key 'ngramstore.rank'
func tracer() tracing.Trace {
	return tracing.Select("ngramstore.rank")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
