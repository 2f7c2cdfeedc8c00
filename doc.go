// Package ngramstore stores per-n-gram values of a language model in a
// compact, rank-quantized, bit-packed form.
//
// Values (probability and backoff pairs, or raw counts) are first counted
// so each distinct value gets a dense rank ordered by frequency. A Builder
// then writes one fixed-width record per n-gram and order, holding the rank
// code and, optionally, the offset of the n-gram's suffix in the next lower
// order. Freeze turns the builder into an immutable Values reader that is
// safe for concurrent use.
//
// # Basic Usage
//
// Building:
//
//	counter := rank.NewProbBackoffCounter(1 << 16)
//	for _, pb := range observed {
//	    counter.Observe(pb, 1)
//	}
//	b, err := ngramstore.NewProbBackoffBuilder(counter, 3,
//	    ngramstore.WithSuffixOffsets(numNgramsPerOrder))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b.Add(ngram, 0, len(ngram), order, offset, -1, word, pb, suffixOffset, true)
//	values, err := b.Freeze()
//
// Scoring:
//
//	var pb rank.ProbBackoff
//	if err := values.GetFromOffset(offset, order, &pb); err != nil {
//	    log.Fatal(err)
//	}
//
// Persisting:
//
//	err := ngramstore.WriteFile("model.ngv", values)
//	v, err := ngramstore.OpenProbBackoff("model.ngv")
//	defer v.Close()
//
// # Package Structure
//
//   - Public API: builder.go (Builder, ValueContainer), values.go (Values)
//   - Configuration: builder_options.go (Option, With* functions)
//   - Compressed form: compress.go (CompressedOrder)
//   - Serialization: header.go (header, footer, order records), writer.go, reader.go
//   - Storage primitives: bitarray/, longarray/, openaddr/
//   - Quantization: rank/
//   - Lookup memoization: cache/
//   - Platform: fallocate_*.go, madvise_*.go (OS-specific optimizations)
package ngramstore

import "github.com/npillmayer/schuko/tracing"

// tracer writes to trace with key 'ngramstore'
func tracer() tracing.Trace {
	return tracing.Select("ngramstore")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
