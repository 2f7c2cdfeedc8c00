package bitarray

import "github.com/npillmayer/schuko/tracing"

// tracer writes to trace with key 'ngramstore.bitarray'
func tracer() tracing.Trace {
	return tracing.Select("ngramstore.bitarray")
}
