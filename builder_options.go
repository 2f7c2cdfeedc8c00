package ngramstore

const (
	// defaultRadix is the block width of the variable-length rank code.
	defaultRadix = 6

	// defaultValueRank is where a never-observed default value is inserted
	// into the frequency order.
	defaultValueRank = 10
)

// Option is a functional option for configuring builders.
type Option func(*config)

type config struct {
	numNgramsPerOrder []int64 // nil: no suffix offsets
	defaultRank       int
	radix             int
	workers           int
	initialCapacity   int64
}

func defaultConfig() *config {
	return &config{
		defaultRank: defaultValueRank,
		radix:       defaultRadix,
		workers:     0, // Default to single-threaded; use WithWorkers(n) to parallelize
	}
}

// WithSuffixOffsets stores, next to each record of order o > 0, the offset
// of the n-gram's suffix in order o-1. numNgramsPerOrder[o] is the number
// of n-grams of order o and sizes the suffix field of order o+1.
// The slice is copied, so the caller can reuse it after this call.
func WithSuffixOffsets(numNgramsPerOrder []int64) Option {
	return func(c *config) {
		c.numNgramsPerOrder = append([]int64(nil), numNgramsPerOrder...)
	}
}

// WithDefaultRank sets the rank reserved for the default value when it was
// never observed. rank.NoDefault disables the reservation.
func WithDefaultRank(r int) Option {
	return func(c *config) {
		c.defaultRank = r
	}
}

// WithCompressionRadix sets the block width of the compressed form.
func WithCompressionRadix(radix int) Option {
	return func(c *config) {
		c.radix = radix
	}
}

// WithWorkers sets the number of orders compressed in parallel by
// CompressAll. 0 or 1 compresses sequentially.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithInitialCapacity sets the number of records preallocated per order.
func WithInitialCapacity(n int64) Option {
	return func(c *config) {
		c.initialCapacity = n
	}
}
