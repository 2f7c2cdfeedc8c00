package rank

// Kind identifies the value type a quantizer handles.
type Kind uint8

const (
	KindProbBackoff Kind = 1
	KindCount       Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindProbBackoff:
		return "prob-backoff"
	case KindCount:
		return "count"
	default:
		return "unknown"
	}
}

// Quantizer maps values of type V to fixed-width codes and back.
type Quantizer[V any] interface {
	// Code returns the code of v. v must have been observed when the
	// tables were built (or be the default value); otherwise Code panics.
	Code(v V) uint64
	// Lookup is the non-panicking form of Code.
	Lookup(v V) (uint64, bool)
	// Expand writes the value for code into out. code must be Valid.
	Expand(code uint64, out *V)
	// Valid reports whether code names an entry of the rank tables.
	Valid(code uint64) bool
	// Width returns the number of bits of a code.
	Width() int
	// Kind identifies V for serialization.
	Kind() Kind
	// MarshalBinary encodes the rank tables.
	MarshalBinary() ([]byte, error)
}
