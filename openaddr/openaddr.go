// Package openaddr implements linear-probing hash containers over
// non-negative int64 keys: a Set and a key-to-value Map.
//
// Key EmptyKey (-1) marks an unoccupied slot and may not be stored.
// Tables grow to 2*capacity+1 slots whenever size/capacity would exceed the
// maximum load factor (0.5 by default). Deletion uses backward shifting, so
// probe chains never contain tombstones.
//
// Containers are meant for single-threaded construction work (deduplicating
// values, counting occurrences) and are not safe for concurrent mutation.
package openaddr

import (
	"math"

	intbits "github.com/tamirms/ngramstore/internal/bits"
)

// EmptyKey marks an empty slot.
const EmptyKey int64 = -1

const (
	defaultMaxLoadFactor = 0.5
	minTableSize         = 5
)

// Option configures a Set or Map.
type Option func(*config)

type config struct {
	maxLoadFactor float64
}

func defaultConfig() *config {
	return &config{maxLoadFactor: defaultMaxLoadFactor}
}

// WithMaxLoadFactor sets the load factor above which the table is rehashed.
// Values outside (0, 1) are ignored.
func WithMaxLoadFactor(f float64) Option {
	return func(c *config) {
		if f > 0 && f < 1 {
			c.maxLoadFactor = f
		}
	}
}

func tableSizeFor(expected int, loadFactor float64) int {
	n := int(math.Ceil(float64(expected)/loadFactor)) + 1
	return max(n, minTableSize)
}

func newKeyTable(n int) []int64 {
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = EmptyKey
	}
	return keys
}

// home returns the preferred slot of key in a table of n slots.
func home(key int64, n int) int {
	return int(intbits.Mix64(uint64(key)) % uint64(n))
}

// probe returns the slot holding key, or the empty slot ending its chain.
func probe(keys []int64, key int64) int {
	n := len(keys)
	i := home(key, n)
	for {
		k := keys[i]
		if k == key || k == EmptyKey {
			return i
		}
		i++
		if i == n {
			i = 0
		}
	}
}

// cyclicallyIn reports whether slot h lies cyclically in (i, j].
func cyclicallyIn(h, i, j int) bool {
	if i <= j {
		return i < h && h <= j
	}
	return h > i || h <= j
}

// deleteSlot empties slot i and shifts later members of its probe chain
// back so every remaining key stays reachable from its home slot. move is
// called for each relocation so parallel value arrays can follow.
func deleteSlot(keys []int64, i int, move func(dst, src int)) {
	n := len(keys)
	j := i
	for {
		j++
		if j == n {
			j = 0
		}
		k := keys[j]
		if k == EmptyKey {
			break
		}
		h := home(k, n)
		// keys[j] may fill the hole at i only if its home is not in (i, j]
		if cyclicallyIn(h, i, j) {
			continue
		}
		keys[i] = k
		if move != nil {
			move(i, j)
		}
		i = j
	}
	keys[i] = EmptyKey
}

// must panics with msg when condition does not hold.
func must(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
