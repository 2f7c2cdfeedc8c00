package cache

import (
	"sync"
)

// Mode selects how a Factory hands out cache instances.
type Mode uint8

const (
	// Shared returns the same instance from every Handle call. Callers must
	// not use it from more than one goroutine at a time.
	Shared Mode = iota
	// PerWorker allocates a new instance for every Handle call. Each worker
	// calls Handle once and owns the result.
	PerWorker
)

func (m Mode) String() string {
	switch m {
	case Shared:
		return "shared"
	case PerWorker:
		return "per-worker"
	default:
		return "unknown"
	}
}

// Clearable is implemented by every cache.
type Clearable interface {
	Clear()
}

// Factory hands out cache handles and keeps a registry of every instance
// it allocated, so they can be cleared together.
type Factory[C Clearable] struct {
	mode   Mode
	alloc  func() (C, error)
	shared C

	mu      sync.Mutex
	handles []C
}

// NewFactory creates a factory that allocates caches with alloc. In Shared
// mode the single instance is allocated immediately.
func NewFactory[C Clearable](mode Mode, alloc func() (C, error)) (*Factory[C], error) {
	f := &Factory[C]{mode: mode, alloc: alloc}
	if mode == Shared {
		c, err := alloc()
		if err != nil {
			return nil, err
		}
		f.shared = c
		f.handles = []C{c}
	}
	return f, nil
}

// NewNgramFactory is a Factory of NgramCache instances.
func NewNgramFactory(mode Mode, bits, maxOrder int) (*Factory[*NgramCache], error) {
	return NewFactory(mode, func() (*NgramCache, error) {
		return NewNgramCache(bits, maxOrder)
	})
}

// NewContextFactory is a Factory of ContextCache instances.
func NewContextFactory(mode Mode, bits int) (*Factory[*ContextCache], error) {
	return NewFactory(mode, func() (*ContextCache, error) {
		return NewContextCache(bits)
	})
}

// Mode returns the factory's mode.
func (f *Factory[C]) Mode() Mode { return f.mode }

// Handle returns a cache for the calling worker: the shared instance, or a
// newly allocated and registered one.
func (f *Factory[C]) Handle() (C, error) {
	if f.mode == Shared {
		return f.shared, nil
	}
	c, err := f.alloc()
	if err != nil {
		var zero C
		return zero, err
	}
	f.mu.Lock()
	f.handles = append(f.handles, c)
	n := len(f.handles)
	f.mu.Unlock()
	tracer().Debugf("cache factory: allocated per-worker handle %d", n)
	return c, nil
}

// Handles returns every instance allocated so far.
func (f *Factory[C]) Handles() []C {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]C(nil), f.handles...)
}

// ClearAll clears every registered instance. No handle may be in use.
func (f *Factory[C]) ClearAll() {
	for _, c := range f.Handles() {
		c.Clear()
	}
}
