// Package pool contains bounded object pooling primitives with
// scoped-ownership handles.
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coachpo/blockpool/observability"
)

const (
	metricAllocationsTotal = "pool_allocations_total"
	metricDiscardsTotal    = "pool_discards_total"
	metricLiveAllocations  = "pool_live_allocations"

	sourceFresh  = "fresh"
	sourceReused = "reused"
	sourceArray  = "array"
)

// Store is a bounded, shared pool of reusable *T instances. Any number of
// goroutines may call Allocate and release Blocks concurrently. The free
// list is guarded by a mutex that is only ever try-locked: when the lock
// is contended, Allocate falls back to fresh construction and the return
// path drops the instance, so no operation blocks. Under contention the
// pool may therefore hold fewer reusable instances than its capacity;
// the live-allocation count stays exact on every path.
type Store[T any] struct {
	name     string
	capacity int
	mu       sync.Mutex
	free     []*T
	live     atomic.Int64
	debug    *debugState
}

// StoreOption configures a Store at construction.
type StoreOption func(*storeOptions)

type storeOptions struct {
	name string
}

// WithName labels the store in metrics and leak reports. The default
// label is the value type's name.
func WithName(name string) StoreOption {
	return func(o *storeOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// NewStore constructs a store that retains at most capacity returned
// instances for reuse. Negative capacity panics. Capacity zero is legal:
// every return discards its instance and the store degenerates to a
// counting allocator.
func NewStore[T any](capacity int, opts ...StoreOption) *Store[T] {
	if capacity < 0 {
		panic(fmt.Sprintf("pool: capacity must be non-negative, got %d", capacity))
	}
	o := storeOptions{name: fmt.Sprintf("%T", *new(T))}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	s := new(Store[T])
	s.name = o.name
	s.capacity = capacity
	s.free = make([]*T, 0, capacity)
	s.debug = newDebugState(o.name)
	return s
}

// Name returns the label used in metrics and leak reports.
func (s *Store[T]) Name() string { return s.name }

// Capacity returns the maximum number of returned instances the store
// retains for reuse.
func (s *Store[T]) Capacity() int { return s.capacity }

// Allocate hands out a Block that exclusively owns a single instance. A
// previously returned instance is reused when the free list lock is
// immediately available and the list is non-empty; otherwise a fresh
// default-valued instance is constructed. The live-allocation count
// rises by exactly one either way.
func (s *Store[T]) Allocate() *Block[T] {
	var v *T
	if s.mu.TryLock() {
		if n := len(s.free); n > 0 {
			v = s.free[n-1]
			s.free[n-1] = nil
			s.free = s.free[:n-1]
		}
		s.mu.Unlock()
	}
	source := sourceReused
	if v == nil {
		v = new(T)
		source = sourceFresh
	} else {
		s.debug.clear(v)
	}
	s.live.Add(1)
	s.debug.recordAcquire(v)
	s.observeAllocation(source)
	return &Block[T]{value: v, store: s}
}

// AllocateArray returns a freshly constructed slice of n default-valued
// instances. The slice is independently owned by the caller: it never
// draws from or returns to the bounded free list, and it raises the
// live-allocation count by one regardless of n. Arrays have no return
// path; releasing them is the garbage collector's business and the
// count keeps recording the allocation event.
func (s *Store[T]) AllocateArray(n int) []T {
	if n < 0 {
		panic(fmt.Sprintf("pool %s: array size must be non-negative, got %d", s.name, n))
	}
	arr := make([]T, n)
	s.live.Add(1)
	s.observeAllocation(sourceArray)
	return arr
}

// Allocations reports the current live-allocation count: completed
// Allocate and AllocateArray events minus completed releases. The value
// is a point-in-time snapshot with no ordering guarantee beyond the
// atomic load.
func (s *Store[T]) Allocations() int64 { return s.live.Load() }

// returnToPool is invoked exactly once per released Block. The instance
// re-enters the free list only when the lock is immediately available
// and the list has room; on a full list or a contended lock it is
// dropped for the garbage collector instead. The live count falls by
// one on every path.
func (s *Store[T]) returnToPool(v *T) {
	if r, ok := any(v).(Resetter); ok {
		r.Reset()
	}
	s.debug.recordRelease(v)
	s.debug.poison(v)

	pooled := false
	if s.mu.TryLock() {
		if len(s.free) < s.capacity {
			s.free = append(s.free, v)
			pooled = true
		}
		s.mu.Unlock()
	}
	if !pooled {
		observability.Telemetry().IncCounter(metricDiscardsTotal, 1, s.labels(nil))
	}
	s.live.Add(-1)
	observability.Telemetry().SetGauge(metricLiveAllocations, float64(s.live.Load()), s.labels(nil))
}

func (s *Store[T]) observeAllocation(source string) {
	observability.Telemetry().IncCounter(metricAllocationsTotal, 1, s.labels(map[string]string{"source": source}))
	observability.Telemetry().SetGauge(metricLiveAllocations, float64(s.live.Load()), s.labels(nil))
}

func (s *Store[T]) labels(extra map[string]string) map[string]string {
	labels := map[string]string{"pool": s.name}
	for k, v := range extra {
		labels[k] = v
	}
	return labels
}

func (s *Store[T]) leakStacks() []string {
	return s.debug.activeStacks()
}
