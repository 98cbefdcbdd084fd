package pool

// Resetter is implemented by pooled value types that want their state
// cleared before an instance re-enters the free list. Types without a
// Reset method are pooled as-is; a reused instance then carries whatever
// state its previous owner left behind.
type Resetter interface {
	Reset()
}

// Introspector exposes the live-allocation accounting a Registry needs
// from a registered store.
type Introspector interface {
	Allocations() int64

	leakStacks() []string
}
