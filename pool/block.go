package pool

import "fmt"

// Block is the scoped-ownership handle produced by Store.Allocate. It
// exclusively owns one instance until Release transfers that instance
// back to the store. Ownership moves with the *Block: at any moment
// exactly one holder may use it, and the instance needs no further
// synchronization while held.
type Block[T any] struct {
	value *T
	store *Store[T]
}

// Value returns the owned instance for reading and mutation. It panics
// once the block has been released.
func (b *Block[T]) Value() *T {
	if b.value == nil {
		panic(fmt.Sprintf("pool %s: block used after release", b.store.name))
	}
	return b.value
}

// Released reports whether the block has already given up its instance.
func (b *Block[T]) Released() bool {
	return b == nil || b.value == nil
}

// Release hands the owned instance back to the store. The first call
// transfers ownership and decrements the live count exactly once; every
// subsequent call is a no-op.
func (b *Block[T]) Release() {
	if b == nil || b.value == nil {
		return
	}
	v := b.value
	b.value = nil
	b.store.returnToPool(v)
}
