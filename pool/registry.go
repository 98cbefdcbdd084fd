package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	concpool "github.com/sourcegraph/conc/pool"

	"github.com/coachpo/blockpool/observability"
)

var (
	// ErrStoreNotRegistered indicates the requested store has not been registered.
	ErrStoreNotRegistered = errors.New("pool registry: store not registered")
	// ErrRegistryClosed indicates the registry is draining and cannot accept registrations.
	ErrRegistryClosed = errors.New("pool registry: drain in progress")
)

const (
	defaultDrainTimeout = 5 * time.Second
	drainPollInterval   = 10 * time.Millisecond
)

// Registry tracks named stores, providing live-count introspection and
// drain-at-shutdown semantics for pooled resources.
type Registry struct {
	mu        sync.RWMutex
	stores    map[string]Introspector
	closedCh  chan struct{}
	closeOnce sync.Once
}

// NewRegistry constructs an empty registry ready for store registration.
func NewRegistry() *Registry {
	r := new(Registry)
	r.stores = make(map[string]Introspector)
	r.closedCh = make(chan struct{})
	return r
}

// Register adds a store under the provided name.
func (r *Registry) Register(name string, store Introspector) error {
	if store == nil {
		return fmt.Errorf("pool registry: nil store for %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closedCh:
		return ErrRegistryClosed
	default:
	}

	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("pool registry: store %s already registered", name)
	}
	r.stores[name] = store
	return nil
}

// Lookup returns the store registered under name.
func (r *Registry) Lookup(name string) (Introspector, error) {
	r.mu.RLock()
	store, ok := r.stores[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotRegistered, name)
	}
	return store, nil
}

// Snapshot reports the current live-allocation count per registered store.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]int64, len(r.stores))
	for name, store := range r.stores {
		snapshot[name] = store.Allocations()
	}
	return snapshot
}

// Drain closes the registry to new registrations and waits for every
// store's live count to reach zero, or cancels after the provided
// context (defaulting to 5 seconds). Outstanding allocations are logged
// with acquisition stacks when available.
func (r *Registry) Drain(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultDrainTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	r.closeOnce.Do(func() {
		close(r.closedCh)
	})

	r.mu.RLock()
	stores := make(map[string]Introspector, len(r.stores))
	for name, store := range r.stores {
		stores[name] = store
	}
	r.mu.RUnlock()

	if len(stores) == 0 {
		return nil
	}

	waiters := concpool.New().WithMaxGoroutines(len(stores))
	for _, store := range stores {
		waiters.Go(func() {
			awaitIdle(ctx, store)
		})
	}
	waiters.Wait()

	var remaining int64
	for _, store := range stores {
		remaining += store.Allocations()
	}
	if remaining == 0 {
		return nil
	}
	r.logOutstanding(stores, remaining)
	return fmt.Errorf("pool registry: drain timeout: %d allocations outstanding", remaining)
}

func awaitIdle(ctx context.Context, store Introspector) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for store.Allocations() != 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Registry) logOutstanding(stores map[string]Introspector, remaining int64) {
	observability.Log().Error("pool registry: drain timed out",
		observability.Field{Key: "outstanding", Value: remaining})
	for name, store := range stores {
		for _, stack := range store.leakStacks() {
			observability.Log().Error("pool registry: leak candidate",
				observability.Field{Key: "pool", Value: name},
				observability.Field{Key: "stack", Value: stack})
		}
	}
}
