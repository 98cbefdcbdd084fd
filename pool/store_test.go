package pool

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type frame struct {
	Seq     int64
	Payload []byte
}

func (f *frame) Reset() {
	f.Seq = 0
	f.Payload = f.Payload[:0]
}

// plain has no Reset method; reused instances keep their previous state.
type plain struct {
	N int
}

func (s *Store[T]) freeLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.free)
}

func TestNewStoreNegativeCapacityPanics(t *testing.T) {
	require.Panics(t, func() {
		NewStore[frame](-1)
	})
}

func TestStoreDefaults(t *testing.T) {
	s := NewStore[frame](5)
	require.Equal(t, 5, s.Capacity())
	require.Equal(t, int64(0), s.Allocations())
	require.NotEmpty(t, s.Name())

	named := NewStore[frame](5, WithName("frames"))
	require.Equal(t, "frames", named.Name())
}

func TestAllocateReleaseAccounting(t *testing.T) {
	s := NewStore[frame](5)

	block := s.Allocate()
	require.Equal(t, int64(1), s.Allocations())

	block.Release()
	require.Equal(t, int64(0), s.Allocations())

	again := s.Allocate()
	require.Equal(t, int64(1), s.Allocations())
	again.Release()
	require.Equal(t, int64(0), s.Allocations())
}

func TestAllocateReusesReturnedInstance(t *testing.T) {
	s := NewStore[plain](1)

	block := s.Allocate()
	first := block.Value()
	first.N = 42
	block.Release()

	// Uncontended try-lock always succeeds, so the single-threaded path
	// must hand back the pooled instance.
	again := s.Allocate()
	require.Same(t, first, again.Value())
	require.Equal(t, 42, again.Value().N)
	again.Release()
}

func TestResetterInvokedOnReturn(t *testing.T) {
	s := NewStore[frame](1)

	block := s.Allocate()
	block.Value().Seq = 9
	block.Value().Payload = append(block.Value().Payload, 'x')
	block.Release()

	again := s.Allocate()
	require.Equal(t, int64(0), again.Value().Seq)
	require.Empty(t, again.Value().Payload)
	again.Release()
}

func TestZeroCapacityAlwaysDiscards(t *testing.T) {
	s := NewStore[plain](0)

	block := s.Allocate()
	first := block.Value()
	block.Release()
	require.Equal(t, 0, s.freeLen())

	again := s.Allocate()
	require.NotSame(t, first, again.Value())
	require.Equal(t, int64(1), s.Allocations())
	again.Release()
	require.Equal(t, int64(0), s.Allocations())
}

func TestFreeListNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	s := NewStore[frame](capacity)

	blocks := make([]*Block[frame], 0, 8)
	for i := 0; i < 8; i++ {
		blocks = append(blocks, s.Allocate())
	}
	for _, block := range blocks {
		block.Release()
	}

	require.LessOrEqual(t, s.freeLen(), capacity)
	require.Equal(t, int64(0), s.Allocations())
}

func TestAlternatingCyclesKeepFreeListBounded(t *testing.T) {
	const capacity = 4
	s := NewStore[frame](capacity)

	for i := 0; i < 100; i++ {
		block := s.Allocate()
		block.Release()
		require.LessOrEqual(t, s.freeLen(), capacity)
	}
}

func TestAllocateArray(t *testing.T) {
	s := NewStore[frame](5)

	arr := s.AllocateArray(16)
	require.Len(t, arr, 16)
	for i := range arr {
		require.Equal(t, int64(0), arr[i].Seq)
		require.Nil(t, arr[i].Payload)
	}
	// One allocation event regardless of the element count.
	require.Equal(t, int64(1), s.Allocations())

	empty := s.AllocateArray(0)
	require.Empty(t, empty)
	require.Equal(t, int64(2), s.Allocations())

	// Arrays never touch the bounded free list.
	require.Equal(t, 0, s.freeLen())
}

func TestAllocateArrayNegativePanics(t *testing.T) {
	s := NewStore[frame](1)
	require.Panics(t, func() {
		s.AllocateArray(-1)
	})
}

func TestConcurrentAllocateWithoutRelease(t *testing.T) {
	s := NewStore[frame](1)

	var wg sync.WaitGroup
	blocks := make([]*Block[frame], 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blocks[i] = s.Allocate()
		}()
	}
	wg.Wait()

	require.Equal(t, int64(2), s.Allocations())
	require.Equal(t, 0, s.freeLen())

	blocks[0].Release()
	blocks[1].Release()
	require.Equal(t, int64(0), s.Allocations())
	require.LessOrEqual(t, s.freeLen(), 1)
}

func errFromCount(n int64) error {
	return fmt.Errorf("sampled live count out of range: %d", n)
}

func TestConcurrentStress(t *testing.T) {
	const (
		workers = 8
		cycles  = 500
	)
	s := NewStore[frame](16)

	stop := make(chan struct{})
	sampler := make(chan error, 1)
	go func() {
		defer close(sampler)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n := s.Allocations()
			if n < 0 || n > workers {
				sampler <- errFromCount(n)
				return
			}
			time.Sleep(time.Microsecond)
		}
	}()

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < cycles; i++ {
				block := s.Allocate()
				block.Value().Seq = int64(i)
				block.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(stop)
	require.NoError(t, <-sampler)

	require.Equal(t, int64(0), s.Allocations())
	require.LessOrEqual(t, s.freeLen(), 16)
}
