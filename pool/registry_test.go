package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	s := NewStore[frame](4, WithName("frames"))

	require.NoError(t, r.Register("frames", s))

	got, err := r.Lookup("frames")
	require.NoError(t, err)
	require.Equal(t, Introspector(s), got)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("frames", NewStore[frame](4)))
	require.Error(t, r.Register("frames", NewStore[frame](4)))
}

func TestRegistryRejectsNilStore(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("frames", nil))
}

func TestRegistryLookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("absent")
	require.ErrorIs(t, err, ErrStoreNotRegistered)
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	frames := NewStore[frame](4)
	scratch := NewStore[plain](2)
	require.NoError(t, r.Register("frames", frames))
	require.NoError(t, r.Register("scratch", scratch))

	block := frames.Allocate()
	snapshot := r.Snapshot()
	require.Equal(t, int64(1), snapshot["frames"])
	require.Equal(t, int64(0), snapshot["scratch"])
	block.Release()
}

func TestDrainEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Drain(context.Background()))
}

func TestDrainCompletesWhenIdle(t *testing.T) {
	r := NewRegistry()
	s := NewStore[frame](4)
	require.NoError(t, r.Register("frames", s))

	block := s.Allocate()
	block.Release()

	require.NoError(t, r.Drain(context.Background()))
}

func TestDrainWaitsForOutstandingRelease(t *testing.T) {
	r := NewRegistry()
	s := NewStore[frame](4)
	require.NoError(t, r.Register("frames", s))

	block := s.Allocate()
	go func() {
		time.Sleep(30 * time.Millisecond)
		block.Release()
	}()

	require.NoError(t, r.Drain(context.Background()))
	require.Equal(t, int64(0), s.Allocations())
}

func TestDrainTimesOutOnLeak(t *testing.T) {
	r := NewRegistry()
	s := NewStore[frame](4)
	require.NoError(t, r.Register("frames", s))

	leaked := s.Allocate()
	defer leaked.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Drain(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 allocations outstanding")
}

func TestRegisterAfterDrainFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Drain(context.Background()))

	err := r.Register("late", NewStore[frame](1))
	require.True(t, errors.Is(err, ErrRegistryClosed))
}
