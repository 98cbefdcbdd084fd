package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockValueMutation(t *testing.T) {
	s := NewStore[frame](2)
	block := s.Allocate()
	defer block.Release()

	block.Value().Seq = 7
	block.Value().Payload = append(block.Value().Payload, 0x01)

	require.Equal(t, int64(7), block.Value().Seq)
	require.Len(t, block.Value().Payload, 1)
}

func TestBlockReleaseIsIdempotent(t *testing.T) {
	s := NewStore[frame](2)
	block := s.Allocate()
	require.Equal(t, int64(1), s.Allocations())

	block.Release()
	require.Equal(t, int64(0), s.Allocations())

	// Second and third releases are no-ops: no further decrement.
	block.Release()
	block.Release()
	require.Equal(t, int64(0), s.Allocations())
}

func TestBlockReleasedReporting(t *testing.T) {
	s := NewStore[frame](2)
	block := s.Allocate()
	require.False(t, block.Released())

	block.Release()
	require.True(t, block.Released())

	var nilBlock *Block[frame]
	require.True(t, nilBlock.Released())
	// Releasing a nil block must not panic.
	nilBlock.Release()
}

func TestBlockValuePanicsAfterRelease(t *testing.T) {
	s := NewStore[frame](2)
	block := s.Allocate()
	block.Release()

	require.Panics(t, func() {
		_ = block.Value()
	})
}

func TestBlockOwnershipTransfers(t *testing.T) {
	s := NewStore[plain](2)
	block := s.Allocate()
	block.Value().N = 3

	// Passing the *Block hands the instance to the callee; the callee
	// releases and the count reflects exactly one decrement.
	consume := func(b *Block[plain]) {
		require.Equal(t, 3, b.Value().N)
		b.Release()
	}
	consume(block)

	require.True(t, block.Released())
	require.Equal(t, int64(0), s.Allocations())
}
