package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReservesMetadataBlocks(t *testing.T) {
	b := New(10, 2)
	require.True(t, b.InUse(0))
	require.True(t, b.InUse(1))
	require.False(t, b.InUse(2))
}

func TestAllocateIsAscendingAndFirstAvailable(t *testing.T) {
	b := New(10, 2)

	first, err := b.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint32(2), first)

	second, err := b.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint32(3), second)

	b.Free(first)

	third, err := b.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint32(2), third, "freed index should be the smallest available again")
}

func TestAllocateOutOfSpace(t *testing.T) {
	b := New(3, 2)
	_, err := b.Allocate()
	require.NoError(t, err)

	_, err = b.Allocate()
	require.Error(t, err)
}

func TestFreeIgnoresSentinelAndOutOfRange(t *testing.T) {
	b := New(5, 2)
	b.Free(0)
	b.Free(1)  // metadata block, outside data range
	b.Free(99) // out of range
	require.True(t, b.InUse(1))
}

func TestReserve(t *testing.T) {
	b := New(5, 2)
	b.Reserve(3)
	require.True(t, b.InUse(3))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	b := New(5, 2)
	snap := b.Snapshot()
	b.Reserve(3)
	require.False(t, snap[3])
	require.True(t, b.InUse(3))
}
