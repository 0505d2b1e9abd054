package inode

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tranvaj/ssfs/blockdev"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ino := Inode{
		Valid:          true,
		FileSize:       12345,
		Direct:         [NumDirect]uint32{2, 3, 0, 0},
		Indirect:       7,
		DoubleIndirect: 9,
	}
	record := Encode(ino)
	require.Len(t, record, Size)

	got, err := Decode(record)
	require.NoError(t, err)
	require.Equal(t, ino, got)
}

func TestEncodeZeroPadsTail(t *testing.T) {
	record := Encode(Inode{})
	require.Len(t, record, Size)
	// valid=0, size=0, all pointers 0: a free inode is all zeros.
	for _, b := range record {
		require.Equal(t, byte(0), b)
	}
}

func TestLocate(t *testing.T) {
	// inode 0 -> block 1, offset 0
	blk, off, err := Locate(0, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(1), blk)
	require.Equal(t, 0, off)

	// inode 31 -> still block 1 (last slot), offset 31*32
	blk, off, err = Locate(31, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(1), blk)
	require.Equal(t, 31*Size, off)

	// inode 32 -> block 2, offset 0
	blk, off, err = Locate(32, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), blk)
	require.Equal(t, 0, off)
}

func TestLocateRejectsOutOfRange(t *testing.T) {
	_, _, err := Locate(-1, 2)
	require.Error(t, err)

	_, _, err = Locate(64, 2)
	require.Error(t, err)
}

func TestCodecReadWritePreservesSiblings(t *testing.T) {
	dev := blockdev.NewMemDevice(3)
	codec := Codec{Device: dev, NumInodeBlocks: 1}

	a := Inode{Valid: true, FileSize: 10, Direct: [NumDirect]uint32{2, 0, 0, 0}}
	b := Inode{Valid: true, FileSize: 20, Direct: [NumDirect]uint32{0, 2, 0, 0}}

	require.NoError(t, codec.Write(0, a))
	require.NoError(t, codec.Write(1, b))

	gotA, err := codec.Read(0)
	require.NoError(t, err)
	require.Equal(t, a, gotA)

	gotB, err := codec.Read(1)
	require.NoError(t, err)
	require.Equal(t, b, gotB)
}

func TestCodecReadInvalidInode(t *testing.T) {
	dev := blockdev.NewMemDevice(3)
	codec := Codec{Device: dev, NumInodeBlocks: 1}

	_, err := codec.Read(999)
	require.Error(t, err)
}
