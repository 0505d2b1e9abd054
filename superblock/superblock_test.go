package superblock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sb := Superblock{NumBlocks: 100, NumInodeBlocks: 3, BlockSize: 1024}
	block := Encode(sb)
	require.Len(t, block, 1024)

	got, err := Decode(block)
	require.NoError(t, err)
	require.Equal(t, sb, got)
}

func TestEncodeZeroPadsTail(t *testing.T) {
	block := Encode(Superblock{NumBlocks: 1, NumInodeBlocks: 1, BlockSize: 1024})
	for i := 28; i < len(block); i++ {
		require.Equal(t, byte(0), block[i], "byte %d should be zero padding", i)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	block := Encode(Superblock{NumBlocks: 1, NumInodeBlocks: 1, BlockSize: 1024})
	block[0] ^= 0xFF

	_, err := Decode(block)
	require.Error(t, err)
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	require.Error(t, err)
}
