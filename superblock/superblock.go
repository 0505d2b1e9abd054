// Package superblock encodes and decodes the SSFS superblock: the 16-byte
// magic plus three little-endian 32-bit fields that live in block 0.
package superblock

import (
	"encoding/binary"

	"github.com/tranvaj/ssfs/blockdev"
	"github.com/tranvaj/ssfs/ssfserr"
)

// MagicSize is the length in bytes of the on-disk magic literal.
const MagicSize = 16

// Magic is the exact byte sequence every valid SSFS image starts with.
var Magic = [MagicSize]byte{
	0xF0, 0x55, 0x4C, 0x49, 0x45, 0x47, 0x45, 0x49,
	0x4E, 0x46, 0x4F, 0x30, 0x39, 0x34, 0x30, 0x0F,
}

// Superblock is the geometry of one mounted image.
type Superblock struct {
	NumBlocks      uint32 // total block count N
	NumInodeBlocks uint32 // NIB
	BlockSize      uint32 // stored, expected to be blockdev.Size
}

// Encode writes sb into a freshly zeroed Size-byte block: magic, then the
// three fields, little-endian, zero-padded to the end.
func Encode(sb Superblock) []byte {
	buf := make([]byte, blockdev.Size)
	copy(buf, Magic[:])
	binary.LittleEndian.PutUint32(buf[16:20], sb.NumBlocks)
	binary.LittleEndian.PutUint32(buf[20:24], sb.NumInodeBlocks)
	binary.LittleEndian.PutUint32(buf[24:28], sb.BlockSize)
	return buf
}

// Decode parses block 0's contents, failing with ssfserr.CorruptImage if
// the magic does not match byte-for-byte.
func Decode(block []byte) (Superblock, error) {
	if len(block) != blockdev.Size {
		return Superblock{}, ssfserr.Newf(ssfserr.BackendError, "superblock block is %d bytes, want %d", len(block), blockdev.Size)
	}
	var magic [MagicSize]byte
	copy(magic[:], block[:MagicSize])
	if magic != Magic {
		return Superblock{}, ssfserr.New(ssfserr.CorruptImage, "magic mismatch")
	}
	return Superblock{
		NumBlocks:      binary.LittleEndian.Uint32(block[16:20]),
		NumInodeBlocks: binary.LittleEndian.Uint32(block[20:24]),
		BlockSize:      binary.LittleEndian.Uint32(block[24:28]),
	}, nil
}
