// Package inode encodes and decodes the dense, 32-byte-packed inode
// records SSFS stores in the blocks following the superblock, and locates
// a given inode number within those blocks.
package inode

import (
	"encoding/binary"

	"github.com/tranvaj/ssfs/blockdev"
	"github.com/tranvaj/ssfs/ssfserr"
)

// Size is the on-disk size of one packed inode record.
const Size = 32

// PerBlock is how many inodes fit in one Size-byte block.
const PerBlock = blockdev.Size / Size

// NumDirect is the number of direct block pointers an inode carries.
const NumDirect = 4

// Inode is the in-memory form of one inode record.
type Inode struct {
	Valid          bool
	FileSize       uint32
	Direct         [NumDirect]uint32
	Indirect       uint32
	DoubleIndirect uint32
}

// Encode packs ino into a Size-byte record, little-endian, zero-padded to
// the end.
func Encode(ino Inode) []byte {
	buf := make([]byte, Size)
	if ino.Valid {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], ino.FileSize)
	off := 5
	for _, d := range ino.Direct {
		binary.LittleEndian.PutUint32(buf[off:off+4], d)
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], ino.Indirect)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], ino.DoubleIndirect)
	return buf
}

// Decode unpacks a Size-byte record.
func Decode(record []byte) (Inode, error) {
	if len(record) != Size {
		return Inode{}, ssfserr.Newf(ssfserr.BackendError, "inode record is %d bytes, want %d", len(record), Size)
	}
	var ino Inode
	ino.Valid = record[0] != 0
	ino.FileSize = binary.LittleEndian.Uint32(record[1:5])
	off := 5
	for i := range ino.Direct {
		ino.Direct[i] = binary.LittleEndian.Uint32(record[off : off+4])
		off += 4
	}
	ino.Indirect = binary.LittleEndian.Uint32(record[off : off+4])
	off += 4
	ino.DoubleIndirect = binary.LittleEndian.Uint32(record[off : off+4])
	return ino, nil
}

// Locate returns the block index (relative to the whole image, i.e.
// already offset past the superblock) and the byte offset within that
// block where inode number i lives. numInodeBlocks is the superblock's
// NumInodeBlocks (NIB).
func Locate(i int, numInodeBlocks uint32) (blockIndex uint32, byteOffset int, err error) {
	if i < 0 || uint32(i) >= numInodeBlocks*PerBlock {
		return 0, 0, ssfserr.Newf(ssfserr.InvalidInode, "inode %d out of range", i)
	}
	blockIndex = 1 + uint32(i)/PerBlock
	byteOffset = (i % PerBlock) * Size
	return blockIndex, byteOffset, nil
}

// Codec reads and writes individual inodes through a blockdev.Device,
// given the image's inode-block count.
type Codec struct {
	Device         blockdev.Device
	NumInodeBlocks uint32
}

// Read loads inode number i.
func (c Codec) Read(i int) (Inode, error) {
	blockIndex, byteOffset, err := Locate(i, c.NumInodeBlocks)
	if err != nil {
		return Inode{}, err
	}
	block := make([]byte, blockdev.Size)
	if err := c.Device.ReadBlock(blockIndex, block); err != nil {
		return Inode{}, err
	}
	return Decode(block[byteOffset : byteOffset+Size])
}

// Write stores ino as inode number i, read-modify-write so the other 31
// inodes sharing the block are preserved.
func (c Codec) Write(i int, ino Inode) error {
	blockIndex, byteOffset, err := Locate(i, c.NumInodeBlocks)
	if err != nil {
		return err
	}
	block := make([]byte, blockdev.Size)
	if err := c.Device.ReadBlock(blockIndex, block); err != nil {
		return err
	}
	copy(block[byteOffset:byteOffset+Size], Encode(ino))
	return c.Device.WriteBlock(blockIndex, block)
}
