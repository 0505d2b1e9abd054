// Package offset implements the OffsetMapper: translating a file-relative
// byte offset into a physical block index, walking (and, when asked,
// growing) the inode's direct / single-indirect / double-indirect pointer
// tree.
package offset

import (
	"encoding/binary"

	"github.com/tranvaj/ssfs/bitmap"
	"github.com/tranvaj/ssfs/blockdev"
	"github.com/tranvaj/ssfs/inode"
	"github.com/tranvaj/ssfs/ssfserr"
)

// PointersPerBlock is how many 32-bit indices fit in one indirect or
// double-indirect table.
const PointersPerBlock = blockdev.Size / 4

// MaxBlockIndex is the highest valid bi (file-relative block number): 4
// direct + 256 single-indirect + 256*256 double-indirect, minus one.
const MaxBlockIndex = inode.NumDirect + PointersPerBlock + PointersPerBlock*PointersPerBlock - 1

// Mapper resolves offsets against a single mounted image's device and
// allocator.
type Mapper struct {
	Device blockdev.Device
	Bitmap *bitmap.Bitmap
}

// Map resolves the block that contains byte offset within ino. When
// allocate is false, an unmapped region returns block 0 (a hole) rather
// than an error. When allocate is true, intermediate indirect blocks and
// the final data block are allocated and zero-filled as needed, and ino's
// pointer fields are updated in place — the caller is responsible for
// persisting ino afterward. The second return reports whether the
// returned block was allocated (and therefore zero-filled) during this
// very call, so a caller about to overwrite part of it can skip reading
// back content it knows is zero.
//
// On any failure, every block this call allocated is returned to bm
// (logical rollback of the bitmap); ino's in-memory pointer fields are
// not reverted, matching the accepted-risk note in §7/§9: a slot already
// committed to disk from an earlier, successful step in this same call is
// left as-is.
func (m *Mapper) Map(ino *inode.Inode, offsetInBlock int64, allocate bool) (uint32, bool, error) {
	if offsetInBlock < 0 {
		return 0, false, ssfserr.New(ssfserr.InvalidOffset, "negative offset")
	}

	bi := offsetInBlock / blockdev.Size
	if bi > MaxBlockIndex {
		return 0, false, ssfserr.Newf(ssfserr.InvalidOffset, "block index %d exceeds addressable range", bi)
	}

	var reserved []uint32
	block, fresh, err := m.resolve(ino, uint32(bi), allocate, &reserved)
	if err != nil {
		for _, idx := range reserved {
			m.Bitmap.Free(idx)
		}
		return 0, false, err
	}
	return block, fresh, nil
}

func (m *Mapper) resolve(ino *inode.Inode, bi uint32, allocate bool, reserved *[]uint32) (uint32, bool, error) {
	if bi < inode.NumDirect {
		return m.resolveDirect(ino, bi, allocate, reserved)
	}
	bi -= inode.NumDirect

	if bi < PointersPerBlock {
		return m.resolveIndirect(&ino.Indirect, bi, allocate, reserved)
	}
	bi -= PointersPerBlock

	j := bi / PointersPerBlock
	k := bi % PointersPerBlock
	return m.resolveDoubleIndirect(ino, j, k, allocate, reserved)
}

func (m *Mapper) resolveDirect(ino *inode.Inode, bi uint32, allocate bool, reserved *[]uint32) (uint32, bool, error) {
	if ino.Direct[bi] != 0 {
		return ino.Direct[bi], false, nil
	}
	if !allocate {
		return 0, false, nil
	}
	idx, err := m.allocateZeroed(reserved)
	if err != nil {
		return 0, false, err
	}
	ino.Direct[bi] = idx
	return idx, true, nil
}

// resolveIndirect resolves slot bi (0..PointersPerBlock-1) within the
// single-indirect table pointed to by *indirectPtr, allocating the table
// itself and/or the leaf data block as needed.
func (m *Mapper) resolveIndirect(indirectPtr *uint32, bi uint32, allocate bool, reserved *[]uint32) (uint32, bool, error) {
	if *indirectPtr == 0 {
		if !allocate {
			return 0, false, nil
		}
		idx, err := m.allocateZeroed(reserved)
		if err != nil {
			return 0, false, err
		}
		*indirectPtr = idx
	}

	table, err := m.readTable(*indirectPtr)
	if err != nil {
		return 0, false, err
	}

	if table[bi] != 0 {
		return table[bi], false, nil
	}
	if !allocate {
		return 0, false, nil
	}

	idx, err := m.allocateZeroed(reserved)
	if err != nil {
		return 0, false, err
	}
	table[bi] = idx
	if err := m.writeTable(*indirectPtr, table); err != nil {
		return 0, false, err
	}
	return idx, true, nil
}

func (m *Mapper) resolveDoubleIndirect(ino *inode.Inode, j, k uint32, allocate bool, reserved *[]uint32) (uint32, bool, error) {
	if ino.DoubleIndirect == 0 {
		if !allocate {
			return 0, false, nil
		}
		idx, err := m.allocateZeroed(reserved)
		if err != nil {
			return 0, false, err
		}
		ino.DoubleIndirect = idx
	}

	dtable, err := m.readTable(ino.DoubleIndirect)
	if err != nil {
		return 0, false, err
	}

	if dtable[j] == 0 && !allocate {
		return 0, false, nil
	}

	indirectIdx := dtable[j]
	if indirectIdx == 0 {
		idx, err := m.allocateZeroed(reserved)
		if err != nil {
			return 0, false, err
		}
		indirectIdx = idx
		dtable[j] = idx
		if err := m.writeTable(ino.DoubleIndirect, dtable); err != nil {
			return 0, false, err
		}
	}

	return m.resolveIndirect(&indirectIdx, k, allocate, reserved)
}

func (m *Mapper) allocateZeroed(reserved *[]uint32) (uint32, error) {
	idx, err := m.Bitmap.Allocate()
	if err != nil {
		return 0, err
	}
	*reserved = append(*reserved, idx)

	zero := make([]byte, blockdev.Size)
	if err := m.Device.WriteBlock(idx, zero); err != nil {
		return 0, err
	}
	return idx, nil
}

func (m *Mapper) readTable(blockIndex uint32) ([PointersPerBlock]uint32, error) {
	var table [PointersPerBlock]uint32
	buf := make([]byte, blockdev.Size)
	if err := m.Device.ReadBlock(blockIndex, buf); err != nil {
		return table, err
	}
	for i := range table {
		table[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return table, nil
}

func (m *Mapper) writeTable(blockIndex uint32, table [PointersPerBlock]uint32) error {
	buf := make([]byte, blockdev.Size)
	for i, v := range table {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return m.Device.WriteBlock(blockIndex, buf)
}
