// Package fsfile implements the file-level operations — stat, read, write,
// delete — layered on top of an inode codec, an offset mapper, and the
// allocator they share. It owns none of that state; it is handed a Codec
// and a Mapper already bound to a mounted image's device and bitmap.
package fsfile

import (
	"encoding/binary"

	"github.com/tranvaj/ssfs/blockdev"
	"github.com/tranvaj/ssfs/inode"
	"github.com/tranvaj/ssfs/offset"
	"github.com/tranvaj/ssfs/ssfserr"
)

// Engine implements stat/read/write/delete over a single mounted image.
type Engine struct {
	Codec  inode.Codec
	Mapper *offset.Mapper
}

func (e *Engine) loadValid(i int) (inode.Inode, error) {
	ino, err := e.Codec.Read(i)
	if err != nil {
		return inode.Inode{}, err
	}
	if !ino.Valid {
		return inode.Inode{}, ssfserr.Newf(ssfserr.InvalidInode, "inode %d is not allocated", i)
	}
	return ino, nil
}

// Stat returns the byte size of inode i.
func (e *Engine) Stat(i int) (uint32, error) {
	ino, err := e.loadValid(i)
	if err != nil {
		return 0, err
	}
	return ino.FileSize, nil
}

// Create allocates the first free (valid=0) inode slot, in numerical
// order, marks it valid with size 0, and returns its number.
func (e *Engine) Create(numInodes int) (int, error) {
	for i := 0; i < numInodes; i++ {
		ino, err := e.Codec.Read(i)
		if err != nil {
			return 0, err
		}
		if !ino.Valid {
			ino = inode.Inode{Valid: true}
			if err := e.Codec.Write(i, ino); err != nil {
				return 0, err
			}
			return i, nil
		}
	}
	return 0, ssfserr.New(ssfserr.OutOfInodes, "no free inode slot")
}

// Read copies up to length bytes of inode i's content starting at offset
// into buf (which must be at least length bytes), returning the number of
// bytes actually copied. Reads past the end of the file, or through an
// unmapped hole, yield zero bytes rather than an error.
func (e *Engine) Read(i int, buf []byte, length int, offset_ int64) (int, error) {
	if offset_ < 0 || length < 0 {
		return 0, ssfserr.New(ssfserr.InvalidOffset, "negative offset or length")
	}
	ino, err := e.loadValid(i)
	if err != nil {
		return 0, err
	}

	remaining := int64(ino.FileSize) - offset_
	if remaining < 0 {
		remaining = 0
	}
	effective := int64(length)
	if remaining < effective {
		effective = remaining
	}
	if effective <= 0 {
		return 0, nil
	}

	var transferred int
	pos := offset_
	left := effective
	for left > 0 {
		blockOff := pos % blockdev.Size
		chunk := blockdev.Size - blockOff
		if chunk > left {
			chunk = left
		}

		blk, _, err := e.Mapper.Map(&ino, pos, false)
		if err != nil {
			if transferred > 0 {
				return transferred, nil
			}
			return 0, err
		}

		dst := buf[transferred : transferred+int(chunk)]
		if blk == 0 {
			for j := range dst {
				dst[j] = 0
			}
		} else {
			block := make([]byte, blockdev.Size)
			if err := e.Mapper.Device.ReadBlock(blk, block); err != nil {
				if transferred > 0 {
					return transferred, nil
				}
				return 0, err
			}
			copy(dst, block[blockOff:blockOff+chunk])
		}

		transferred += int(chunk)
		pos += chunk
		left -= chunk
	}
	return transferred, nil
}

// Write stores up to length bytes of data starting at offset within inode
// i, zero-filling any gap if offset lies beyond the current size, and
// growing size as needed. It never shrinks size. On partial failure the
// inode is written back reflecting whatever was actually persisted and the
// short count is returned without an error; if nothing was persisted the
// underlying error is returned.
func (e *Engine) Write(i int, data []byte, length int, offset_ int64) (int, error) {
	if offset_ < 0 || length < 0 {
		return 0, ssfserr.New(ssfserr.InvalidOffset, "negative offset or length")
	}
	ino, err := e.loadValid(i)
	if err != nil {
		return 0, err
	}
	if length > len(data) {
		length = len(data)
	}

	size := int64(ino.FileSize)
	if offset_ > size {
		reached, err := e.zeroFill(&ino, size, offset_)
		if reached > int64(ino.FileSize) {
			ino.FileSize = uint32(reached)
		}
		if err != nil {
			if werr := e.Codec.Write(i, ino); werr != nil {
				return 0, werr
			}
			return 0, err
		}
		ino.FileSize = uint32(offset_)
	}

	written, werr := e.writeData(&ino, data[:length], offset_)
	if newSize := offset_ + int64(written); newSize > int64(ino.FileSize) {
		ino.FileSize = uint32(newSize)
	}
	if werr2 := e.Codec.Write(i, ino); werr2 != nil {
		return written, werr2
	}
	if werr != nil {
		if written > 0 {
			return written, nil
		}
		return 0, werr
	}
	return written, nil
}

// zeroFill ensures every block in [from, to) is allocated and reads as
// zero, returning how far it got before any failure.
func (e *Engine) zeroFill(ino *inode.Inode, from, to int64) (int64, error) {
	pos := from
	for pos < to {
		blockOff := pos % blockdev.Size
		chunk := blockdev.Size - blockOff
		if rest := to - pos; chunk > rest {
			chunk = rest
		}

		blk, _, err := e.Mapper.Map(ino, pos, true)
		if err != nil {
			return pos, err
		}

		if blockOff != 0 || chunk != blockdev.Size {
			block := make([]byte, blockdev.Size)
			if err := e.Mapper.Device.ReadBlock(blk, block); err != nil {
				return pos, err
			}
			for j := blockOff; j < blockOff+chunk; j++ {
				block[j] = 0
			}
			if err := e.Mapper.Device.WriteBlock(blk, block); err != nil {
				return pos, err
			}
		}

		pos += chunk
	}
	return to, nil
}

// writeData persists data starting at offset within ino, performing a
// read-modify-write for any block the write only partially covers.
func (e *Engine) writeData(ino *inode.Inode, data []byte, offset_ int64) (int, error) {
	var written int
	pos := offset_
	left := len(data)
	for left > 0 {
		blockOff := pos % blockdev.Size
		chunk := blockdev.Size - blockOff
		if int64(chunk) > int64(left) {
			chunk = int64(left)
		}

		blk, fresh, err := e.Mapper.Map(ino, pos, true)
		if err != nil {
			return written, err
		}

		src := data[written : written+int(chunk)]
		block := make([]byte, blockdev.Size)
		partial := blockOff != 0 || chunk != blockdev.Size
		if partial && !fresh {
			// a freshly allocated block is already zero-filled on disk;
			// reading it back would just return what block already is.
			if err := e.Mapper.Device.ReadBlock(blk, block); err != nil {
				return written, err
			}
		}
		copy(block[blockOff:blockOff+chunk], src)
		if err := e.Mapper.Device.WriteBlock(blk, block); err != nil {
			return written, err
		}

		written += int(chunk)
		pos += chunk
		left -= int(chunk)
	}
	return written, nil
}

// Delete releases every block reachable from inode i's pointer tree back
// to the allocator, then clears the inode.
func (e *Engine) Delete(i int) error {
	ino, err := e.loadValid(i)
	if err != nil {
		return err
	}

	for _, d := range ino.Direct {
		e.Mapper.Bitmap.Free(d)
	}

	if ino.Indirect != 0 {
		if err := e.freeIndirectTable(ino.Indirect); err != nil {
			return err
		}
	}

	if ino.DoubleIndirect != 0 {
		dtable, err := e.readTable(ino.DoubleIndirect)
		if err != nil {
			return err
		}
		for _, entry := range dtable {
			if entry == 0 {
				continue
			}
			if err := e.freeIndirectTable(entry); err != nil {
				return err
			}
		}
		e.Mapper.Bitmap.Free(ino.DoubleIndirect)
	}

	return e.Codec.Write(i, inode.Inode{})
}

func (e *Engine) freeIndirectTable(blockIndex uint32) error {
	table, err := e.readTable(blockIndex)
	if err != nil {
		return err
	}
	for _, leaf := range table {
		e.Mapper.Bitmap.Free(leaf)
	}
	e.Mapper.Bitmap.Free(blockIndex)
	return nil
}

func (e *Engine) readTable(blockIndex uint32) ([offset.PointersPerBlock]uint32, error) {
	var table [offset.PointersPerBlock]uint32
	buf := make([]byte, blockdev.Size)
	if err := e.Mapper.Device.ReadBlock(blockIndex, buf); err != nil {
		return table, err
	}
	for i := range table {
		table[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return table, nil
}
