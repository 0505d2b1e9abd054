// Package volume implements the filesystem's lifecycle: format, mount, and
// unmount, and the Unmounted/Mounted state machine every other operation
// is gated on.
package volume

import (
	"encoding/binary"

	"github.com/tranvaj/ssfs/bitmap"
	"github.com/tranvaj/ssfs/blockdev"
	"github.com/tranvaj/ssfs/fsfile"
	"github.com/tranvaj/ssfs/inode"
	"github.com/tranvaj/ssfs/offset"
	"github.com/tranvaj/ssfs/ssfserr"
	"github.com/tranvaj/ssfs/superblock"
)

// Volume bundles the mounted state: the backend handle, the geometry read
// from the superblock, the reconstructed bitmap, and the engine that
// serves file operations. The zero value is Unmounted.
type Volume struct {
	device blockdev.Device
	sb     superblock.Superblock
	bm     *bitmap.Bitmap
	engine *fsfile.Engine
	path   string
}

// Mounted reports whether this Volume currently has an image mounted.
func (v *Volume) Mounted() bool { return v.device != nil }

// Format lays out a fresh filesystem on image: coerces numInodes to at
// least 1, computes NIB = ceil(numInodes/32), writes the superblock and
// NIB zeroed inode blocks, and syncs. It does not resize the image file —
// the caller is responsible for the backing file already being large
// enough (see DESIGN.md's Open Question #1). Requires the Volume not
// already mounted, mirroring the disk_mounted gate in the original
// format().
func (v *Volume) Format(image string, numInodes int) error {
	if v.Mounted() {
		return ssfserr.New(ssfserr.DiskAlreadyMounted, "volume already mounted")
	}
	if numInodes < 1 {
		numInodes = 1
	}
	nib := uint32((numInodes + inode.PerBlock - 1) / inode.PerBlock)

	dev, err := blockdev.OpenFile(image)
	if err != nil {
		return err
	}
	defer dev.Close()

	n := dev.BlockCount()
	if n <= nib+1 {
		return ssfserr.Newf(ssfserr.OutOfSpace, "image has %d blocks, need more than %d for %d inode blocks", n, nib+1, nib)
	}

	sb := superblock.Superblock{
		NumBlocks:      n,
		NumInodeBlocks: nib,
		BlockSize:      blockdev.Size,
	}
	if err := dev.WriteBlock(0, superblock.Encode(sb)); err != nil {
		return err
	}

	zero := make([]byte, blockdev.Size)
	for b := uint32(1); b <= nib; b++ {
		if err := dev.WriteBlock(b, zero); err != nil {
			return err
		}
	}

	return dev.Sync()
}

// Mount opens image, verifies its magic, and reconstructs the in-memory
// bitmap by scanning every inode and walking its pointer tree. Requires
// the Volume not already mounted.
func (v *Volume) Mount(image string) error {
	if v.Mounted() {
		return ssfserr.New(ssfserr.DiskAlreadyMounted, "volume already mounted")
	}

	dev, err := blockdev.OpenFile(image)
	if err != nil {
		return err
	}

	block := make([]byte, blockdev.Size)
	if err := dev.ReadBlock(0, block); err != nil {
		dev.Close()
		return err
	}
	sb, err := superblock.Decode(block)
	if err != nil {
		dev.Close()
		return err
	}
	if sb.BlockSize != blockdev.Size {
		dev.Close()
		return ssfserr.Newf(ssfserr.CorruptImage, "block size %d unsupported", sb.BlockSize)
	}

	bm := bitmap.New(sb.NumBlocks, 1+sb.NumInodeBlocks)
	codec := inode.Codec{Device: dev, NumInodeBlocks: sb.NumInodeBlocks}

	numInodes := int(sb.NumInodeBlocks) * inode.PerBlock
	for i := 0; i < numInodes; i++ {
		ino, err := codec.Read(i)
		if err != nil {
			dev.Close()
			return err
		}
		if !ino.Valid {
			continue
		}
		for _, d := range ino.Direct {
			reserveIfSet(bm, d)
		}
		if ino.Indirect != 0 {
			if err := reserveIndirectTree(dev, bm, ino.Indirect); err != nil {
				dev.Close()
				return err
			}
		}
		if ino.DoubleIndirect != 0 {
			reserveIfSet(bm, ino.DoubleIndirect)
			dtable, err := readTable(dev, ino.DoubleIndirect)
			if err != nil {
				dev.Close()
				return err
			}
			for _, entry := range dtable {
				if entry == 0 {
					continue
				}
				if err := reserveIndirectTree(dev, bm, entry); err != nil {
					dev.Close()
					return err
				}
			}
		}
	}

	v.device = dev
	v.sb = sb
	v.bm = bm
	v.path = image
	v.engine = &fsfile.Engine{
		Codec:  codec,
		Mapper: &offset.Mapper{Device: dev, Bitmap: bm},
	}
	return nil
}

func reserveIfSet(bm *bitmap.Bitmap, index uint32) {
	if index != 0 {
		bm.Reserve(index)
	}
}

func reserveIndirectTree(dev blockdev.Device, bm *bitmap.Bitmap, indirectBlock uint32) error {
	bm.Reserve(indirectBlock)
	table, err := readTable(dev, indirectBlock)
	if err != nil {
		return err
	}
	for _, leaf := range table {
		reserveIfSet(bm, leaf)
	}
	return nil
}

func readTable(dev blockdev.Device, blockIndex uint32) ([offset.PointersPerBlock]uint32, error) {
	var table [offset.PointersPerBlock]uint32
	buf := make([]byte, blockdev.Size)
	if err := dev.ReadBlock(blockIndex, buf); err != nil {
		return table, err
	}
	for i := range table {
		table[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return table, nil
}

// Unmount syncs the backend, releases the in-memory state, and closes the
// backend. Teardown happens even if Sync fails; the sync error, if any, is
// still returned. Requires the Volume currently mounted.
func (v *Volume) Unmount() error {
	if !v.Mounted() {
		return ssfserr.New(ssfserr.DiskNotMounted, "volume not mounted")
	}
	syncErr := v.device.Sync()
	closeErr := v.device.Close()

	v.device = nil
	v.bm = nil
	v.engine = nil
	v.path = ""

	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// Engine returns the file-operation engine for the currently mounted
// volume, failing with DiskNotMounted if nothing is mounted.
func (v *Volume) Engine() (*fsfile.Engine, error) {
	if !v.Mounted() {
		return nil, ssfserr.New(ssfserr.DiskNotMounted, "volume not mounted")
	}
	return v.engine, nil
}

// NumInodes reports the addressable inode count of the mounted image.
func (v *Volume) NumInodes() (int, error) {
	if !v.Mounted() {
		return 0, ssfserr.New(ssfserr.DiskNotMounted, "volume not mounted")
	}
	return int(v.sb.NumInodeBlocks) * inode.PerBlock, nil
}
