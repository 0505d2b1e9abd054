// Package blockdev implements the storage backend contract SSFS consumes:
// fixed-size block read/write/sync/close over an image. It is the one
// external collaborator the core depends on (see the storage backend
// contract); FileDevice is a thin, file-backed implementation of it, and
// MemDevice is an in-memory stand-in used by tests.
package blockdev

import (
	"io"
	"os"

	"github.com/tranvaj/ssfs/ssfserr"
)

// Size is the fixed block size SSFS operates on. Nothing in this package
// or its callers supports any other value.
const Size = 1024

// Device is the contract the core addresses blocks through: opening is
// handled outside the interface (by the constructors below), leaving the
// block operations, Close, and the size query.
type Device interface {
	// ReadBlock fills buf (len(buf) must be Size) with the contents of
	// block index.
	ReadBlock(index uint32, buf []byte) error

	// WriteBlock persists buf (len(buf) must be Size) as block index.
	WriteBlock(index uint32, buf []byte) error

	// Sync flushes any buffered writes to durable media.
	Sync() error

	// Close releases the underlying resource. Device is unusable after
	// Close returns.
	Close() error

	// BlockCount reports the total number of Size-byte blocks backing
	// this device.
	BlockCount() uint32
}

func checkBuf(buf []byte) error {
	if len(buf) != Size {
		return ssfserr.Newf(ssfserr.BackendError, "buffer is %d bytes, want %d", len(buf), Size)
	}
	return nil
}

// FileDevice is a Device backed by a plain os.File, one block per Size
// bytes starting at offset 0.
type FileDevice struct {
	f      *os.File
	blocks uint32
}

var _ Device = (*FileDevice)(nil)

// OpenFile opens path for read/write, creating it if absent, and reports
// the block count implied by its current size (size / Size, truncated
// down). It never resizes the file — see DESIGN.md's Open Question #1:
// sizing the image for a new filesystem is an external-collaborator
// responsibility, not the core's.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, ssfserr.Wrap(ssfserr.BackendError, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ssfserr.Wrap(ssfserr.BackendError, err)
	}
	return &FileDevice{f: f, blocks: uint32(info.Size() / Size)}, nil
}

// CreateSized truncates (creating if absent) the file at path to exactly
// numBlocks blocks. It is a fixture/test helper, not part of the core
// contract — nothing in cmd/ssfsctl calls it, since the CLI's format
// command takes no size argument (see §6.3).
func CreateSized(path string, numBlocks uint32) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return ssfserr.Wrap(ssfserr.BackendError, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(numBlocks) * Size); err != nil {
		return ssfserr.Wrap(ssfserr.BackendError, err)
	}
	return nil
}

func (d *FileDevice) ReadBlock(index uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf, int64(index)*Size)
	if err != nil && err != io.EOF {
		return ssfserr.Wrap(ssfserr.BackendError, err)
	}
	return nil
}

func (d *FileDevice) WriteBlock(index uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(buf, int64(index)*Size); err != nil {
		return ssfserr.Wrap(ssfserr.BackendError, err)
	}
	if index >= d.blocks {
		d.blocks = index + 1
	}
	return nil
}

func (d *FileDevice) Sync() error {
	if err := d.f.Sync(); err != nil {
		return ssfserr.Wrap(ssfserr.BackendError, err)
	}
	return nil
}

func (d *FileDevice) Close() error {
	if err := d.f.Close(); err != nil {
		return ssfserr.Wrap(ssfserr.BackendError, err)
	}
	return nil
}

func (d *FileDevice) BlockCount() uint32 { return d.blocks }

// MemDevice is a Device backed by a byte slice, for tests that want to
// exercise the engine without touching disk.
type MemDevice struct {
	blocks [][Size]byte
	closed bool
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice returns a zero-filled in-memory device of numBlocks blocks.
func NewMemDevice(numBlocks uint32) *MemDevice {
	return &MemDevice{blocks: make([][Size]byte, numBlocks)}
}

func (d *MemDevice) ReadBlock(index uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if d.closed {
		return ssfserr.New(ssfserr.BackendError, "device closed")
	}
	if index >= uint32(len(d.blocks)) {
		return ssfserr.Newf(ssfserr.BackendError, "read out of range: block %d", index)
	}
	copy(buf, d.blocks[index][:])
	return nil
}

func (d *MemDevice) WriteBlock(index uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}
	if d.closed {
		return ssfserr.New(ssfserr.BackendError, "device closed")
	}
	if index >= uint32(len(d.blocks)) {
		return ssfserr.Newf(ssfserr.BackendError, "write out of range: block %d", index)
	}
	copy(d.blocks[index][:], buf)
	return nil
}

func (d *MemDevice) Sync() error { return nil }

func (d *MemDevice) Close() error {
	d.closed = true
	return nil
}

func (d *MemDevice) BlockCount() uint32 { return uint32(len(d.blocks)) }
