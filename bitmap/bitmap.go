// Package bitmap implements the in-memory block allocator: one used/free
// flag per block and first-available allocation, so allocation order is
// deterministic (the behavior the test suite in §8 relies on to detect
// out-of-space deterministically).
package bitmap

import "github.com/tranvaj/ssfs/ssfserr"

// Bitmap tracks which blocks in a [0, numBlocks) range are in use. The
// superblock and every inode block are marked used up front; data blocks
// start at firstData.
type Bitmap struct {
	used      []bool
	firstData uint32
}

// New builds a Bitmap for an image of numBlocks blocks where blocks
// [0, firstData) (the superblock and inode blocks) are reserved.
func New(numBlocks, firstData uint32) *Bitmap {
	b := &Bitmap{used: make([]bool, numBlocks), firstData: firstData}
	for i := uint32(0); i < firstData && i < numBlocks; i++ {
		b.used[i] = true
	}
	return b
}

// Allocate returns the smallest free index >= firstData, marks it used,
// and returns it. Between frees, successive calls return strictly
// ascending indices; once an index is freed, it is handed out again
// before any higher free index — this is the "first-available" policy
// §4.3 calls out as testable.
func (b *Bitmap) Allocate() (uint32, error) {
	for i := b.firstData; i < uint32(len(b.used)); i++ {
		if !b.used[i] {
			b.used[i] = true
			return i, nil
		}
	}
	return 0, ssfserr.New(ssfserr.OutOfSpace, "no free data block")
}

// Free clears index, unless it is the sentinel 0 or outside the
// [firstData, numBlocks) data range, both of which are silently ignored.
func (b *Bitmap) Free(index uint32) {
	if index == 0 || index < b.firstData || index >= uint32(len(b.used)) {
		return
	}
	b.used[index] = false
}

// Reserve marks index used without searching, for reconstructing the
// bitmap from an existing inode tree at mount time.
func (b *Bitmap) Reserve(index uint32) {
	if index < uint32(len(b.used)) {
		b.used[index] = true
	}
}

// InUse reports whether index is currently marked used.
func (b *Bitmap) InUse(index uint32) bool {
	return index < uint32(len(b.used)) && b.used[index]
}

// Len is the total number of blocks this Bitmap was sized for.
func (b *Bitmap) Len() uint32 { return uint32(len(b.used)) }

// Snapshot returns a copy of the used/free state, for tests that verify
// bitmap conservation across unmount/remount cycles.
func (b *Bitmap) Snapshot() []bool {
	out := make([]bool, len(b.used))
	copy(out, b.used)
	return out
}
