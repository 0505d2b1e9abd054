package volume

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tranvaj/ssfs/blockdev"
	"github.com/tranvaj/ssfs/ssfserr"
)

func tempImage(t *testing.T, numBlocks uint32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.ssfs")
	require.NoError(t, blockdev.CreateSized(path, numBlocks))
	return path
}

func TestFormatThenMount(t *testing.T) {
	path := tempImage(t, 10)
	var v Volume
	require.NoError(t, v.Format(path, 2))
	require.NoError(t, v.Mount(path))
	require.True(t, v.Mounted())

	n, err := v.NumInodes()
	require.NoError(t, err)
	require.Equal(t, 32, n, "one inode block holds 32 inode slots")

	require.NoError(t, v.Unmount())
	require.False(t, v.Mounted())
}

func TestMountRejectsBadMagic(t *testing.T) {
	path := tempImage(t, 10)
	// never formatted: block 0 is all zeros, no magic
	var v Volume
	err := v.Mount(path)
	require.Error(t, err)
	code, ok := ssfserr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, ssfserr.CorruptImage, code)
}

func TestFormatRejectsTooSmallImage(t *testing.T) {
	path := tempImage(t, 2)
	var v Volume
	err := v.Format(path, 64) // NIB=2, needs > 3 blocks, image only has 2
	require.Error(t, err)
	code, ok := ssfserr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, ssfserr.OutOfSpace, code)
}

func TestDoubleMountFails(t *testing.T) {
	path := tempImage(t, 10)
	var v Volume
	require.NoError(t, v.Format(path, 2))
	require.NoError(t, v.Mount(path))
	defer v.Unmount()

	err := v.Mount(path)
	require.Error(t, err)
	require.True(t, ssfserr.Is(err, ssfserr.DiskAlreadyMounted))
}

func TestFormatRejectsWhenMounted(t *testing.T) {
	path := tempImage(t, 10)
	var v Volume
	require.NoError(t, v.Format(path, 2))
	require.NoError(t, v.Mount(path))
	defer v.Unmount()

	other := tempImage(t, 10)
	err := v.Format(other, 2)
	require.Error(t, err)
	require.True(t, ssfserr.Is(err, ssfserr.DiskAlreadyMounted))
}

func TestUnmountWithoutMountFails(t *testing.T) {
	var v Volume
	err := v.Unmount()
	require.True(t, ssfserr.Is(err, ssfserr.DiskNotMounted))
}

func TestEngineRequiresMount(t *testing.T) {
	var v Volume
	_, err := v.Engine()
	require.True(t, ssfserr.Is(err, ssfserr.DiskNotMounted))
}

func TestPersistenceAcrossRemount(t *testing.T) {
	path := tempImage(t, 200)
	var v Volume
	require.NoError(t, v.Format(path, 10))
	require.NoError(t, v.Mount(path))

	eng, err := v.Engine()
	require.NoError(t, err)
	i, err := eng.Create(32 * 10)
	require.NoError(t, err)

	msg := []byte("persisted across remount")
	_, err = eng.Write(i, msg, len(msg), 0)
	require.NoError(t, err)

	require.NoError(t, v.Unmount())

	require.NoError(t, v.Mount(path))
	eng2, err := v.Engine()
	require.NoError(t, err)

	size, err := eng2.Stat(i)
	require.NoError(t, err)
	require.Equal(t, uint32(len(msg)), size)

	buf := make([]byte, len(msg))
	n, err := eng2.Read(i, buf, len(msg), 0)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	require.Equal(t, msg, buf)

	require.NoError(t, v.Unmount())
}

func TestBitmapConservationAcrossRemount(t *testing.T) {
	path := tempImage(t, 400)
	var v Volume
	require.NoError(t, v.Format(path, 10))
	require.NoError(t, v.Mount(path))
	eng, err := v.Engine()
	require.NoError(t, err)

	i, err := eng.Create(32 * 10)
	require.NoError(t, err)
	data := make([]byte, 5*blockdev.Size)
	_, err = eng.Write(i, data, len(data), 0)
	require.NoError(t, err)

	before := v.bm.Snapshot()
	require.NoError(t, v.Unmount())

	require.NoError(t, v.Mount(path))
	after := v.bm.Snapshot()
	require.Equal(t, before, after)
	require.NoError(t, v.Unmount())
}
