package vfs

import (
	"testing"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/minixfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDisk struct {
	blocks map[int64][]byte
}

func newMemDisk() *memDisk {
	return &memDisk{blocks: make(map[int64][]byte)}
}

func (d *memDisk) ReadBlock(blkno int64, buf []byte) error {
	if b, ok := d.blocks[blkno]; ok {
		copy(buf, b)
	} else {
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

func (d *memDisk) WriteBlock(blkno int64, buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	d.blocks[blkno] = cp
	return nil
}

func newTable(t *testing.T) *FileTable_t {
	t.Helper()
	disk := newMemDisk()
	require.Equal(t, errs.OK, minixfs.Mkfs(disk, 16384, 128))
	fs, err := minixfs.Mount(disk, 32, 32)
	require.Equal(t, errs.OK, err)
	return NewFileTable(16, fs)
}

func TestCreateOpenWriteReadRoundTrip(t *testing.T) {
	ft := newTable(t)

	h, err := ft.Open("/greeting.txt", OCREAT|ORDWR, 0644, 1)
	require.Equal(t, errs.OK, err)

	n, err := ft.Write(h, []byte("hello vfs"))
	require.Equal(t, errs.OK, err)
	assert.Equal(t, 9, n)

	_, err = ft.Lseek(h, 0, SeekSet)
	require.Equal(t, errs.OK, err)

	buf := make([]byte, 32)
	n, err = ft.Read(h, buf)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, "hello vfs", string(buf[:n]))

	require.Equal(t, errs.OK, ft.Close(h))
}

func TestOpenWithoutCreateMissing(t *testing.T) {
	ft := newTable(t)
	_, err := ft.Open("/missing.txt", ORDONLY, 0, 1)
	assert.Equal(t, errs.ENOENT, err)
}

func TestOpenExclRejectsExisting(t *testing.T) {
	ft := newTable(t)
	h, err := ft.Open("/f", OCREAT|ORDWR, 0644, 1)
	require.Equal(t, errs.OK, err)
	ft.Close(h)

	_, err = ft.Open("/f", OCREAT|OEXCL|ORDWR, 0644, 1)
	assert.Equal(t, errs.EEXIST, err)
}

func TestWriteOnReadOnlyDescriptorRejected(t *testing.T) {
	ft := newTable(t)
	h, _ := ft.Open("/f", OCREAT|ORDONLY, 0644, 1)
	_, err := ft.Write(h, []byte("x"))
	assert.Equal(t, errs.EACCES, err)
}

func TestUnlinkRemovesDirectoryEntry(t *testing.T) {
	ft := newTable(t)
	h, _ := ft.Open("/f", OCREAT|ORDWR, 0644, 1)
	ft.Close(h)

	require.Equal(t, errs.OK, ft.Unlink("/f", 1))
	_, err := ft.Open("/f", ORDONLY, 0, 1)
	assert.Equal(t, errs.ENOENT, err)
}

func TestUnlinkDirectoryRequiresSuperuser(t *testing.T) {
	ft := newTable(t)
	require.Equal(t, errs.OK, ft.Mkdir("/sub", 0755, 1))

	assert.Equal(t, errs.EACCES, ft.Unlink("/sub", 1))
	assert.Equal(t, errs.OK, ft.Unlink("/sub", 0))
}

func TestMkdirAndNestedFile(t *testing.T) {
	ft := newTable(t)
	require.Equal(t, errs.OK, ft.Mkdir("/sub", 0755, 1))

	h, err := ft.Open("/sub/nested.txt", OCREAT|ORDWR, 0644, 1)
	require.Equal(t, errs.OK, err)
	n, err := ft.Write(h, []byte("nested"))
	require.Equal(t, errs.OK, err)
	assert.Equal(t, 6, n)
	require.Equal(t, errs.OK, ft.Close(h))
}

func TestStatReflectsSize(t *testing.T) {
	ft := newTable(t)
	h, _ := ft.Open("/f", OCREAT|ORDWR, 0644, 1)
	ft.Write(h, []byte("0123456789"))

	st, err := ft.Stat(h)
	require.Equal(t, errs.OK, err)
	assert.EqualValues(t, 10, st.Size)
	ft.Close(h)
}

func TestStatOfDiskBlockDevice(t *testing.T) {
	ft := newTable(t)

	st, err := ft.StatPath("/disk")
	require.Equal(t, errs.OK, err)
	assert.Equal(t, 2, st.Ino)
	assert.NotZero(t, st.Mode&minixfs.SIFBLK)
	assert.Equal(t, minixfs.BlockSize, st.Blksize)
	assert.EqualValues(t, 16384*minixfs.BlockSize, st.Size)
}

func TestReadWriteDiskBlockDevice(t *testing.T) {
	ft := newTable(t)

	h, err := ft.Open("/disk", ORDWR, 0, 0)
	require.Equal(t, errs.OK, err)

	payload := make([]byte, minixfs.BlockSize)
	for i := range payload {
		payload[i] = 0x5a
	}
	n, err := ft.Write(h, payload)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, minixfs.BlockSize, n)

	ft.Lseek(h, 0, SeekSet)
	out := make([]byte, minixfs.BlockSize)
	n, err = ft.Read(h, out)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, payload, out)

	require.Equal(t, errs.OK, ft.Close(h))
}

func TestLargeWriteSpansMultipleBlocks(t *testing.T) {
	ft := newTable(t)
	h, _ := ft.Open("/big", OCREAT|ORDWR, 0644, 1)

	payload := make([]byte, minixfs.BlockSize*3+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := ft.Write(h, payload)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, len(payload), n)

	ft.Lseek(h, 0, SeekSet)
	out := make([]byte, len(payload))
	n, err = ft.Read(h, out)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, out)

	ft.Close(h)
}
