package minixfs

import (
	"testing"

	"github.com/nanvix/multikernel-sub000/internal/errs"
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

func mkfsAndMount(t *testing.T, diskBlocks, ninodes int) *FileSystem_t {
	t.Helper()
	disk := newMemDisk()
	require.Equal(t, errs.OK, Mkfs(disk, diskBlocks, ninodes))
	fs, err := Mount(disk, 16, 16)
	require.Equal(t, errs.OK, err)
	return fs
}

func TestMkfsProducesValidSuperblock(t *testing.T) {
	disk := newMemDisk()
	require.Equal(t, errs.OK, Mkfs(disk, 4096, 64))

	buf := make([]byte, BlockSize)
	require.NoError(t, disk.ReadBlock(SuperblockZone, buf))
	sb, err := DecodeSuperblock(buf)
	require.Equal(t, errs.OK, err)
	assert.EqualValues(t, Magic, sb.Magic)
	assert.EqualValues(t, 64, sb.Ninodes)
}

func TestRootDirectoryHasDotEntries(t *testing.T) {
	fs := mkfsAndMount(t, 4096, 64)
	defer fs.Unmount()

	ino, err := fs.DirentSearch(fs.Root(), ".")
	require.Equal(t, errs.OK, err)
	assert.Equal(t, RootInodeNum, ino)

	ino, err = fs.DirentSearch(fs.Root(), "..")
	require.Equal(t, errs.OK, err)
	assert.Equal(t, RootInodeNum, ino)
}

func TestCreateFileAndLookup(t *testing.T) {
	fs := mkfsAndMount(t, 4096, 64)
	defer fs.Unmount()

	file, err := fs.Inodes.Alloc(SIFREG | 0644)
	require.Equal(t, errs.OK, err)
	file.Disk.Nlinks = 1
	fs.Inodes.Touch(file)

	require.Equal(t, errs.OK, fs.DirentAdd(fs.Root(), "hello.txt", file.Num))

	ino, err := fs.DirentSearch(fs.Root(), "hello.txt")
	require.Equal(t, errs.OK, err)
	assert.Equal(t, file.Num, ino)

	require.Equal(t, errs.OK, fs.Inodes.Put(file))
}

func TestDirentAddRejectsDuplicateName(t *testing.T) {
	fs := mkfsAndMount(t, 4096, 64)
	defer fs.Unmount()

	f1, _ := fs.Inodes.Alloc(SIFREG | 0644)
	f2, _ := fs.Inodes.Alloc(SIFREG | 0644)

	require.Equal(t, errs.OK, fs.DirentAdd(fs.Root(), "dup", f1.Num))
	assert.Equal(t, errs.EEXIST, fs.DirentAdd(fs.Root(), "dup", f2.Num))

	fs.Inodes.Put(f1)
	fs.Inodes.Put(f2)
}

func TestWriteReadDirectBlock(t *testing.T) {
	fs := mkfsAndMount(t, 4096, 64)
	defer fs.Unmount()

	file, _ := fs.Inodes.Alloc(SIFREG | 0644)
	file.Disk.Nlinks = 1

	buf := make([]byte, BlockSize)
	copy(buf, []byte("hello direct block"))
	require.Equal(t, errs.OK, fs.WriteFileBlock(file, 0, buf))

	out := make([]byte, BlockSize)
	require.Equal(t, errs.OK, fs.ReadFileBlock(file, 0, out))
	assert.Equal(t, "hello direct block", string(out[:18]))

	fs.Inodes.Put(file)
}

func TestWriteReadThroughSingleIndirectBlock(t *testing.T) {
	fs := mkfsAndMount(t, 16384, 64)
	defer fs.Unmount()

	file, _ := fs.Inodes.Alloc(SIFREG | 0644)
	file.Disk.Nlinks = 1

	// Block NumDirectZones (7) is the first block requiring the
	// single-indirect pointer.
	logical := NumDirectZones + 3
	buf := make([]byte, BlockSize)
	copy(buf, []byte("indirect payload"))
	require.Equal(t, errs.OK, fs.WriteFileBlock(file, logical, buf))
	assert.NotEqual(t, Zone_t(0), file.Disk.Zones[IndZoneIdx])

	out := make([]byte, BlockSize)
	require.Equal(t, errs.OK, fs.ReadFileBlock(file, logical, out))
	assert.Equal(t, "indirect payload", string(out[:16]))

	fs.Inodes.Put(file)
}

func TestWriteReadThroughDoubleIndirectBlock(t *testing.T) {
	fs := mkfsAndMount(t, 65535, 64)
	defer fs.Unmount()

	file, _ := fs.Inodes.Alloc(SIFREG | 0644)
	file.Disk.Nlinks = 1

	logical := NumDirectZones + PtrsPerBlock + 5
	buf := make([]byte, BlockSize)
	copy(buf, []byte("double indirect payload"))
	require.Equal(t, errs.OK, fs.WriteFileBlock(file, logical, buf))
	assert.NotEqual(t, Zone_t(0), file.Disk.Zones[DindZoneIdx])

	out := make([]byte, BlockSize)
	require.Equal(t, errs.OK, fs.ReadFileBlock(file, logical, out))
	assert.Equal(t, "double indirect payload", string(out[:23]))

	fs.Inodes.Put(file)
}

func TestSparseReadReturnsZeroes(t *testing.T) {
	fs := mkfsAndMount(t, 4096, 64)
	defer fs.Unmount()

	file, _ := fs.Inodes.Alloc(SIFREG | 0644)
	file.Disk.Nlinks = 1

	out := make([]byte, BlockSize)
	for i := range out {
		out[i] = 0xff
	}
	require.Equal(t, errs.OK, fs.ReadFileBlock(file, 2, out))
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}

	fs.Inodes.Put(file)
}

func TestMkfsSeedsDiskBlockDeviceEntry(t *testing.T) {
	fs := mkfsAndMount(t, 16384, 64)
	defer fs.Unmount()

	ino, err := fs.DirentSearch(fs.Root(), "disk")
	require.Equal(t, errs.OK, err)
	assert.Equal(t, 2, ino)

	in, gerr := fs.Inodes.Get(ino)
	require.Equal(t, errs.OK, gerr)
	assert.True(t, in.Disk.IsBlk())
	assert.EqualValues(t, 16384*BlockSize, in.Disk.Size)
	fs.Inodes.Put(in)
}

func TestFreeInodeReleasesBlocksOnLastPut(t *testing.T) {
	fs := mkfsAndMount(t, 4096, 64)

	file, _ := fs.Inodes.Alloc(SIFREG | 0644)
	buf := make([]byte, BlockSize)
	require.Equal(t, errs.OK, fs.WriteFileBlock(file, 0, buf))
	zone := file.Disk.Zones[0]

	before := fs.zmap.Count()
	file.Disk.Nlinks = 0 // unlinked, no remaining references
	require.Equal(t, errs.OK, fs.Inodes.Put(file))

	assert.False(t, fs.zmap.Check(int(zone)-int(fs.sb.FirstDataZone)))
	assert.Less(t, fs.zmap.Count(), before)

	fs.Unmount()
}
