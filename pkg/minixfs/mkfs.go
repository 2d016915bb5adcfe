package minixfs

import (
	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/bitmap"
	"github.com/nanvix/multikernel-sub000/pkg/blkcache"
)

const bitsPerBlock = BlockSize * 8

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// / Mkfs formats disk (diskBlocks blocks of BlockSize bytes) as a fresh
// / MINIX-style volume with room for ninodes inodes, then mounts it just
// / long enough to create the root directory's "." and ".." entries.
func Mkfs(disk blkcache.Disk_i, diskBlocks, ninodes int) errs.Err_t {
	imapBlocks := ceilDiv(ninodes+1, bitsPerBlock)
	inodeBlocks := ceilDiv(ninodes*InodeSize, BlockSize)

	zmapBlocks := 1
	var firstDataZone int
	for i := 0; i < 3; i++ {
		firstDataZone = SuperblockZone + 1 + imapBlocks + zmapBlocks + inodeBlocks
		zmapBits := diskBlocks - firstDataZone
		if zmapBits < 1 {
			return errs.ENOSPC
		}
		zmapBlocks = ceilDiv(zmapBits, bitsPerBlock)
	}
	firstDataZone = SuperblockZone + 1 + imapBlocks + zmapBlocks + inodeBlocks
	if firstDataZone >= diskBlocks {
		return errs.ENOSPC
	}

	maxSize := uint64(NumDirectZones)*BlockSize +
		uint64(PtrsPerBlock)*BlockSize +
		uint64(PtrsPerBlock)*uint64(PtrsPerBlock)*BlockSize
	if maxSize > 0xffffffff {
		maxSize = 0xffffffff
	}

	sb := &Superblock_t{
		Ninodes:       uint16(ninodes),
		Nzones:        uint16(diskBlocks),
		ImapBlocks:    uint16(imapBlocks),
		ZmapBlocks:    uint16(zmapBlocks),
		FirstDataZone: uint16(firstDataZone),
		LogZoneSize:   0,
		MaxSize:       uint32(maxSize),
		Magic:         Magic,
	}
	if err := disk.WriteBlock(SuperblockZone, sb.Encode()); err != nil {
		return errs.EIO
	}

	imap := bitmap.New(ninodes + 1)
	imap.Set(0)             // inode 0 never exists
	imap.Set(RootInodeNum) // root inode pre-allocated
	if err := writeBitmap(disk, sb.ImapZone(), imapBlocks, imap); err.IsErr() {
		return err
	}

	zmap := bitmap.New(diskBlocks - firstDataZone)
	if err := writeBitmap(disk, sb.ZmapZone(), zmapBlocks, zmap); err.IsErr() {
		return err
	}

	zero := make([]byte, BlockSize)
	for b := 0; b < inodeBlocks; b++ {
		if err := disk.WriteBlock(int64(sb.InodeZone()+b), zero); err != nil {
			return errs.EIO
		}
	}

	root := DiskInode_t{Mode: SIFDIR | 0755, Nlinks: 2, Size: 0}
	rootBuf := make([]byte, BlockSize)
	root.Encode(rootBuf[0:InodeSize])
	if err := disk.WriteBlock(int64(sb.InodeZone()), rootBuf); err != nil {
		return errs.EIO
	}

	fs, ferr := Mount(disk, 8, 8)
	if ferr.IsErr() {
		return ferr
	}
	if err := fs.DirentAdd(fs.Root(), ".", RootInodeNum); err.IsErr() {
		return err
	}
	if err := fs.DirentAdd(fs.Root(), "..", RootInodeNum); err.IsErr() {
		return err
	}

	// / A block-device special file named "disk" is seeded at the root,
	// / pointing at the raw device (§4.7.4); it lands on inode 2, the
	// / first free bit after the reserved bit 0 and the root at bit 1.
	bdev, berr := fs.Inodes.Alloc(SIFBLK | 0600)
	if berr.IsErr() {
		return berr
	}
	bdev.Disk.Nlinks = 1
	bdev.Disk.Size = uint32(diskBlocks) * BlockSize
	fs.Inodes.Touch(bdev)
	if err := fs.DirentAdd(fs.Root(), "disk", bdev.Num); err.IsErr() {
		fs.Inodes.Put(bdev)
		return err
	}
	if err := fs.Inodes.Put(bdev); err.IsErr() {
		return err
	}

	return fs.Unmount()
}
