package minixfs

import (
	"encoding/binary"
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/bitmap"
	"github.com/nanvix/multikernel-sub000/pkg/blkcache"
)

// / RootInodeNum is the inode number of the filesystem root directory.
const RootInodeNum = 1

// / FileSystem_t ties together the superblock, the imap/zmap allocators,
// / the block cache and the in-core inode table for one mounted volume.
type FileSystem_t struct {
	mu    sync.Mutex
	disk  blkcache.Disk_i
	cache *blkcache.Cache_t
	sb    *Superblock_t
	imap  *bitmap.Bitmap_t
	zmap  *bitmap.Bitmap_t

	Inodes *InodeTable_t
	root   *Inode_t

	log *logx.Logger
}

func readBitmap(disk blkcache.Disk_i, firstZone, nblocks, nbits int) *bitmap.Bitmap_t {
	raw := make([]byte, nblocks*BlockSize)
	for b := 0; b < nblocks; b++ {
		blk := make([]byte, BlockSize)
		_ = disk.ReadBlock(int64(firstZone+b), blk)
		copy(raw[b*BlockSize:], blk)
	}
	words := make([]bitmap.Word_t, len(raw)/8)
	for i := range words {
		words[i] = bitmap.Word_t(binary.LittleEndian.Uint64(raw[i*8 : i*8+8]))
	}
	return bitmap.Wrap(words, nbits)
}

func writeBitmap(disk blkcache.Disk_i, firstZone, nblocks int, b *bitmap.Bitmap_t) errs.Err_t {
	raw := make([]byte, nblocks*BlockSize)
	for i, w := range b.Words() {
		binary.LittleEndian.PutUint64(raw[i*8:i*8+8], uint64(w))
	}
	for bl := 0; bl < nblocks; bl++ {
		if err := disk.WriteBlock(int64(firstZone+bl), raw[bl*BlockSize:(bl+1)*BlockSize]); err != nil {
			return errs.EIO
		}
	}
	return errs.OK
}

// / Mount reads the superblock and allocator bitmaps off disk and returns
// / a ready FileSystem_t with its root inode pinned at refcount 2, so an
// / unmount racing the last open file never evicts it prematurely.
func Mount(disk blkcache.Disk_i, cacheSize, inodeTableSize int) (*FileSystem_t, errs.Err_t) {
	sbBuf := make([]byte, BlockSize)
	if err := disk.ReadBlock(SuperblockZone, sbBuf); err != nil {
		return nil, errs.EIO
	}
	sb, serr := DecodeSuperblock(sbBuf)
	if serr.IsErr() {
		return nil, serr
	}

	imap := readBitmap(disk, sb.ImapZone(), int(sb.ImapBlocks), int(sb.Ninodes)+1)
	zmap := readBitmap(disk, sb.ZmapZone(), int(sb.ZmapBlocks), int(sb.Nzones)-int(sb.FirstDataZone))

	fs := &FileSystem_t{
		disk:  disk,
		cache: blkcache.New(cacheSize, BlockSize, disk),
		sb:    sb,
		imap:  imap,
		zmap:  zmap,
		log:   logx.New("minixfs"),
	}
	fs.Inodes = NewInodeTable(inodeTableSize, fs)

	root, err := fs.Inodes.Get(RootInodeNum)
	if err.IsErr() {
		return nil, err
	}
	root.Refcount++ // pin at 2 for the mount's lifetime
	fs.root = root

	return fs, errs.OK
}

// / Root returns the mount's pinned root inode.
func (fs *FileSystem_t) Root() *Inode_t { return fs.root }

// / DiskBlocks returns the volume's total block count, the raw device
// / size a block-device special file exposes through its inode.
func (fs *FileSystem_t) DiskBlocks() int { return int(fs.sb.Nzones) }

// / ReadRawBlock reads block num directly off the underlying device,
// / bypassing zone mapping. It backs reads through a block-device special
// / file, whose data is the raw device rather than a zone-indexed file.
func (fs *FileSystem_t) ReadRawBlock(num int, buf []byte) errs.Err_t {
	i, err := fs.cache.BRead(int64(num))
	if err.IsErr() {
		return err
	}
	copy(buf, fs.cache.GetData(i))
	return fs.cache.BRelse(i)
}

// / WriteRawBlock writes block num directly to the underlying device,
// / bypassing zone mapping.
func (fs *FileSystem_t) WriteRawBlock(num int, buf []byte) errs.Err_t {
	i, err := fs.cache.GetBlk(int64(num))
	if err.IsErr() {
		return err
	}
	copy(fs.cache.GetData(i), buf)
	_ = fs.cache.BWrite2(i)
	return fs.cache.BRelse(i)
}

// / Sync flushes the allocator bitmaps and every dirty cached block to
// / disk.
func (fs *FileSystem_t) Sync() errs.Err_t {
	if err := fs.flushImap(); err.IsErr() {
		return err
	}
	if err := fs.flushZmap(); err.IsErr() {
		return err
	}
	return fs.cache.Sync()
}

// / Unmount releases the root inode's two pins and syncs the volume.
func (fs *FileSystem_t) Unmount() errs.Err_t {
	if err := fs.Inodes.Put(fs.root); err.IsErr() {
		return err
	}
	if err := fs.Inodes.Put(fs.root); err.IsErr() {
		return err
	}
	return fs.Sync()
}

func (fs *FileSystem_t) flushImap() errs.Err_t {
	return writeBitmap(fs.disk, fs.sb.ImapZone(), int(fs.sb.ImapBlocks), fs.imap)
}

func (fs *FileSystem_t) flushZmap() errs.Err_t {
	return writeBitmap(fs.disk, fs.sb.ZmapZone(), int(fs.sb.ZmapBlocks), fs.zmap)
}

func (fs *FileSystem_t) allocInodeNum() (int, errs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	bit := fs.imap.FirstFree()
	if bit == bitmap.Full {
		return 0, errs.ENOSPC
	}
	fs.imap.Set(bit)
	if err := fs.flushImap(); err.IsErr() {
		fs.imap.Clear(bit)
		return 0, err
	}
	return bit, errs.OK
}

func (fs *FileSystem_t) freeInodeNum(num int) errs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.imap.Clear(num)
	return fs.flushImap()
}

func (fs *FileSystem_t) allocZone() (Zone_t, errs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	bit := fs.zmap.FirstFree()
	if bit == bitmap.Full {
		return 0, errs.ENOSPC
	}
	fs.zmap.Set(bit)
	if err := fs.flushZmap(); err.IsErr() {
		fs.zmap.Clear(bit)
		return 0, err
	}
	return Zone_t(int(fs.sb.FirstDataZone) + bit), errs.OK
}

func (fs *FileSystem_t) freeZone(z Zone_t) errs.Err_t {
	if z == 0 {
		return errs.OK
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	bit := int(z) - int(fs.sb.FirstDataZone)
	fs.zmap.Clear(bit)
	return fs.flushZmap()
}

func (fs *FileSystem_t) zeroZone(z Zone_t) errs.Err_t {
	i, err := fs.cache.GetBlk(int64(z))
	if err.IsErr() {
		return err
	}
	data := fs.cache.GetData(i)
	for j := range data {
		data[j] = 0
	}
	_ = fs.cache.BWrite2(i)
	return fs.cache.BRelse(i)
}

func (fs *FileSystem_t) readDiskInode(num int) (DiskInode_t, errs.Err_t) {
	blk := fs.sb.InodeZone() + (num-1)/InodesPerBlock
	off := ((num - 1) % InodesPerBlock) * InodeSize

	i, err := fs.cache.BRead(int64(blk))
	if err.IsErr() {
		return DiskInode_t{}, err
	}
	d := DecodeDiskInode(fs.cache.GetData(i)[off : off+InodeSize])
	_ = fs.cache.BRelse(i)
	return d, errs.OK
}

func (fs *FileSystem_t) writeDiskInode(num int, d *DiskInode_t) errs.Err_t {
	blk := fs.sb.InodeZone() + (num-1)/InodesPerBlock
	off := ((num - 1) % InodesPerBlock) * InodeSize

	i, err := fs.cache.BRead(int64(blk))
	if err.IsErr() {
		return err
	}
	d.Encode(fs.cache.GetData(i)[off : off+InodeSize])
	_ = fs.cache.BWrite2(i)
	return fs.cache.BRelse(i)
}
