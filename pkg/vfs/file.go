// Package vfs implements the file layer and server wrapper of §4.8: open
// file descriptors over minixfs inodes (open/close/read/write/lseek/
// stat/unlink/mkdir), permission checks, and the CREAT/OPEN/UNLINK/CLOSE/
// LINK/TRUNCATE/STAT/READ/WRITE/SEEK/EXIT request vocabulary exposed to
// clients over the transport fabric.
package vfs

import (
	"strings"
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/minixfs"
	"github.com/nanvix/multikernel-sub000/pkg/respool"
)

// / OpenFlags_t mirrors the shm package's flag encoding for familiarity:
// / low two bits are the access mode, higher bits are behavior flags.
type OpenFlags_t uint32

const (
	ORDONLY  OpenFlags_t = 0
	OWRONLY  OpenFlags_t = 1
	ORDWR    OpenFlags_t = 2
	OACCMODE OpenFlags_t = 0x3

	OCREAT OpenFlags_t = 1 << 4
	OEXCL  OpenFlags_t = 1 << 5
	OTRUNC OpenFlags_t = 1 << 6
)

// / Whence_t selects Lseek's reference point.
type Whence_t int

const (
	SeekSet Whence_t = iota
	SeekCur
	SeekEnd
)

// / File_t is one open file descriptor: an inode reference plus a cursor.
type File_t struct {
	Inode  *minixfs.Inode_t
	Offset int64
	Flags  OpenFlags_t
}

// / FileTable_t is the fixed-size table of open file descriptors for one
// / client session, backed by a mounted minixfs volume.
type FileTable_t struct {
	mu    sync.Mutex
	pool  *respool.Pool_t
	files []File_t
	fs    *minixfs.FileSystem_t
	log   *logx.Logger
}

// / NewFileTable creates a table of capacity n over fs.
func NewFileTable(n int, fs *minixfs.FileSystem_t) *FileTable_t {
	return &FileTable_t{
		pool:  respool.New(n),
		files: make([]File_t, n),
		fs:    fs,
		log:   logx.New("vfs"),
	}
}

func hasPermission(mode uint16, fileUid, caller int, flags OpenFlags_t) bool {
	accmode := flags & OACCMODE
	var r, w uint16
	if fileUid == caller {
		r, w = minixfs.SIRUSR, minixfs.SIWUSR
	} else {
		r, w = minixfs.SIROTH, minixfs.SIWOTH
	}
	if (accmode == ORDONLY || accmode == ORDWR) && mode&r == 0 {
		return false
	}
	if (accmode == OWRONLY || accmode == ORDWR) && mode&w == 0 {
		return false
	}
	return true
}

// / lookupPath walks path's directory components from the root, returning
// / the pinned parent directory inode and the final path component. The
// / caller is responsible for releasing the returned inode with a Put.
// / Only forward traversal through directory entries (including any "."
// / and ".." a directory itself created) is supported; there is no
// / special-cased multi-level ".." collapsing outside of that.
func (t *FileTable_t) lookupPath(path string) (*minixfs.Inode_t, string, errs.Err_t) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, "", errs.EINVAL
	}
	parts := strings.Split(trimmed, "/")

	cur, err := t.fs.Inodes.Get(minixfs.RootInodeNum)
	if err.IsErr() {
		return nil, "", err
	}

	for i := 0; i < len(parts)-1; i++ {
		if !cur.Disk.IsDir() {
			t.fs.Inodes.Put(cur)
			return nil, "", errs.EINVAL
		}
		childNum, serr := t.fs.DirentSearch(cur, parts[i])
		t.fs.Inodes.Put(cur)
		if serr.IsErr() {
			return nil, "", serr
		}
		child, gerr := t.fs.Inodes.Get(childNum)
		if gerr.IsErr() {
			return nil, "", gerr
		}
		cur = child
	}

	return cur, parts[len(parts)-1], errs.OK
}

// / Open resolves path to a file descriptor, creating a regular file when
// / O_CREAT is set and no entry exists. Returns EEXIST under
// / O_CREAT|O_EXCL on an existing name, EACCES on a permission mismatch,
// / and ENOENT when no O_CREAT was given and the name does not exist.
func (t *FileTable_t) Open(path string, flags OpenFlags_t, mode uint16, caller int) (int, errs.Err_t) {
	parent, name, err := t.lookupPath(path)
	if err.IsErr() {
		return -1, err
	}

	childNum, serr := t.fs.DirentSearch(parent, name)
	if serr == errs.ENOENT {
		if flags&OCREAT == 0 {
			t.fs.Inodes.Put(parent)
			return -1, errs.ENOENT
		}
		in, aerr := t.fs.Inodes.Alloc(minixfs.SIFREG | mode)
		if aerr.IsErr() {
			t.fs.Inodes.Put(parent)
			return -1, aerr
		}
		in.Disk.Nlinks = 1
		in.Disk.Uid = uint16(caller)
		t.fs.Inodes.Touch(in)
		if derr := t.fs.DirentAdd(parent, name, in.Num); derr.IsErr() {
			t.fs.Inodes.Put(in)
			t.fs.Inodes.Put(parent)
			return -1, derr
		}
		t.fs.Inodes.Put(parent)
		return t.install(in, flags)
	}
	if serr.IsErr() {
		t.fs.Inodes.Put(parent)
		return -1, serr
	}
	t.fs.Inodes.Put(parent)

	if flags&OCREAT != 0 && flags&OEXCL != 0 {
		return -1, errs.EEXIST
	}

	in, gerr := t.fs.Inodes.Get(childNum)
	if gerr.IsErr() {
		return -1, gerr
	}
	if !hasPermission(in.Disk.Mode, int(in.Disk.Uid), caller, flags) {
		t.fs.Inodes.Put(in)
		return -1, errs.EACCES
	}
	if flags&OTRUNC != 0 {
		if terr := t.fs.Truncate(in, 0); terr.IsErr() {
			t.fs.Inodes.Put(in)
			return -1, terr
		}
	}
	return t.install(in, flags)
}

func (t *FileTable_t) install(in *minixfs.Inode_t, flags OpenFlags_t) (int, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.pool.Alloc()
	if slot < 0 {
		t.fs.Inodes.Put(in)
		return -1, errs.ENFILE
	}
	t.files[slot] = File_t{Inode: in, Offset: 0, Flags: flags}
	return slot, errs.OK
}

func (t *FileTable_t) get(handle int) (*File_t, errs.Err_t) {
	if handle < 0 || handle >= len(t.files) || !t.pool.IsUsed(handle) {
		return nil, errs.EBADF
	}
	return &t.files[handle], errs.OK
}

// / Close releases a file descriptor and the inode reference it held.
func (t *FileTable_t) Close(handle int) errs.Err_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := t.get(handle)
	if err.IsErr() {
		return err
	}
	in := f.Inode
	t.pool.Free(handle)
	t.files[handle] = File_t{}
	return t.fs.Inodes.Put(in)
}

// / Read copies up to len(buf) bytes starting at the descriptor's cursor,
// / stopping at end-of-file, and advances the cursor by the amount read.
// / A block-device descriptor dispatches to the raw device instead of the
// / inode's zone-mapped data (§4.9).
func (t *FileTable_t) Read(handle int, buf []byte) (int, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := t.get(handle)
	if err.IsErr() {
		return 0, err
	}
	if f.Flags&OACCMODE == OWRONLY {
		return 0, errs.EACCES
	}

	readBlock := t.fs.ReadFileBlock
	if f.Inode.Disk.IsBlk() {
		readBlock = func(_ *minixfs.Inode_t, logical int, b []byte) errs.Err_t {
			return t.fs.ReadRawBlock(logical, b)
		}
	}

	size := int64(f.Inode.Disk.Size)
	if f.Offset >= size {
		return 0, errs.OK
	}

	total := 0
	block := make([]byte, minixfs.BlockSize)
	for total < len(buf) && f.Offset < size {
		logical := int(f.Offset / minixfs.BlockSize)
		off := int(f.Offset % minixfs.BlockSize)
		if err := readBlock(f.Inode, logical, block); err.IsErr() {
			return total, err
		}
		n := copy(buf[total:], block[off:])
		if int64(n) > size-f.Offset {
			n = int(size - f.Offset)
		}
		total += n
		f.Offset += int64(n)
	}
	return total, errs.OK
}

// / Write stores len(buf) bytes starting at the descriptor's cursor,
// / growing the file and allocating zones as needed, and advances the
// / cursor. A block-device descriptor writes straight through to the raw
// / device and never grows past its fixed size (§4.9).
func (t *FileTable_t) Write(handle int, buf []byte) (int, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := t.get(handle)
	if err.IsErr() {
		return 0, err
	}
	if f.Flags&OACCMODE == ORDONLY {
		return 0, errs.EACCES
	}

	isBlk := f.Inode.Disk.IsBlk()
	readBlock := t.fs.ReadFileBlock
	writeBlock := t.fs.WriteFileBlock
	if isBlk {
		readBlock = func(_ *minixfs.Inode_t, logical int, b []byte) errs.Err_t {
			return t.fs.ReadRawBlock(logical, b)
		}
		writeBlock = func(_ *minixfs.Inode_t, logical int, b []byte) errs.Err_t {
			return t.fs.WriteRawBlock(logical, b)
		}
	}

	total := 0
	block := make([]byte, minixfs.BlockSize)
	for total < len(buf) {
		if isBlk && f.Offset >= int64(f.Inode.Disk.Size) {
			break
		}
		logical := int(f.Offset / minixfs.BlockSize)
		off := int(f.Offset % minixfs.BlockSize)

		if off != 0 || len(buf)-total < minixfs.BlockSize {
			if err := readBlock(f.Inode, logical, block); err.IsErr() {
				return total, err
			}
		}
		n := copy(block[off:], buf[total:])
		if err := writeBlock(f.Inode, logical, block); err.IsErr() {
			return total, err
		}

		total += n
		f.Offset += int64(n)
		if !isBlk && uint32(f.Offset) > f.Inode.Disk.Size {
			f.Inode.Disk.Size = uint32(f.Offset)
		}
	}
	if !isBlk {
		t.fs.Inodes.Touch(f.Inode)
	}
	return total, errs.OK
}

// / Lseek repositions the descriptor's cursor relative to whence.
func (t *FileTable_t) Lseek(handle int, offset int64, whence Whence_t) (int64, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := t.get(handle)
	if err.IsErr() {
		return 0, err
	}
	if f.Inode.Disk.IsFifo() {
		return 0, errs.ESPIPE
	}
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.Offset
	case SeekEnd:
		base = int64(f.Inode.Disk.Size)
	default:
		return 0, errs.EINVAL
	}
	newOff := base + offset
	if newOff < 0 {
		return 0, errs.EINVAL
	}
	f.Offset = newOff
	return newOff, errs.OK
}

// / Stat_t is the POSIX-ish status record §4.9 fills from an inode: device
// / and inode identity, mode/link/ownership bits, the raw device number
// / for a special file, and size/blksize/blocks for space accounting.
// / buildStat leaves Dev and Rdev at zero; no device numbers are recorded.
type Stat_t struct {
	Dev     int
	Ino     int
	Mode    uint16
	Nlink   uint8
	Uid     uint16
	Gid     uint8
	Rdev    int
	Size    uint32
	Blksize int
	Blocks  int
}

func (t *FileTable_t) buildStat(in *minixfs.Inode_t) Stat_t {
	return Stat_t{
		Ino:     in.Num,
		Mode:    in.Disk.Mode,
		Nlink:   in.Disk.Nlinks,
		Uid:     in.Disk.Uid,
		Gid:     in.Disk.Gid,
		Size:    in.Disk.Size,
		Blksize: minixfs.BlockSize,
		Blocks:  t.fs.FileBlockCount(in),
	}
}

// / Stat returns the status record for an already-open descriptor
// / (fstat-like).
func (t *FileTable_t) Stat(handle int) (Stat_t, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := t.get(handle)
	if err.IsErr() {
		return Stat_t{}, err
	}
	return t.buildStat(f.Inode), errs.OK
}

// / StatPath resolves path and returns its status record without opening
// / a descriptor (stat-like, §4.9).
func (t *FileTable_t) StatPath(path string) (Stat_t, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, name, err := t.lookupPath(path)
	if err.IsErr() {
		return Stat_t{}, err
	}
	childNum, serr := t.fs.DirentSearch(parent, name)
	t.fs.Inodes.Put(parent)
	if serr.IsErr() {
		return Stat_t{}, serr
	}
	in, gerr := t.fs.Inodes.Get(childNum)
	if gerr.IsErr() {
		return Stat_t{}, gerr
	}
	st := t.buildStat(in)
	t.fs.Inodes.Put(in)
	return st, errs.OK
}

// / Unlink removes path's directory entry and drops the underlying
// / inode's link count, freeing it once both the link count and every
// / open reference reach zero. Removing a directory requires caller to be
// / the superuser (uid 0) and the directory to hold no entries besides
// / "." and ".." (§4.9); a non-empty directory fails with EBUSY via
// / DirentRemove.
func (t *FileTable_t) Unlink(path string, caller int) errs.Err_t {
	parent, name, err := t.lookupPath(path)
	if err.IsErr() {
		return err
	}
	childNum, serr := t.fs.DirentSearch(parent, name)
	if serr.IsErr() {
		t.fs.Inodes.Put(parent)
		return serr
	}

	in, gerr := t.fs.Inodes.Get(childNum)
	if gerr.IsErr() {
		t.fs.Inodes.Put(parent)
		return gerr
	}
	if in.Disk.IsDir() && caller != 0 {
		t.fs.Inodes.Put(in)
		t.fs.Inodes.Put(parent)
		return errs.EACCES
	}

	if derr := t.fs.DirentRemove(parent, name); derr.IsErr() {
		t.fs.Inodes.Put(in)
		t.fs.Inodes.Put(parent)
		return derr
	}
	t.fs.Inodes.Put(parent)

	if in.Disk.Nlinks > 0 {
		in.Disk.Nlinks--
	}
	t.fs.Inodes.Touch(in)
	return t.fs.Inodes.Put(in)
}

// / Link adds newpath as an additional directory entry for the inode
// / named by oldpath, incrementing its link count.
func (t *FileTable_t) Link(oldpath, newpath string) errs.Err_t {
	oldParent, oldName, err := t.lookupPath(oldpath)
	if err.IsErr() {
		return err
	}
	oldNum, serr := t.fs.DirentSearch(oldParent, oldName)
	t.fs.Inodes.Put(oldParent)
	if serr.IsErr() {
		return serr
	}

	newParent, newName, err2 := t.lookupPath(newpath)
	if err2.IsErr() {
		return err2
	}
	if derr := t.fs.DirentAdd(newParent, newName, oldNum); derr.IsErr() {
		t.fs.Inodes.Put(newParent)
		return derr
	}
	t.fs.Inodes.Put(newParent)

	in, gerr := t.fs.Inodes.Get(oldNum)
	if gerr.IsErr() {
		return gerr
	}
	in.Disk.Nlinks++
	t.fs.Inodes.Touch(in)
	return t.fs.Inodes.Put(in)
}

// / Mkdir creates a new, empty directory at path with "." and ".."
// / entries, incrementing the parent's link count for the child's "..".
func (t *FileTable_t) Mkdir(path string, mode uint16, caller int) errs.Err_t {
	parent, name, err := t.lookupPath(path)
	if err.IsErr() {
		return err
	}
	if _, serr := t.fs.DirentSearch(parent, name); serr == errs.OK {
		t.fs.Inodes.Put(parent)
		return errs.EEXIST
	}

	dir, aerr := t.fs.Inodes.Alloc(minixfs.SIFDIR | mode)
	if aerr.IsErr() {
		t.fs.Inodes.Put(parent)
		return aerr
	}
	dir.Disk.Nlinks = 2
	dir.Disk.Uid = uint16(caller)
	t.fs.Inodes.Touch(dir)

	if derr := t.fs.DirentAdd(parent, name, dir.Num); derr.IsErr() {
		t.fs.Inodes.Put(dir)
		t.fs.Inodes.Put(parent)
		return derr
	}
	if derr := t.fs.DirentAdd(dir, ".", dir.Num); derr.IsErr() {
		t.fs.Inodes.Put(dir)
		t.fs.Inodes.Put(parent)
		return derr
	}
	if derr := t.fs.DirentAdd(dir, "..", parent.Num); derr.IsErr() {
		t.fs.Inodes.Put(dir)
		t.fs.Inodes.Put(parent)
		return derr
	}

	parent.Disk.Nlinks++
	t.fs.Inodes.Touch(parent)

	t.fs.Inodes.Put(dir)
	t.fs.Inodes.Put(parent)
	return errs.OK
}
