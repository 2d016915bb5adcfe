package minixfs

import (
	"bytes"
	"encoding/binary"

	"github.com/nanvix/multikernel-sub000/internal/errs"
)

// / DirentSize is the packed on-disk size of one directory entry.
const DirentSize = 16

// / NameSize is the maximum length of a directory entry's name, excluding
// / any terminator.
const NameSize = 14

// / DirentsPerBlock is how many entries fit in one directory data block.
const DirentsPerBlock = BlockSize / DirentSize

func encodeDirent(buf []byte, ino uint16, name string) {
	binary.LittleEndian.PutUint16(buf[0:2], ino)
	for i := 2; i < DirentSize; i++ {
		buf[i] = 0
	}
	copy(buf[2:2+NameSize], name)
}

func decodeDirent(buf []byte) (uint16, string) {
	ino := binary.LittleEndian.Uint16(buf[0:2])
	raw := buf[2 : 2+NameSize]
	n := bytes.IndexByte(raw, 0)
	if n < 0 {
		n = len(raw)
	}
	return ino, string(raw[:n])
}

func dirBlocks(dir *Inode_t) int {
	return int((dir.Disk.Size + BlockSize - 1) / BlockSize)
}

// / DirentSearch looks up name within directory dir, returning its inode
// / number or ENOENT.
func (fs *FileSystem_t) DirentSearch(dir *Inode_t, name string) (int, errs.Err_t) {
	buf := make([]byte, BlockSize)
	nblocks := dirBlocks(dir)
	for b := 0; b < nblocks; b++ {
		if err := fs.ReadFileBlock(dir, b, buf); err.IsErr() {
			return 0, err
		}
		for e := 0; e < DirentsPerBlock; e++ {
			off := e * DirentSize
			ino, nm := decodeDirent(buf[off : off+DirentSize])
			if ino != 0 && nm == name {
				return int(ino), errs.OK
			}
		}
	}
	return 0, errs.ENOENT
}

// / DirentAdd inserts a (name, ino) mapping into dir, reusing the first
// / free slot or growing the directory by one block if none exists. It
// / fails with EEXIST if name is already present and ENAMETOOLONG if name
// / exceeds NameSize.
func (fs *FileSystem_t) DirentAdd(dir *Inode_t, name string, ino int) errs.Err_t {
	if len(name) == 0 || len(name) > NameSize {
		return errs.ENAMETOOLONG
	}
	if _, err := fs.DirentSearch(dir, name); err == errs.OK {
		return errs.EEXIST
	}

	buf := make([]byte, BlockSize)
	nblocks := dirBlocks(dir)
	for b := 0; b < nblocks; b++ {
		if err := fs.ReadFileBlock(dir, b, buf); err.IsErr() {
			return err
		}
		for e := 0; e < DirentsPerBlock; e++ {
			off := e * DirentSize
			slotIno, _ := decodeDirent(buf[off : off+DirentSize])
			if slotIno == 0 {
				encodeDirent(buf[off:off+DirentSize], uint16(ino), name)
				return fs.WriteFileBlock(dir, b, buf)
			}
		}
	}

	for i := range buf {
		buf[i] = 0
	}
	encodeDirent(buf[0:DirentSize], uint16(ino), name)
	if err := fs.WriteFileBlock(dir, nblocks, buf); err.IsErr() {
		return err
	}
	dir.Disk.Size = uint32((nblocks + 1) * BlockSize)
	dir.Dirty = true
	return errs.OK
}

// / DirentRemove clears name's entry from dir. The directory never
// / shrinks or compacts; a cleared slot is simply made available to a
// / future DirentAdd. Refuses "." and refuses removing an entry that is
// / itself a non-empty directory (§4.7.3).
func (fs *FileSystem_t) DirentRemove(dir *Inode_t, name string) errs.Err_t {
	if name == "." {
		return errs.EINVAL
	}
	buf := make([]byte, BlockSize)
	nblocks := dirBlocks(dir)
	for b := 0; b < nblocks; b++ {
		if err := fs.ReadFileBlock(dir, b, buf); err.IsErr() {
			return err
		}
		for e := 0; e < DirentsPerBlock; e++ {
			off := e * DirentSize
			ino, nm := decodeDirent(buf[off : off+DirentSize])
			if ino != 0 && nm == name {
				nonEmpty, eerr := fs.dirIsNonEmpty(int(ino))
				if eerr.IsErr() {
					return eerr
				}
				if nonEmpty {
					return errs.EBUSY
				}
				encodeDirent(buf[off:off+DirentSize], 0, "")
				return fs.WriteFileBlock(dir, b, buf)
			}
		}
	}
	return errs.ENOENT
}

// / dirIsNonEmpty reports whether inode num is a directory holding any
// / entry besides "." and "..".
func (fs *FileSystem_t) dirIsNonEmpty(num int) (bool, errs.Err_t) {
	in, err := fs.Inodes.Get(num)
	if err.IsErr() {
		return false, err
	}
	defer fs.Inodes.Put(in)
	if !in.Disk.IsDir() {
		return false, errs.OK
	}

	buf := make([]byte, BlockSize)
	nblocks := dirBlocks(in)
	for b := 0; b < nblocks; b++ {
		if rerr := fs.ReadFileBlock(in, b, buf); rerr.IsErr() {
			return false, rerr
		}
		for e := 0; e < DirentsPerBlock; e++ {
			off := e * DirentSize
			dino, dnm := decodeDirent(buf[off : off+DirentSize])
			if dino != 0 && dnm != "." && dnm != ".." {
				return true, errs.OK
			}
		}
	}
	return false, errs.OK
}
