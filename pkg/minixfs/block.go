package minixfs

import (
	"encoding/binary"

	"github.com/nanvix/multikernel-sub000/internal/errs"
)

// / BlockMap resolves a file-relative logical block number to an absolute
// / zone (block) number, walking the direct, single-indirect and
// / double-indirect zone pointers of in. When alloc is true, missing
// / zones — including the indirect blocks themselves — are allocated and
// / zeroed on demand; when false, an unallocated logical block yields the
// / sentinel zone 0 (a hole, read back as all-zero).
func (fs *FileSystem_t) BlockMap(in *Inode_t, logical int, alloc bool) (Zone_t, errs.Err_t) {
	if logical < 0 {
		return 0, errs.EINVAL
	}

	if logical < NumDirectZones {
		z := in.Disk.Zones[logical]
		if z == 0 {
			if !alloc {
				return 0, errs.OK
			}
			nz, err := fs.allocZone()
			if err.IsErr() {
				return 0, err
			}
			if err := fs.zeroZone(nz); err.IsErr() {
				return 0, err
			}
			in.Disk.Zones[logical] = nz
			in.Dirty = true
			z = nz
		}
		return z, errs.OK
	}
	logical -= NumDirectZones

	if logical < PtrsPerBlock {
		indZone, err := fs.ensureZone(&in.Disk.Zones[IndZoneIdx], alloc, in)
		if err.IsErr() || indZone == 0 {
			return 0, err
		}
		return fs.getOrAllocPtr(indZone, logical, alloc)
	}
	logical -= PtrsPerBlock

	if logical < PtrsPerBlock*PtrsPerBlock {
		dindZone, err := fs.ensureZone(&in.Disk.Zones[DindZoneIdx], alloc, in)
		if err.IsErr() || dindZone == 0 {
			return 0, err
		}
		outer := logical / PtrsPerBlock
		inner := logical % PtrsPerBlock

		innerZone, err := fs.getOrAllocPtr(dindZone, outer, alloc)
		if err.IsErr() || innerZone == 0 {
			return 0, err
		}
		return fs.getOrAllocPtr(innerZone, inner, alloc)
	}

	return 0, errs.EFBIG
}

// / ensureZone returns *ptr, allocating and zeroing a fresh zone into it
// / when it is empty and alloc is requested.
func (fs *FileSystem_t) ensureZone(ptr *Zone_t, alloc bool, in *Inode_t) (Zone_t, errs.Err_t) {
	if *ptr != 0 {
		return *ptr, errs.OK
	}
	if !alloc {
		return 0, errs.OK
	}
	nz, err := fs.allocZone()
	if err.IsErr() {
		return 0, err
	}
	if err := fs.zeroZone(nz); err.IsErr() {
		return 0, err
	}
	*ptr = nz
	in.Dirty = true
	return nz, errs.OK
}

// / getOrAllocPtr reads the idx'th zone number out of the indirect block
// / indZone, allocating and zeroing a fresh zone for it if it is empty and
// / alloc is requested.
func (fs *FileSystem_t) getOrAllocPtr(indZone Zone_t, idx int, alloc bool) (Zone_t, errs.Err_t) {
	i, err := fs.cache.BRead(int64(indZone))
	if err.IsErr() {
		return 0, err
	}
	data := fs.cache.GetData(i)
	cur := Zone_t(binary.LittleEndian.Uint16(data[idx*2 : idx*2+2]))

	if cur == 0 && alloc {
		nz, aerr := fs.allocZone()
		if aerr.IsErr() {
			_ = fs.cache.BRelse(i)
			return 0, aerr
		}
		if zerr := fs.zeroZone(nz); zerr.IsErr() {
			_ = fs.cache.BRelse(i)
			return 0, zerr
		}
		binary.LittleEndian.PutUint16(data[idx*2:idx*2+2], uint16(nz))
		_ = fs.cache.BWrite2(i)
		cur = nz
	}
	_ = fs.cache.BRelse(i)
	return cur, errs.OK
}

func (fs *FileSystem_t) readPtr(indZone Zone_t, idx int) (Zone_t, errs.Err_t) {
	return fs.getOrAllocPtr(indZone, idx, false)
}

// / FileBlockCount walks every zone reachable from in — direct, single-
// / and double-indirect — and counts the non-null pointers, for the
// / st_blocks field of a stat result.
func (fs *FileSystem_t) FileBlockCount(in *Inode_t) int {
	count := 0
	for i := 0; i < NumDirectZones; i++ {
		if in.Disk.Zones[i] != 0 {
			count++
		}
	}

	if indZone := in.Disk.Zones[IndZoneIdx]; indZone != 0 {
		count++
		for idx := 0; idx < PtrsPerBlock; idx++ {
			if z, err := fs.readPtr(indZone, idx); !err.IsErr() && z != 0 {
				count++
			}
		}
	}

	if dindZone := in.Disk.Zones[DindZoneIdx]; dindZone != 0 {
		count++
		for outer := 0; outer < PtrsPerBlock; outer++ {
			innerZone, err := fs.readPtr(dindZone, outer)
			if err.IsErr() || innerZone == 0 {
				continue
			}
			count++
			for inner := 0; inner < PtrsPerBlock; inner++ {
				if z, err := fs.readPtr(innerZone, inner); !err.IsErr() && z != 0 {
					count++
				}
			}
		}
	}
	return count
}

// / freeInodeBlocks releases every zone reachable from in, including its
// / indirect and double-indirect blocks, and zeroes its zone table.
func (fs *FileSystem_t) freeInodeBlocks(in *Inode_t) errs.Err_t {
	for i := 0; i < NumDirectZones; i++ {
		if err := fs.freeZone(in.Disk.Zones[i]); err.IsErr() {
			return err
		}
	}

	if indZone := in.Disk.Zones[IndZoneIdx]; indZone != 0 {
		for idx := 0; idx < PtrsPerBlock; idx++ {
			z, err := fs.readPtr(indZone, idx)
			if err.IsErr() {
				return err
			}
			if err := fs.freeZone(z); err.IsErr() {
				return err
			}
		}
		if err := fs.freeZone(indZone); err.IsErr() {
			return err
		}
	}

	if dindZone := in.Disk.Zones[DindZoneIdx]; dindZone != 0 {
		for outer := 0; outer < PtrsPerBlock; outer++ {
			innerZone, err := fs.readPtr(dindZone, outer)
			if err.IsErr() {
				return err
			}
			if innerZone == 0 {
				continue
			}
			for inner := 0; inner < PtrsPerBlock; inner++ {
				z, err := fs.readPtr(innerZone, inner)
				if err.IsErr() {
					return err
				}
				if err := fs.freeZone(z); err.IsErr() {
					return err
				}
			}
			if err := fs.freeZone(innerZone); err.IsErr() {
				return err
			}
		}
		if err := fs.freeZone(dindZone); err.IsErr() {
			return err
		}
	}

	in.Disk.Zones = [NumZones]Zone_t{}
	in.Disk.Size = 0
	return errs.OK
}

// / Truncate shrinks in to newSize bytes. Only truncation to zero is
// / supported, matching the single-region semantics the rest of the core
// / gives shared, page-addressed storage; a partial truncate returns
// / ENOTSUP.
func (fs *FileSystem_t) Truncate(in *Inode_t, newSize uint32) errs.Err_t {
	if newSize != 0 {
		return errs.ENOTSUP
	}
	return fs.freeInodeBlocks(in)
}

// / ReadFileBlock reads the logical'th block of in's data into buf
// / (BlockSize bytes), returning all zeroes for an unallocated (sparse)
// / block.
func (fs *FileSystem_t) ReadFileBlock(in *Inode_t, logical int, buf []byte) errs.Err_t {
	z, err := fs.BlockMap(in, logical, false)
	if err.IsErr() {
		return err
	}
	if z == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return errs.OK
	}
	i, err := fs.cache.BRead(int64(z))
	if err.IsErr() {
		return err
	}
	copy(buf, fs.cache.GetData(i))
	return fs.cache.BRelse(i)
}

// / WriteFileBlock writes buf (BlockSize bytes) into the logical'th block
// / of in's data, allocating a zone on demand.
func (fs *FileSystem_t) WriteFileBlock(in *Inode_t, logical int, buf []byte) errs.Err_t {
	z, err := fs.BlockMap(in, logical, true)
	if err.IsErr() {
		return err
	}
	i, err := fs.cache.BRead(int64(z))
	if err.IsErr() {
		return err
	}
	copy(fs.cache.GetData(i), buf)
	_ = fs.cache.BWrite2(i)
	return fs.cache.BRelse(i)
}
