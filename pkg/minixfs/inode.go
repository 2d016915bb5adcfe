package minixfs

import (
	"encoding/binary"
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/respool"
)

// / InodeSize is the packed on-disk size of a DiskInode_t.
const InodeSize = 32

// / File type and permission bits, the classic MINIX layout.
const (
	SIFMT  uint16 = 0170000
	SIFREG uint16 = 0100000
	SIFDIR uint16 = 0040000
	SIFBLK uint16 = 0060000
	SIFIFO uint16 = 0010000

	SIRUSR uint16 = 0400
	SIWUSR uint16 = 0200
	SIXUSR uint16 = 0100
	SIRGRP uint16 = 0040
	SIWGRP uint16 = 0020
	SIXGRP uint16 = 0010
	SIROTH uint16 = 0004
	SIWOTH uint16 = 0002
	SIXOTH uint16 = 0001
)

// / DiskInode_t is the packed on-disk inode record.
type DiskInode_t struct {
	Mode   uint16
	Uid    uint16
	Size   uint32
	Time   uint32
	Gid    uint8
	Nlinks uint8
	Zones  [NumZones]Zone_t
}

// / Encode packs a DiskInode_t into its 32-byte wire form.
func (d *DiskInode_t) Encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], d.Mode)
	binary.LittleEndian.PutUint16(buf[2:4], d.Uid)
	binary.LittleEndian.PutUint32(buf[4:8], d.Size)
	binary.LittleEndian.PutUint32(buf[8:12], d.Time)
	buf[12] = d.Gid
	buf[13] = d.Nlinks
	for i, z := range d.Zones {
		binary.LittleEndian.PutUint16(buf[14+i*2:16+i*2], uint16(z))
	}
}

// / DecodeDiskInode unpacks a DiskInode_t from its 32-byte wire form.
func DecodeDiskInode(buf []byte) DiskInode_t {
	var d DiskInode_t
	d.Mode = binary.LittleEndian.Uint16(buf[0:2])
	d.Uid = binary.LittleEndian.Uint16(buf[2:4])
	d.Size = binary.LittleEndian.Uint32(buf[4:8])
	d.Time = binary.LittleEndian.Uint32(buf[8:12])
	d.Gid = buf[12]
	d.Nlinks = buf[13]
	for i := range d.Zones {
		d.Zones[i] = Zone_t(binary.LittleEndian.Uint16(buf[14+i*2 : 16+i*2]))
	}
	return d
}

// / IsDir reports whether d names a directory.
func (d *DiskInode_t) IsDir() bool { return d.Mode&SIFMT == SIFDIR }

// / IsReg reports whether d names a regular file.
func (d *DiskInode_t) IsReg() bool { return d.Mode&SIFMT == SIFREG }

// / IsBlk reports whether d names a block device special file.
func (d *DiskInode_t) IsBlk() bool { return d.Mode&SIFMT == SIFBLK }

// / IsFifo reports whether d names a FIFO special file.
func (d *DiskInode_t) IsFifo() bool { return d.Mode&SIFMT == SIFIFO }

// / Inode_t is the in-core representation of a disk inode: the disk
// / record plus reference counting and dirty tracking for the inode
// / table's write-back discipline.
type Inode_t struct {
	Num      int
	Disk     DiskInode_t
	Refcount int
	Dirty    bool
}

// / InodeTable_t is the fixed-size in-core inode table shared by every
// / open file. A root inode is pinned at refcount 2 for the lifetime of a
// / mount, so that an unmount racing the last file close never evicts it
// / out from under the mount point.
type InodeTable_t struct {
	mu      sync.Mutex
	pool    *respool.Pool_t
	entries []*Inode_t
	byNum   map[int]int
	fs      *FileSystem_t
}

// / NewInodeTable creates a table of capacity n backed by fs for disk
// / reads/writes.
func NewInodeTable(n int, fs *FileSystem_t) *InodeTable_t {
	return &InodeTable_t{
		pool:    respool.New(n),
		entries: make([]*Inode_t, n),
		byNum:   make(map[int]int),
		fs:      fs,
	}
}

// / Get resolves an inode number to an in-core Inode_t, reading it from
// / disk on first reference and pinning it (Refcount++).
func (t *InodeTable_t) Get(num int) (*Inode_t, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slot, ok := t.byNum[num]; ok {
		t.entries[slot].Refcount++
		return t.entries[slot], errs.OK
	}

	slot := t.pool.Alloc()
	if slot < 0 {
		return nil, errs.ENFILE
	}

	disk, err := t.fs.readDiskInode(num)
	if err.IsErr() {
		t.pool.Free(slot)
		return nil, err
	}

	in := &Inode_t{Num: num, Disk: disk, Refcount: 1}
	t.entries[slot] = in
	t.byNum[num] = slot
	return in, errs.OK
}

// / Put releases a reference to in. When the last reference drops and the
// / inode has no remaining links, its blocks and inode number are freed.
// / A dirty inode is written back before leaving the table.
func (t *InodeTable_t) Put(in *Inode_t) errs.Err_t {
	t.mu.Lock()
	defer t.mu.Unlock()

	in.Refcount--
	if in.Refcount > 0 {
		return errs.OK
	}

	if in.Disk.Nlinks == 0 {
		if err := t.fs.freeInodeBlocks(in); err.IsErr() {
			return err
		}
		if err := t.fs.freeInodeNum(in.Num); err.IsErr() {
			return err
		}
	} else if in.Dirty {
		if err := t.fs.writeDiskInode(in.Num, &in.Disk); err.IsErr() {
			return err
		}
	}

	slot, ok := t.byNum[in.Num]
	if ok {
		delete(t.byNum, in.Num)
		t.pool.Free(slot)
	}
	return errs.OK
}

// / Touch marks in dirty, to be written back on its last Put.
func (t *InodeTable_t) Touch(in *Inode_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in.Dirty = true
}

// / Alloc finds a free inode number via the imap, creates a fresh in-core
// / entry for it with the given mode, and pins it at refcount 1.
func (t *InodeTable_t) Alloc(mode uint16) (*Inode_t, errs.Err_t) {
	num, err := t.fs.allocInodeNum()
	if err.IsErr() {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	slot := t.pool.Alloc()
	if slot < 0 {
		_ = t.fs.freeInodeNum(num)
		return nil, errs.ENFILE
	}

	in := &Inode_t{Num: num, Disk: DiskInode_t{Mode: mode, Nlinks: 0}, Refcount: 1, Dirty: true}
	t.entries[slot] = in
	t.byNum[num] = slot
	return in, errs.OK
}
