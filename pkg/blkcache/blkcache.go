// Package blkcache implements the VFS block cache of §4.6: a fixed table
// of buffers fronting a block device, evicted by a clock sweep that
// prefers an unpinned clean buffer over an unpinned dirty one, and never
// touches a pinned (refcount > 0) buffer.
package blkcache

import (
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/internal/logx"
)

// / Disk_i is the backing block device a cache fronts.
type Disk_i interface {
	ReadBlock(blkno int64, buf []byte) error
	WriteBlock(blkno int64, buf []byte) error
}

// / Buffer_t is one cache slot.
type Buffer_t struct {
	used     bool
	valid    bool
	dirty    bool
	refcount int
	blkno    int64
	data     []byte
}

// / Cache_t is a fixed-size block buffer cache.
type Cache_t struct {
	mu        sync.Mutex
	disk      Disk_i
	bufs      []Buffer_t
	clock     int
	blockSize int
	log       *logx.Logger
}

// / New creates a cache of nbufs buffers of blockSize bytes each, fronting
// / disk. The original reserves at least 32 buffers; this is a caller
// / choice here.
func New(nbufs, blockSize int, disk Disk_i) *Cache_t {
	bufs := make([]Buffer_t, nbufs)
	for i := range bufs {
		bufs[i].data = make([]byte, blockSize)
	}
	return &Cache_t{
		bufs:      bufs,
		disk:      disk,
		blockSize: blockSize,
		log:       logx.New("bcache"),
	}
}

func (c *Cache_t) lookup(blkno int64) int {
	for i := range c.bufs {
		if c.bufs[i].used && c.bufs[i].blkno == blkno {
			return i
		}
	}
	return -1
}

// / evict runs the clock sweep: it scans buffers starting from the clock
// / hand, skipping pinned ones, and prefers a clean buffer to a dirty one.
// / A dirty victim is written back before being reused. Returns EBUSY if
// / every buffer is pinned.
func (c *Cache_t) evict() (int, errs.Err_t) {
	n := len(c.bufs)

	dirtyVictim := -1
	for step := 0; step < n; step++ {
		i := (c.clock + step) % n
		b := &c.bufs[i]
		if b.refcount > 0 {
			continue
		}
		if !b.used || !b.dirty {
			c.clock = (i + 1) % n
			return i, errs.OK
		}
		if dirtyVictim == -1 {
			dirtyVictim = i
		}
	}

	if dirtyVictim == -1 {
		c.log.Printf("every buffer pinned, cannot evict")
		return -1, errs.EBUSY
	}

	b := &c.bufs[dirtyVictim]
	if err := c.disk.WriteBlock(b.blkno, b.data); err != nil {
		return -1, errs.EIO
	}
	c.clock = (dirtyVictim + 1) % n
	return dirtyVictim, errs.OK
}

// / GetBlk returns the index of the buffer caching blkno, pinning it,
// / allocating and evicting as needed. The returned buffer's data is not
// / guaranteed to reflect the disk contents until read via BRead.
func (c *Cache_t) GetBlk(blkno int64) (int, errs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.lookup(blkno); i >= 0 {
		c.bufs[i].refcount++
		return i, errs.OK
	}

	i, err := c.evict()
	if err.IsErr() {
		return -1, err
	}
	data := c.bufs[i].data
	for j := range data {
		data[j] = 0
	}
	c.bufs[i] = Buffer_t{used: true, refcount: 1, blkno: blkno, data: data}
	return i, errs.OK
}

// / BRead returns a pinned buffer for blkno, reading it from disk on first
// / acquisition.
func (c *Cache_t) BRead(blkno int64) (int, errs.Err_t) {
	i, err := c.GetBlk(blkno)
	if err.IsErr() {
		return -1, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bufs[i].valid {
		if rerr := c.disk.ReadBlock(blkno, c.bufs[i].data); rerr != nil {
			return -1, errs.EIO
		}
		c.bufs[i].valid = true
	}
	return i, errs.OK
}

// / BWrite writes a pinned buffer straight through to disk and clears its
// / dirty bit.
func (c *Cache_t) BWrite(i int) errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.bufs) || !c.bufs[i].used {
		return errs.EINVAL
	}
	if err := c.disk.WriteBlock(c.bufs[i].blkno, c.bufs[i].data); err != nil {
		return errs.EIO
	}
	c.bufs[i].dirty = false
	c.bufs[i].valid = true
	return errs.OK
}

// / BWrite2 defers the write: it only marks the buffer dirty, to be
// / flushed on eviction or an explicit BWrite/Sync.
func (c *Cache_t) BWrite2(i int) errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.bufs) || !c.bufs[i].used {
		return errs.EINVAL
	}
	c.bufs[i].dirty = true
	c.bufs[i].valid = true
	return errs.OK
}

// / BRelse releases a pin acquired through GetBlk/BRead.
func (c *Cache_t) BRelse(i int) errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.bufs) || c.bufs[i].refcount <= 0 {
		return errs.EINVAL
	}
	c.bufs[i].refcount--
	return errs.OK
}

// / SetDirty marks buffer i dirty without writing it.
func (c *Cache_t) SetDirty(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bufs[i].dirty = true
}

// / IsDirty reports whether buffer i carries unflushed modifications.
func (c *Cache_t) IsDirty(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufs[i].dirty
}

// / GetData returns the raw backing slice for buffer i. Callers must hold
// / a pin (via GetBlk/BRead) for the duration of any access.
func (c *Cache_t) GetData(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufs[i].data
}

// / Sync flushes every dirty buffer to disk without releasing pins.
func (c *Cache_t) Sync() errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.bufs {
		if c.bufs[i].used && c.bufs[i].dirty {
			if err := c.disk.WriteBlock(c.bufs[i].blkno, c.bufs[i].data); err != nil {
				return errs.EIO
			}
			c.bufs[i].dirty = false
		}
	}
	return errs.OK
}
