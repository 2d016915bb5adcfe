// Package rcache implements the per-client write-back page cache fronting
// RMEM, described in §4.4: a fixed table of lines, a pluggable replacement
// policy (BYPASS or FIFO), and get/put pinning semantics where a positive
// refcount keeps a line from being evicted.
package rcache

import (
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/rmem"
)

// / Policy_t selects the replacement strategy used when every line is
// / occupied and a new page must be brought in.
type Policy_t int

const (
	// / PolicyBypass always evicts line 0, regardless of age or pinning
	// / state (besides the pinned-line rejection every policy honors).
	PolicyBypass Policy_t = iota
	// / PolicyFIFO evicts the non-pinned line with the smallest age —
	// / i.e. the one resident longest.
	PolicyFIFO
)

// / Line_t is one cache slot: a resident RMEM page plus its bookkeeping.
type Line_t struct {
	age      int64
	valid    bool
	dirty    bool
	refcount int
	pgnum    rmem.Rpage_t
	data     rmem.Block_t
}

// / Stats_t mirrors the cache's {ngets, nmisses, nhits} counters.
type Stats_t struct {
	Ngets   int
	Nmisses int
	Nhits   int
}

// / backend is the subset of rmem.Client_t the cache needs, so tests can
// / substitute a fake without a full transport fabric.
type backend interface {
	Read(page rmem.Rpage_t, out *rmem.Block_t) errs.Err_t
	Write(page rmem.Rpage_t, in *rmem.Block_t) errs.Err_t
}

// / Cache_t is one client's write-back cache over RMEM. A cache instance is
// / not meant to be shared across goroutines without external
// / synchronization beyond what its own mutex gives you, matching the rest
// / of the core's single-threaded-per-client discipline.
type Cache_t struct {
	mu      sync.Mutex
	lines   []Line_t
	policy  Policy_t
	clock   int64
	client  backend
	log     *logx.Logger
	ngets   int
	nmisses int
	nhits   int
}

// / New creates a cache of nlines lines talking to client over the given
// / replacement policy.
func New(nlines int, policy Policy_t, client backend) *Cache_t {
	return &Cache_t{
		lines:  make([]Line_t, nlines),
		policy: policy,
		client: client,
		log:    logx.New("rcache"),
	}
}

// / SetPolicy changes the replacement policy in effect for subsequent
// / misses. An unknown policy is logged as a warning and replaced by
// / PolicyBypass.
func (c *Cache_t) SetPolicy(p Policy_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p != PolicyBypass && p != PolicyFIFO {
		c.log.Warnf("unknown replacement policy %d, falling back to bypass", p)
		p = PolicyBypass
	}
	c.policy = p
}

// / Stats returns a snapshot of the cache's request counters.
func (c *Cache_t) Stats() Stats_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats_t{Ngets: c.ngets, Nmisses: c.nmisses, Nhits: c.nhits}
}

func (c *Cache_t) lookup(page rmem.Rpage_t) int {
	for i := range c.lines {
		if c.lines[i].valid && c.lines[i].pgnum == page {
			return i
		}
	}
	return -1
}

// / selectVictim picks a line to reclaim under the current policy. It
// / never returns a pinned (refcount > 0) line; if every candidate line is
// / pinned it returns -1.
func (c *Cache_t) selectVictim() int {
	switch c.policy {
	case PolicyBypass:
		if len(c.lines) == 0 {
			return -1
		}
		if c.lines[0].refcount > 0 {
			return -1
		}
		return 0
	case PolicyFIFO:
		best := -1
		for i := range c.lines {
			if c.lines[i].refcount > 0 {
				continue
			}
			if !c.lines[i].valid {
				return i
			}
			if best == -1 || c.lines[i].age < c.lines[best].age {
				best = i
			}
		}
		return best
	default:
		return -1
	}
}

func (c *Cache_t) writeback(i int) errs.Err_t {
	if !c.lines[i].valid || !c.lines[i].dirty {
		return errs.OK
	}
	return c.client.Write(c.lines[i].pgnum, &c.lines[i].data)
}

// / Get resolves page to a line, pinning it (refcount++) on success. A hit
// / returns the cached data immediately; a miss evicts a victim line
// / (writing it back first if dirty), fetches page from the backend, and
// / installs it. Returns EAGAIN if the policy cannot find an unpinned
// / victim to reclaim.
func (c *Cache_t) Get(page rmem.Rpage_t) (*rmem.Block_t, int, errs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ngets++

	if i := c.lookup(page); i >= 0 {
		c.nhits++
		c.lines[i].refcount++
		return &c.lines[i].data, i, errs.OK
	}

	c.nmisses++
	victim := c.selectVictim()
	if victim < 0 {
		c.log.Printf("no unpinned line available for eviction")
		return nil, -1, errs.EAGAIN
	}

	if err := c.writeback(victim); err.IsErr() {
		return nil, -1, err
	}

	var blk rmem.Block_t
	if err := c.client.Read(page, &blk); err.IsErr() {
		return nil, -1, err
	}

	c.clock++
	c.lines[victim] = Line_t{
		age:      c.clock,
		valid:    true,
		dirty:    false,
		refcount: 1,
		pgnum:    page,
		data:     blk,
	}
	return &c.lines[victim].data, victim, errs.OK
}

// / Put releases a line acquired through Get. If dirty is true the line is
// / marked modified and will be written back on eviction or Sync.
func (c *Cache_t) Put(index int, dirty bool) errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.lines) {
		return errs.EINVAL
	}
	if c.lines[index].refcount <= 0 {
		return errs.EINVAL
	}
	c.lines[index].refcount--
	if dirty {
		c.lines[index].dirty = true
	}
	return errs.OK
}

// / Sync flushes every dirty, valid line to the backend without evicting
// / it, e.g. before an orderly client shutdown.
func (c *Cache_t) Sync() errs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if err := c.writeback(i); err.IsErr() {
			return err
		}
		c.lines[i].dirty = false
	}
	return errs.OK
}
