// Package shm implements the shared-memory region server of §4.5: a
// name -> rpage directory with POSIX shm_open-style semantics (O_CREAT,
// O_EXCL, O_TRUNC, O_ACCMODE), refcounted regions, zombie/removal
// lifecycle on unlink, and invalidation broadcast to snoopers.
package shm

import (
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/respool"
	"github.com/nanvix/multikernel-sub000/pkg/rmem"
)

// / NameMax bounds a shared memory region's name length.
const NameMax = 32

// / SizeMax bounds a region to a single RMEM block, per the page-addressed
// / backing store every region's single Page handle refers to.
const SizeMax = rmem.BlockSize

// / OpenFlags_t carries the shm_open-style open flags.
type OpenFlags_t uint32

const (
	ORDONLY OpenFlags_t = 0
	OWRONLY OpenFlags_t = 1
	ORDWR   OpenFlags_t = 2
	OACCMODE OpenFlags_t = 0x3

	OCREAT OpenFlags_t = 1 << 4
	OEXCL  OpenFlags_t = 1 << 5
	OTRUNC OpenFlags_t = 1 << 6
)

// / Mode_t mirrors a POSIX-ish owner/other permission mode: bit 1 write,
// / bit 2 read, shifted 3 for "other".
type Mode_t uint32

const (
	ModeOwnerRead  Mode_t = 1 << 2
	ModeOwnerWrite Mode_t = 1 << 1
	ModeOtherRead  Mode_t = 1 << 5
	ModeOtherWrite Mode_t = 1 << 4
)

// / pageBackend is the subset of rmem.Client_t a region needs to acquire
// / and release its single backing block.
type pageBackend interface {
	Alloc(owner int) (rmem.Rpage_t, errs.Err_t)
	Free(owner int, page rmem.Rpage_t) errs.Err_t
}

// / Region_t is one shared-memory region's directory record.
type Region_t struct {
	Name     string
	Owner    int
	Refcount int
	Mode     Mode_t
	Size     int
	Page     rmem.Rpage_t
	zombie   bool /// unlinked but still open by at least one client
}

// / Server_t is the shared-memory name directory and region table.
type Server_t struct {
	mu        sync.Mutex
	pool      *respool.Pool_t
	regions   []Region_t
	byName    map[string]int
	pages     pageBackend
	snoopers  map[string][]chan struct{}
	log       *logx.Logger
}

// / NewServer creates an empty directory of maxRegions capacity, backed by
// / pages for block allocation.
func NewServer(maxRegions int, pages pageBackend) *Server_t {
	return &Server_t{
		pool:     respool.New(maxRegions),
		regions:  make([]Region_t, maxRegions),
		byName:   make(map[string]int),
		pages:    pages,
		snoopers: make(map[string][]chan struct{}),
		log:      logx.New("shm"),
	}
}

func validName(name string) errs.Err_t {
	if name == "" {
		return errs.EINVAL
	}
	if len(name) >= NameMax {
		return errs.ENAMETOOLONG
	}
	return errs.OK
}

func hasPermission(owner, caller int, mode Mode_t, flags OpenFlags_t) bool {
	accmode := flags & OACCMODE
	var need Mode_t
	if owner == caller {
		if accmode == ORDONLY || accmode == ORDWR {
			need |= ModeOwnerRead
		}
		if accmode == OWRONLY || accmode == ORDWR {
			need |= ModeOwnerWrite
		}
	} else {
		if accmode == ORDONLY || accmode == ORDWR {
			need |= ModeOtherRead
		}
		if accmode == OWRONLY || accmode == ORDWR {
			need |= ModeOtherWrite
		}
	}
	return mode&need == need
}

// / Open resolves name to a region handle, creating it when O_CREAT is set
// / and no region with that name exists. Returns EEXIST if O_CREAT|O_EXCL
// / is set and the region already exists, ENOENT if it does not exist and
// / O_CREAT is unset, and EACCES if caller lacks the requested access
// / under the existing region's mode; mode applies only to a region this
// / call creates.
func (s *Server_t) Open(name string, flags OpenFlags_t, mode Mode_t, caller int) (int, errs.Err_t) {
	if err := validName(name); err.IsErr() {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.byName[name]; ok {
		r := &s.regions[idx]
		if flags&OCREAT != 0 && flags&OEXCL != 0 {
			return -1, errs.EEXIST
		}
		if !hasPermission(r.Owner, caller, r.Mode, flags) {
			return -1, errs.EACCES
		}
		if flags&OTRUNC != 0 {
			s.truncateLocked(idx, 0, caller)
		}
		r.Refcount++
		return idx, errs.OK
	}

	if flags&OCREAT == 0 {
		return -1, errs.ENOENT
	}

	idx := s.pool.Alloc()
	if idx < 0 {
		s.log.Printf("region table exhausted")
		return -1, errs.ENFILE
	}

	s.regions[idx] = Region_t{
		Name:     name,
		Owner:    caller,
		Refcount: 1,
		Mode:     mode,
		Size:     0,
		Page:     rmem.Null,
	}
	s.byName[name] = idx
	return idx, errs.OK
}

// / Close decrements a region's refcount, releasing its backing page and
// / table slot once the count reaches zero and it has been unlinked.
func (s *Server_t) Close(handle int) errs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle < 0 || handle >= len(s.regions) || !s.pool.IsUsed(handle) {
		return errs.EBADF
	}
	r := &s.regions[handle]
	r.Refcount--
	if r.Refcount < 0 {
		r.Refcount = 0
	}
	if r.Refcount == 0 && r.zombie {
		s.releaseLocked(handle)
	}
	return errs.OK
}

// / Unlink removes name from the directory. Only the region's owner may
// / unlink it (§4.5.3); anyone else gets EACCES. If the region is still
// / open by some client, removal is deferred (the region becomes a
// / zombie) until the last Close.
func (s *Server_t) Unlink(name string, caller int) errs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byName[name]
	if !ok {
		return errs.ENOENT
	}
	if s.regions[idx].Owner != caller {
		return errs.EACCES
	}
	delete(s.byName, name)
	if s.regions[idx].Refcount == 0 {
		s.releaseLocked(idx)
	} else {
		s.regions[idx].zombie = true
	}
	return errs.OK
}

func (s *Server_t) releaseLocked(idx int) {
	r := &s.regions[idx]
	if r.Page != rmem.Null {
		_ = s.pages.Free(r.Owner, r.Page)
	}
	s.pool.Free(idx)
	s.regions[idx] = Region_t{}
}

// / Ftruncate resizes a region's data to size bytes. Only 0 and SizeMax
// / are meaningful given the single-page backing store; anything larger
// / fails with EFBIG. Requires write access to the region under its mode.
func (s *Server_t) Ftruncate(handle int, size int, caller int) errs.Err_t {
	if size < 0 || size > SizeMax {
		return errs.EFBIG
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle < 0 || handle >= len(s.regions) || !s.pool.IsUsed(handle) {
		return errs.EBADF
	}
	r := &s.regions[handle]
	if !hasPermission(r.Owner, caller, r.Mode, OWRONLY) {
		return errs.EACCES
	}
	return s.truncateLocked(handle, size, caller)
}

func (s *Server_t) truncateLocked(handle, size, caller int) errs.Err_t {
	r := &s.regions[handle]
	if size == 0 {
		if r.Page != rmem.Null {
			_ = s.pages.Free(caller, r.Page)
			r.Page = rmem.Null
		}
		r.Size = 0
		return errs.OK
	}
	if r.Page == rmem.Null {
		page, err := s.pages.Alloc(caller)
		if err.IsErr() {
			return err
		}
		r.Page = page
	}
	r.Size = size
	return errs.OK
}

// / Stat returns a copy of the region record for handle.
func (s *Server_t) Stat(handle int) (Region_t, errs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle < 0 || handle >= len(s.regions) || !s.pool.IsUsed(handle) {
		return Region_t{}, errs.EBADF
	}
	return s.regions[handle], errs.OK
}

// / Subscribe registers the caller as a snooper on name, returning a
// / channel that is signaled on every subsequent Invalidate(name).
func (s *Server_t) Subscribe(name string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.snoopers[name] = append(s.snoopers[name], ch)
	return ch
}

// / Invalidate broadcasts an INVAL notification to every snooper
// / registered on name, e.g. after a remote writer changes the region's
// / contents.
func (s *Server_t) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.snoopers[name] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
