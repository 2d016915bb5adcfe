package shm

import (
	"testing"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/rmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	next int
}

func (f *fakePages) Alloc(owner int) (rmem.Rpage_t, errs.Err_t) {
	f.next++
	return rmem.MkRpage(0, f.next), errs.OK
}

func (f *fakePages) Free(owner int, page rmem.Rpage_t) errs.Err_t {
	return errs.OK
}

func TestOpenCreateAndExcl(t *testing.T) {
	s := NewServer(4, &fakePages{})

	h, err := s.Open("/seg", OCREAT|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	require.Equal(t, errs.OK, err)
	require.GreaterOrEqual(t, h, 0)

	_, err = s.Open("/seg", OCREAT|OEXCL|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	assert.Equal(t, errs.EEXIST, err)
}

func TestOpenWithoutCreateMissing(t *testing.T) {
	s := NewServer(4, &fakePages{})
	_, err := s.Open("/missing", ORDONLY, 0, 1)
	assert.Equal(t, errs.ENOENT, err)
}

func TestOpenPermissionDenied(t *testing.T) {
	s := NewServer(4, &fakePages{})
	_, err := s.Open("/seg", OCREAT|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	require.Equal(t, errs.OK, err)

	_, err = s.Open("/seg", ORDWR, 0, 2)
	assert.Equal(t, errs.EACCES, err, "non-owner with no other-bits granted must be denied")
}

func TestRefcountMonotoneAcrossOpenClose(t *testing.T) {
	s := NewServer(4, &fakePages{})
	h1, err := s.Open("/seg", OCREAT|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	require.Equal(t, errs.OK, err)

	h2, err := s.Open("/seg", ORDWR, 0, 1)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, h1, h2)

	r, _ := s.Stat(h1)
	assert.Equal(t, 2, r.Refcount)

	require.Equal(t, errs.OK, s.Close(h1))
	r, _ = s.Stat(h2)
	assert.Equal(t, 1, r.Refcount)
}

func TestUnlinkDeferredUntilLastClose(t *testing.T) {
	s := NewServer(4, &fakePages{})
	h, err := s.Open("/seg", OCREAT|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	require.Equal(t, errs.OK, err)

	require.Equal(t, errs.OK, s.Unlink("/seg", 1))

	// Name is gone from the directory even though the region is still open.
	_, err = s.Open("/seg", ORDONLY, 0, 1)
	assert.Equal(t, errs.ENOENT, err)

	require.Equal(t, errs.OK, s.Close(h))
	_, err = s.Stat(h)
	assert.Equal(t, errs.EBADF, err, "zombie region must be released on last close")
}

func TestUnlinkRejectsNonOwner(t *testing.T) {
	s := NewServer(4, &fakePages{})
	h, err := s.Open("/seg", OCREAT|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	require.Equal(t, errs.OK, err)

	assert.Equal(t, errs.EACCES, s.Unlink("/seg", 2))

	require.Equal(t, errs.OK, s.Close(h))
	require.Equal(t, errs.OK, s.Unlink("/seg", 1))
}

func TestFtruncateAllocatesAndFreesPage(t *testing.T) {
	s := NewServer(4, &fakePages{})
	h, err := s.Open("/seg", OCREAT|ORDWR, ModeOwnerRead|ModeOwnerWrite, 1)
	require.Equal(t, errs.OK, err)

	require.Equal(t, errs.OK, s.Ftruncate(h, SizeMax, 1))
	r, _ := s.Stat(h)
	assert.NotEqual(t, rmem.Null, r.Page)
	assert.Equal(t, SizeMax, r.Size)

	assert.Equal(t, errs.EFBIG, s.Ftruncate(h, SizeMax+1, 1))

	require.Equal(t, errs.OK, s.Ftruncate(h, 0, 1))
	r, _ = s.Stat(h)
	assert.Equal(t, rmem.Null, r.Page)
}

func TestInvalidateBroadcastsToSnoopers(t *testing.T) {
	s := NewServer(4, &fakePages{})
	ch := s.Subscribe("/seg")
	s.Invalidate("/seg")

	select {
	case <-ch:
	default:
		t.Fatal("expected snooper to observe invalidation")
	}
}
