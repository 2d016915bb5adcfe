package rmem

import (
	"testing"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockZeroReserved(t *testing.T) {
	s := NewServer(0, 8)
	assert.Equal(t, 1, s.BitmapSetCount(), "block 0 must start allocated")
}

func TestAllocFreeConservation(t *testing.T) {
	s := NewServer(0, 4)
	before := s.BitmapSetCount()

	p1, err := s.Alloc(1)
	require.Equal(t, errs.OK, err)
	p2, err := s.Alloc(1)
	require.Equal(t, errs.OK, err)

	assert.Equal(t, before+2, s.BitmapSetCount())

	require.Equal(t, errs.OK, s.Free(1, p1))
	require.Equal(t, errs.OK, s.Free(1, p2))
	assert.Equal(t, before, s.BitmapSetCount(), "alloc/free must be conservative")
}

func TestAllocExhaustion(t *testing.T) {
	s := NewServer(0, 2) // block 0 reserved, only one free slot
	_, err := s.Alloc(1)
	require.Equal(t, errs.OK, err)
	_, err = s.Alloc(1)
	assert.Equal(t, errs.ENOMEM, err)
}

func TestFreeRejectsBadHandle(t *testing.T) {
	s := NewServer(0, 4)
	assert.Equal(t, errs.EINVAL, s.Free(1, Null))
	assert.Equal(t, errs.EINVAL, s.Free(1, MkRpage(0, 99)))
	assert.Equal(t, errs.EFAULT, s.Free(1, MkRpage(0, 1)), "freeing an unallocated block faults")
}

func TestFreeRejectsWrongOwner(t *testing.T) {
	s := NewServer(0, 4)
	page, err := s.Alloc(1)
	require.Equal(t, errs.OK, err)
	assert.Equal(t, errs.EFAULT, s.Free(2, page))
	assert.Equal(t, errs.OK, s.Free(1, page))
}

func TestReadWriteRoundTrip(t *testing.T) {
	s := NewServer(0, 4)
	page, err := s.Alloc(1)
	require.Equal(t, errs.OK, err)

	var in Block_t
	copy(in[:], []byte("hello rmem"))
	require.Equal(t, errs.OK, s.Write(page, &in))

	var out Block_t
	require.Equal(t, errs.OK, s.Read(page, &out))
	assert.Equal(t, in, out)
}

func TestInvalidHandleRedirectsToSink(t *testing.T) {
	s := NewServer(0, 4)
	var out Block_t
	err := s.Read(MkRpage(0, 99), &out)
	assert.Equal(t, errs.EFAULT, err)
	assert.Equal(t, Block_t{}, out, "faulted read still returns the (zeroed) sink block")

	var in Block_t
	copy(in[:], []byte("clobber"))
	err = s.Write(Null, &in)
	assert.Equal(t, errs.EFAULT, err)
}

func TestHandleCrossServerRejected(t *testing.T) {
	s := NewServer(1, 4)
	foreign := MkRpage(2, 1)
	assert.Equal(t, errs.EINVAL, s.Free(1, foreign))
}

// TestClientServerReadWriteAcrossDistinctEndpoints wires a Client_t and a
// Listener on distinct nodes, the normal case for a distributed deployment,
// and drives ALLOC/WRITE/READ/EXIT over the portal. This exercises the
// server-to-client and client-to-server bulk transfer directions that a
// direct Server_t test (above) never touches.
func TestClientServerReadWriteAcrossDistinctEndpoints(t *testing.T) {
	fab := transport.NewFabric()
	ns := nameservice.NewClient(nameservice.NewServer())

	srv := NewServer(0, 4)
	srvEp := transport.Endpoint_t{Node: 1, Port: 1}
	listener := NewListener(srv, fab, srvEp, "/rmem0", ns)

	done := make(chan struct{})
	go func() {
		listener.Serve()
		close(done)
	}()

	cliEp := transport.Endpoint_t{Node: 2, Port: 1}
	cli := NewClient(fab, cliEp, ns, "/rmem0")

	page, err := cli.Alloc(7)
	require.Equal(t, errs.OK, err)

	var in Block_t
	copy(in[:], []byte("hello across nodes"))
	require.Equal(t, errs.OK, cli.Write(page, &in))

	var out Block_t
	require.Equal(t, errs.OK, cli.Read(page, &out))
	assert.Equal(t, in, out)

	require.Equal(t, errs.OK, cli.Free(7, page))
	require.Equal(t, errs.OK, cli.Exit())
	<-done
}
