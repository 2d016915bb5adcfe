package vfs

import (
	"testing"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/minixfs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
	"github.com/stretchr/testify/require"
)

func TestServerClientRoundTrip(t *testing.T) {
	disk := newMemDisk()
	require.Equal(t, errs.OK, minixfs.Mkfs(disk, 16384, 64))
	fs, err := minixfs.Mount(disk, 16, 16)
	require.Equal(t, errs.OK, err)
	ft := NewFileTable(8, fs)

	fab := transport.NewFabric()
	nsServer := nameservice.NewServer()
	ns := nameservice.NewClient(nsServer)

	serverEp := transport.Endpoint_t{Node: 1, Port: 1}
	l := NewListener(ft, fab, serverEp, "/vfs0", ns)
	go l.Serve()

	clientEp := transport.Endpoint_t{Node: 2, Port: 1}
	c := NewClient(fab, clientEp, ns, "/vfs0")

	h, err := c.Creat("/remote.txt", 0644, 1)
	require.Equal(t, errs.OK, err)
	require.GreaterOrEqual(t, h, 0)

	n, err := c.Write(h, []byte("over the wire"))
	require.Equal(t, errs.OK, err)
	require.Equal(t, 13, n)

	_, err = c.Seek(h, 0, SeekSet)
	require.Equal(t, errs.OK, err)

	buf := make([]byte, 32)
	n, err = c.Read(h, buf)
	require.Equal(t, errs.OK, err)
	require.Equal(t, "over the wire", string(buf[:n]))

	require.Equal(t, errs.OK, c.Close(h))
	require.Equal(t, errs.OK, c.Exit())
}
