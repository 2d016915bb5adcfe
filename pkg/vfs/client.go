package vfs

import (
	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / Client_t is a synchronous stub for talking to one VFS server over a
// / transport fabric, resolving its address through the name service.
type Client_t struct {
	fab  *transport.Fabric_t
	self transport.Endpoint_t
	ns   *nameservice.Client_t
	name string
	seq  uint64
}

// / NewClient binds a client identity (self) to a fabric and name service.
func NewClient(fab *transport.Fabric_t, self transport.Endpoint_t, ns *nameservice.Client_t, serverName string) *Client_t {
	return &Client_t{fab: fab, self: self, ns: ns, name: serverName}
}

func (c *Client_t) resolve() (transport.Endpoint_t, errs.Err_t) {
	return c.ns.Lookup(c.name)
}

func (c *Client_t) header(op transport.Opcode_t) transport.Header_t {
	c.seq++
	return transport.Header_t{
		Source:      c.self.Node,
		MailboxPort: c.self.Port,
		PortalPort:  c.self.Port,
		Opcode:      op,
		Seq:         c.seq,
	}
}

func (c *Client_t) roundtrip(req Request_t) (Reply_t, errs.Err_t) {
	srv, err := c.resolve()
	if err.IsErr() {
		return Reply_t{}, err
	}
	mbox := c.fab.MailboxOpen(srv)
	_ = mbox.Write(encode(req))

	reply := c.fab.MailboxOpen(c.self)
	buf := make([]byte, MaxMessage*2)
	n, _ := reply.Read(buf)
	var rep Reply_t
	_ = decode(buf[:n], &rep)
	return rep, errs.OK
}

// / Creat creates (or truncates) path and returns an open handle.
func (c *Client_t) Creat(path string, mode uint16, caller int) (int, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpCreat), Path: path, Flags: ORDWR | OTRUNC, Mode: mode, Caller: caller})
	if err.IsErr() {
		return -1, err
	}
	return rep.Handle, rep.Err
}

// / Open opens path under flags/mode as caller.
func (c *Client_t) Open(path string, flags OpenFlags_t, mode uint16, caller int) (int, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpOpen), Path: path, Flags: flags, Mode: mode, Caller: caller})
	if err.IsErr() {
		return -1, err
	}
	return rep.Handle, rep.Err
}

// / Unlink removes path's directory entry as caller. Removing a directory
// / requires caller to be the superuser (uid 0).
func (c *Client_t) Unlink(path string, caller int) errs.Err_t {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpUnlink), Path: path, Caller: caller})
	if err.IsErr() {
		return err
	}
	return rep.Err
}

// / Close releases handle.
func (c *Client_t) Close(handle int) errs.Err_t {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpClose), Handle: handle})
	if err.IsErr() {
		return err
	}
	return rep.Err
}

// / Link adds newpath as another name for oldpath's inode.
func (c *Client_t) Link(oldpath, newpath string) errs.Err_t {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpLink), Path: oldpath, Path2: newpath})
	if err.IsErr() {
		return err
	}
	return rep.Err
}

// / Truncate resets handle's file to zero length.
func (c *Client_t) Truncate(handle int) errs.Err_t {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpTruncate), Handle: handle})
	if err.IsErr() {
		return err
	}
	return rep.Err
}

// / Mkdir creates an empty directory at path.
func (c *Client_t) Mkdir(path string, mode uint16, caller int) errs.Err_t {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpMkdir), Path: path, Mode: mode, Caller: caller})
	if err.IsErr() {
		return err
	}
	return rep.Err
}

// / Stat returns handle's status record (fstat-like).
func (c *Client_t) Stat(handle int) (Stat_t, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpStat), Handle: handle})
	if err.IsErr() {
		return Stat_t{}, err
	}
	return rep.Stat, rep.Err
}

// / StatPath returns path's status record without opening it (stat-like).
func (c *Client_t) StatPath(path string) (Stat_t, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpStat), Path: path})
	if err.IsErr() {
		return Stat_t{}, err
	}
	return rep.Stat, rep.Err
}

// / Read reads up to len(buf) bytes from handle's cursor.
func (c *Client_t) Read(handle int, buf []byte) (int, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpRead), Handle: handle})
	if err.IsErr() {
		return 0, err
	}
	n := copy(buf, rep.Data)
	return n, rep.Err
}

// / Write stores data at handle's cursor.
func (c *Client_t) Write(handle int, data []byte) (int, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpWrite), Handle: handle, Data: data})
	if err.IsErr() {
		return 0, err
	}
	return rep.N, rep.Err
}

// / Seek repositions handle's cursor.
func (c *Client_t) Seek(handle int, offset int64, whence Whence_t) (int64, errs.Err_t) {
	rep, err := c.roundtrip(Request_t{Header: c.header(OpSeek), Handle: handle, Offset: offset, Whence: whence})
	if err.IsErr() {
		return 0, err
	}
	return rep.Offset, rep.Err
}

// / Exit tells the server to stop serving.
func (c *Client_t) Exit() errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	mbox := c.fab.MailboxOpen(srv)
	_ = mbox.Write(encode(Request_t{Header: c.header(OpExit)}))
	return errs.OK
}
