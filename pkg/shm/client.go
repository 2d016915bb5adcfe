package shm

import (
	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / Client_t is a synchronous stub for talking to the SHM server over a
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

func (c *Client_t) roundtrip(srv transport.Endpoint_t, req Request_t) Reply_t {
	mbox := c.fab.MailboxOpen(srv)
	_ = mbox.Write(encode(req))

	reply := c.fab.MailboxOpen(c.self)
	buf := make([]byte, 4096)
	n, _ := reply.Read(buf)
	var rep Reply_t
	_ = decode(buf[:n], &rep)
	return rep
}

// / Open resolves an existing region by name.
func (c *Client_t) Open(name string, flags OpenFlags_t, mode Mode_t, caller int) (int, errs.Err_t) {
	srv, err := c.resolve()
	if err.IsErr() {
		return 0, err
	}
	req := Request_t{Header: c.header(OpOpen), Name: name, Flags: flags, Mode: mode, Caller: caller}
	rep := c.roundtrip(srv, req)
	return rep.Handle, rep.Err
}

// / Create opens name, creating it if it does not already exist.
func (c *Client_t) Create(name string, flags OpenFlags_t, mode Mode_t, caller int) (int, errs.Err_t) {
	srv, err := c.resolve()
	if err.IsErr() {
		return 0, err
	}
	req := Request_t{Header: c.header(OpCreate), Name: name, Flags: flags, Mode: mode, Caller: caller}
	rep := c.roundtrip(srv, req)
	return rep.Handle, rep.Err
}

// / Unlink removes name's directory entry as caller. Only the region's
// / owner may unlink it.
func (c *Client_t) Unlink(name string, caller int) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpUnlink), Name: name, Caller: caller}
	rep := c.roundtrip(srv, req)
	return rep.Err
}

// / Close releases handle.
func (c *Client_t) Close(handle int) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpClose), Handle: handle}
	rep := c.roundtrip(srv, req)
	return rep.Err
}

// / Ftruncate resizes the region backing handle.
func (c *Client_t) Ftruncate(handle int, size int, caller int) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpFtruncate), Handle: handle, Size: size, Caller: caller}
	rep := c.roundtrip(srv, req)
	return rep.Err
}

// / Stat returns the region record backing handle.
func (c *Client_t) Stat(handle int) (Region_t, errs.Err_t) {
	srv, err := c.resolve()
	if err.IsErr() {
		return Region_t{}, err
	}
	req := Request_t{Header: c.header(OpStat), Handle: handle}
	rep := c.roundtrip(srv, req)
	return rep.Region, rep.Err
}

// / Invalidate asks the server to broadcast an INVAL notice to name's
// / subscribers.
func (c *Client_t) Invalidate(name string) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpInval), Name: name}
	rep := c.roundtrip(srv, req)
	return rep.Err
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
