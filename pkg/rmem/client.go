package rmem

import (
	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / Client_t is a synchronous stub for talking to one RMEM server over a
// / transport fabric, resolving the server's address through the name
// / service on first use.
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

// / Alloc requests a new page from the server, attributing ownership to
// / owner (the caller's process identity).
func (c *Client_t) Alloc(owner int) (Rpage_t, errs.Err_t) {
	srv, err := c.resolve()
	if err.IsErr() {
		return Null, err
	}
	req := Request_t{Header: c.header(OpAlloc), Owner: owner}
	rep := c.roundtrip(srv, req)
	return rep.Page, rep.Err
}

// / Free releases page, owned by owner.
func (c *Client_t) Free(owner int, page Rpage_t) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpFree), Owner: owner, Page: page}
	rep := c.roundtrip(srv, req)
	return rep.Err
}

// / Read fetches the contents of page into out via the two-phase
// / mailbox-ACK-then-portal exchange.
func (c *Client_t) Read(page Rpage_t, out *Block_t) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpRead), Page: page}

	portal := c.fab.PortalOpen(c.self)
	mbox := c.fab.MailboxOpen(srv)
	_ = mbox.Write(encode(req))

	reply := c.fab.MailboxOpen(c.self)
	buf := make([]byte, 4096)
	n, _ := reply.Read(buf)
	var rep Reply_t
	_ = decode(buf[:n], &rep)

	pbuf := make([]byte, BlockSize)
	_, _ = portal.Read(pbuf)
	copy(out[:], pbuf)
	return rep.Err
}

// / Write stores in into page via the two-phase protocol.
func (c *Client_t) Write(page Rpage_t, in *Block_t) errs.Err_t {
	srv, err := c.resolve()
	if err.IsErr() {
		return err
	}
	req := Request_t{Header: c.header(OpWrite), Page: page}

	mbox := c.fab.MailboxOpen(srv)
	_ = mbox.Write(encode(req))

	portal := c.fab.PortalOpen(srv)
	_ = portal.Write(in[:])

	reply := c.fab.MailboxOpen(c.self)
	buf := make([]byte, 4096)
	n, _ := reply.Read(buf)
	var rep Reply_t
	_ = decode(buf[:n], &rep)
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
