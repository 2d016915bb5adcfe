package rmem

import (
	"bytes"
	"encoding/gob"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / Opcode_t enumerates the RMEM request vocabulary of §4.3.3.
const (
	OpAlloc transport.Opcode_t = iota + 1
	OpFree
	OpRead
	OpWrite
	OpExit
)

// / Request_t is the control message sent on the server's mailbox. Read and
// / Write requests are followed by a portal transfer of exactly BlockSize
// / bytes, per the two-phase mailbox-ACK-then-portal protocol.
type Request_t struct {
	Header transport.Header_t
	Owner  int
	Page   Rpage_t
}

// / Reply_t is the control message echoed back on the client's mailbox.
type Reply_t struct {
	Page Rpage_t
	Err  errs.Err_t
}

// / Listener binds a Server_t to a transport fabric and a well-known name,
// / and dispatches one request at a time from its mailbox — matching the
// / single-threaded event loop described in §5 (do_rmem_loop in the
// / original).
type Listener struct {
	srv  *Server_t
	fab  *transport.Fabric_t
	self transport.Endpoint_t
	name string
	ns   *nameservice.Client_t
}

// / NewListener registers name -> self in the name service and returns a
// / Listener ready to Serve.
func NewListener(srv *Server_t, fab *transport.Fabric_t, self transport.Endpoint_t, name string, ns *nameservice.Client_t) *Listener {
	ns.Link(name, self.Node, self.Port)
	return &Listener{srv: srv, fab: fab, self: self, name: name, ns: ns}
}

func encode(v interface{}) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes()
}

func decode(buf []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(buf)).Decode(v)
}

// / Serve processes requests until an EXIT request is received. It is meant
// / to run in its own goroutine, one per server identity, mirroring one
// / do_rmem_loop per node.
func (l *Listener) Serve() {
	mbox := l.fab.MailboxOpen(l.self)
	defer mbox.Close()

	for {
		buf := make([]byte, 4096)
		n, _ := mbox.Read(buf)
		var req Request_t
		if err := decode(buf[:n], &req); err != nil {
			continue
		}

		replyEp := transport.Endpoint_t{Node: req.Header.Source, Port: req.Header.MailboxPort}
		portalEp := transport.Endpoint_t{Node: req.Header.Source, Port: req.Header.PortalPort}

		switch req.Header.Opcode {
		case OpExit:
			return

		case OpAlloc:
			page, err := l.srv.Alloc(req.Owner)
			l.reply(replyEp, Reply_t{Page: page, Err: err})

		case OpFree:
			err := l.srv.Free(req.Owner, req.Page)
			l.reply(replyEp, Reply_t{Err: err})

		case OpRead:
			var blk Block_t
			err := l.srv.Read(req.Page, &blk)
			l.reply(replyEp, Reply_t{Err: err})
			portal := l.fab.PortalOpen(portalEp)
			_ = portal.Allow(l.self)
			_ = portal.Write(blk[:])

		case OpWrite:
			portal := l.fab.PortalOpen(l.self)
			_ = portal.Allow(portalEp)
			pbuf := make([]byte, BlockSize)
			_, _ = portal.Read(pbuf)
			var blk Block_t
			copy(blk[:], pbuf)
			err := l.srv.Write(req.Page, &blk)
			l.reply(replyEp, Reply_t{Err: err})
		}
	}
}

func (l *Listener) reply(ep transport.Endpoint_t, r Reply_t) {
	mbox := l.fab.MailboxOpen(ep)
	_ = mbox.Write(encode(r))
}
