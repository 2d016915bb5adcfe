package shm

import (
	"bytes"
	"encoding/gob"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / Opcode_t enumerates the SHM server's request vocabulary of §4.5.3.
const (
	OpOpen transport.Opcode_t = iota + 1
	OpCreate
	OpUnlink
	OpClose
	OpFtruncate
	OpStat
	OpInval
	OpExit
)

// / Request_t is the control message sent on the server's mailbox.
type Request_t struct {
	Header transport.Header_t
	Name   string
	Flags  OpenFlags_t
	Mode   Mode_t
	Caller int
	Handle int
	Size   int
}

// / Reply_t is the control message echoed back to the client.
type Reply_t struct {
	Handle int
	Err    errs.Err_t
	Region Region_t
}

// / Listener binds a Server_t to a transport fabric and a well-known
// / name, dispatching one request at a time from its mailbox.
type Listener struct {
	srv  *Server_t
	fab  *transport.Fabric_t
	self transport.Endpoint_t
}

// / NewListener registers name -> self in the name service and returns a
// / Listener ready to Serve.
func NewListener(srv *Server_t, fab *transport.Fabric_t, self transport.Endpoint_t, name string, ns *nameservice.Client_t) *Listener {
	ns.Link(name, self.Node, self.Port)
	return &Listener{srv: srv, fab: fab, self: self}
}

func encode(v interface{}) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes()
}

func decode(buf []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(buf)).Decode(v)
}

// / Serve processes requests until an EXIT request is received.
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

		if req.Header.Opcode == OpExit {
			return
		}

		replyEp := transport.Endpoint_t{Node: req.Header.Source, Port: req.Header.MailboxPort}
		l.reply(replyEp, l.dispatch(req))
	}
}

func (l *Listener) dispatch(req Request_t) Reply_t {
	switch req.Header.Opcode {
	case OpOpen:
		h, err := l.srv.Open(req.Name, req.Flags, req.Mode, req.Caller)
		return Reply_t{Handle: h, Err: err}

	case OpCreate:
		h, err := l.srv.Open(req.Name, req.Flags|OCREAT, req.Mode, req.Caller)
		return Reply_t{Handle: h, Err: err}

	case OpUnlink:
		return Reply_t{Err: l.srv.Unlink(req.Name, req.Caller)}

	case OpClose:
		return Reply_t{Err: l.srv.Close(req.Handle)}

	case OpFtruncate:
		return Reply_t{Err: l.srv.Ftruncate(req.Handle, req.Size, req.Caller)}

	case OpInval:
		l.srv.Invalidate(req.Name)
		return Reply_t{Err: errs.OK}

	case OpStat:
		r, err := l.srv.Stat(req.Handle)
		return Reply_t{Err: err, Region: r}

	default:
		return Reply_t{Err: errs.EINVAL}
	}
}

func (l *Listener) reply(ep transport.Endpoint_t, r Reply_t) {
	mbox := l.fab.MailboxOpen(ep)
	_ = mbox.Write(encode(r))
}
