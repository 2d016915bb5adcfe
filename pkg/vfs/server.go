package vfs

import (
	"bytes"
	"encoding/gob"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/pkg/nameservice"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / MaxMessage bounds a single request/reply's payload, matching the 2 KiB
// / fixed mailbox message size of §4.8.3.
const MaxMessage = 2048

// / Opcode_t enumerates the VFS server's request vocabulary.
const (
	OpCreat transport.Opcode_t = iota + 1
	OpOpen
	OpUnlink
	OpClose
	OpLink
	OpTruncate
	OpMkdir
	OpStat
	OpRead
	OpWrite
	OpSeek
	OpExit
)

// / Request_t is the fixed-format request carried on the server's mailbox.
type Request_t struct {
	Header transport.Header_t
	Path   string
	Path2  string
	Flags  OpenFlags_t
	Mode   uint16
	Caller int
	Handle int
	Offset int64
	Whence Whence_t
	Data   []byte
}

// / Reply_t is the fixed-format reply echoed back to the client.
type Reply_t struct {
	Err    errs.Err_t
	Handle int
	N      int
	Offset int64
	Stat   Stat_t
	Data   []byte
}

// / Listener binds a FileTable_t to a transport fabric and well-known
// / name, dispatching one request at a time from its mailbox.
type Listener struct {
	ft   *FileTable_t
	fab  *transport.Fabric_t
	self transport.Endpoint_t
}

// / NewListener registers name -> self in the name service and returns a
// / Listener ready to Serve.
func NewListener(ft *FileTable_t, fab *transport.Fabric_t, self transport.Endpoint_t, name string, ns *nameservice.Client_t) *Listener {
	ns.Link(name, self.Node, self.Port)
	return &Listener{ft: ft, fab: fab, self: self}
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
		buf := make([]byte, MaxMessage*2)
		n, _ := mbox.Read(buf)
		var req Request_t
		if err := decode(buf[:n], &req); err != nil {
			continue
		}

		replyEp := transport.Endpoint_t{Node: req.Header.Source, Port: req.Header.MailboxPort}

		if req.Header.Opcode == OpExit {
			return
		}
		rep := l.dispatch(req)
		l.reply(replyEp, rep)
	}
}

func (l *Listener) dispatch(req Request_t) Reply_t {
	switch req.Header.Opcode {
	case OpCreat:
		h, err := l.ft.Open(req.Path, req.Flags|OCREAT, req.Mode, req.Caller)
		return Reply_t{Err: err, Handle: h}

	case OpOpen:
		h, err := l.ft.Open(req.Path, req.Flags, req.Mode, req.Caller)
		return Reply_t{Err: err, Handle: h}

	case OpUnlink:
		return Reply_t{Err: l.ft.Unlink(req.Path, req.Caller)}

	case OpClose:
		return Reply_t{Err: l.ft.Close(req.Handle)}

	case OpLink:
		return Reply_t{Err: l.ft.Link(req.Path, req.Path2)}

	case OpTruncate:
		f, err := l.ft.get(req.Handle)
		if err.IsErr() {
			return Reply_t{Err: err}
		}
		return Reply_t{Err: l.ft.fs.Truncate(f.Inode, 0)}

	case OpMkdir:
		return Reply_t{Err: l.ft.Mkdir(req.Path, req.Mode, req.Caller)}

	case OpStat:
		if req.Path != "" {
			st, err := l.ft.StatPath(req.Path)
			return Reply_t{Err: err, Stat: st}
		}
		st, err := l.ft.Stat(req.Handle)
		return Reply_t{Err: err, Stat: st}

	case OpRead:
		buf := make([]byte, MaxMessage)
		n, err := l.ft.Read(req.Handle, buf)
		return Reply_t{Err: err, N: n, Data: buf[:n]}

	case OpWrite:
		n, err := l.ft.Write(req.Handle, req.Data)
		return Reply_t{Err: err, N: n}

	case OpSeek:
		off, err := l.ft.Lseek(req.Handle, req.Offset, req.Whence)
		return Reply_t{Err: err, Offset: off}

	default:
		return Reply_t{Err: errs.EINVAL}
	}
}

func (l *Listener) reply(ep transport.Endpoint_t, r Reply_t) {
	mbox := l.fab.MailboxOpen(ep)
	_ = mbox.Write(encode(r))
}
