// Package nameservice implements the name-to-(node,port) directory every
// other server links into at startup (§4.3.4) and every client consults
// before opening a mailbox. It defines the opcode vocabulary of §6 —
// LOOKUP, LINK, UNLINK, ALIVE, EXIT — and its request/response records,
// and serves the directory in-process through Server_t and a thin Client
// for synchronous calls; it has no listener on the transport fabric.
package nameservice

import (
	"sync"

	"github.com/nanvix/multikernel-sub000/internal/errs"
	"github.com/nanvix/multikernel-sub000/internal/logx"
	"github.com/nanvix/multikernel-sub000/pkg/transport"
)

// / NameMax bounds a registered name's length, per NANVIX_PROC_NAME_MAX.
const NameMax = 64

// / Opcode_t enumerates the name service's request vocabulary.
const (
	OpLookup transport.Opcode_t = iota + 1
	OpLink
	OpUnlink
	OpAlive
	OpExit
)

// / Request_t is the payload carried alongside a transport.Header_t.
type Request_t struct {
	Header transport.Header_t
	Name   string
	Node   int
	Port   int
	Stamp  int64
}

// / Response_t carries the result of a name service request.
type Response_t struct {
	Node int
	Port int
	Err  errs.Err_t
}

// / Server_t is the in-memory name directory. One instance normally backs
// / an entire node cluster for test/demo composition.
type Server_t struct {
	mu      sync.Mutex
	entries map[string]transport.Endpoint_t
	alive   map[int]int64
	log     *logx.Logger
}

// / NewServer creates an empty name directory.
func NewServer() *Server_t {
	return &Server_t{
		entries: make(map[string]transport.Endpoint_t),
		alive:   make(map[int]int64),
		log:     logx.New("name"),
	}
}

// / Link registers name -> (node, port). Re-linking an existing name
// / overwrites the previous binding, mirroring the original's last-writer
// / semantics.
func (s *Server_t) Link(name string, node, port int) errs.Err_t {
	if name == "" || len(name) >= NameMax {
		return errs.ENAMETOOLONG
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = transport.Endpoint_t{Node: node, Port: port}
	s.log.Debugf("link %s -> %d:%d", name, node, port)
	return errs.OK
}

// / Unlink removes a name binding.
func (s *Server_t) Unlink(name string) errs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return errs.ENOENT
	}
	delete(s.entries, name)
	return errs.OK
}

// / Lookup resolves a name to its bound endpoint.
func (s *Server_t) Lookup(name string) (transport.Endpoint_t, errs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.entries[name]
	if !ok {
		return transport.Endpoint_t{}, errs.ENOENT
	}
	return ep, errs.OK
}

// / Alive records a liveness heartbeat for node at the given timestamp.
// / This is advisory only (§5): it never cancels or times out in-flight
// / requests.
func (s *Server_t) Alive(node int, stamp int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive[node] = stamp
}

// / Names returns a snapshot of every currently registered name.
func (s *Server_t) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// / LastAlive returns the last recorded heartbeat for node, if any.
func (s *Server_t) LastAlive(node int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.alive[node]
	return stamp, ok
}

// / Client_t is a thin, synchronous wrapper that talks to a Server_t
// / in-process. A networked client would instead marshal Request_t over a
// / transport.Mailbox_i; both share the same opcode vocabulary.
type Client_t struct {
	srv *Server_t
}

// / NewClient binds a client to a directory instance.
func NewClient(srv *Server_t) *Client_t {
	return &Client_t{srv: srv}
}

// / Link is the client-facing form of Server_t.Link.
func (c *Client_t) Link(name string, node, port int) errs.Err_t {
	return c.srv.Link(name, node, port)
}

// / Unlink is the client-facing form of Server_t.Unlink.
func (c *Client_t) Unlink(name string) errs.Err_t {
	return c.srv.Unlink(name)
}

// / Lookup is the client-facing form of Server_t.Lookup.
func (c *Client_t) Lookup(name string) (transport.Endpoint_t, errs.Err_t) {
	return c.srv.Lookup(name)
}

// / Alive is the client-facing form of Server_t.Alive.
func (c *Client_t) Alive(node int, stamp int64) {
	c.srv.Alive(node, stamp)
}
