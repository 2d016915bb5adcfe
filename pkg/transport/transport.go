// Package transport models the mailbox/portal wire layer described in §6.
// The contract itself is a collaborator external to the core ("consumed,
// not specified" — mailbox_open/read/write, portal_open/allow/read/write),
// so this package exposes that contract as two small interfaces plus one
// concrete in-memory Fabric_t that satisfies them over Go channels. The
// server listeners and client stubs in this module take a *Fabric_t
// directly; Mailbox_i and Portal_i are the types of the handles it opens.
package transport

import (
	"fmt"
	"sync"
)

// / Opcode_t identifies the operation carried by a message header.
type Opcode_t int

// / Header_t is the fixed-size prefix of every request/response exchanged
// / on a mailbox, per §6.
type Header_t struct {
	Source      int     /// sending node
	MailboxPort int     /// reply mailbox port
	PortalPort  int     /// reply portal port
	Opcode      Opcode_t /// operation code
	Seq         uint64  /// monotonic per-client sequence number
}

// / Endpoint_t names a (node, port) pair, the unit the name service maps
// / symbolic names onto.
type Endpoint_t struct {
	Node int
	Port int
}

func (e Endpoint_t) String() string {
	return fmt.Sprintf("%d:%d", e.Node, e.Port)
}

// / Mailbox_i is the fixed-size bidirectional control channel.
type Mailbox_i interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) error
	Close() error
}

// / Portal_i is the unidirectional bulk-payload channel.
type Portal_i interface {
	Allow(remote Endpoint_t) error
	Read(buf []byte) (int, error)
	Write(buf []byte) error
	Close() error
}

// / Fabric_t is an in-memory stand-in for the NoC mailbox/portal hardware,
// / scoped to a single process. It lets every engine in this module be
// / exercised (and its tests run) without a real multi-node runtime.
type Fabric_t struct {
	mu       sync.Mutex
	mailbox  map[Endpoint_t]chan []byte
	portal   map[Endpoint_t]chan []byte
	allowed  map[Endpoint_t]Endpoint_t
}

// / NewFabric creates an empty in-memory transport fabric.
func NewFabric() *Fabric_t {
	return &Fabric_t{
		mailbox: make(map[Endpoint_t]chan []byte),
		portal:  make(map[Endpoint_t]chan []byte),
		allowed: make(map[Endpoint_t]Endpoint_t),
	}
}

func (f *Fabric_t) mailboxChan(ep Endpoint_t) chan []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.mailbox[ep]
	if !ok {
		ch = make(chan []byte, 64)
		f.mailbox[ep] = ch
	}
	return ch
}

func (f *Fabric_t) portalChan(ep Endpoint_t) chan []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.portal[ep]
	if !ok {
		ch = make(chan []byte)
		f.portal[ep] = ch
	}
	return ch
}

// / mailboxHandle_t is a Mailbox_i bound to one endpoint of the fabric.
type mailboxHandle_t struct {
	ch chan []byte
}

// / MailboxOpen binds a handle to ep. Servers open their own well-known
// / endpoint to read from it; clients open the server's endpoint to write
// / to it, mirroring stdinbox_get()/mailbox_open(node, port).
func (f *Fabric_t) MailboxOpen(ep Endpoint_t) Mailbox_i {
	return &mailboxHandle_t{ch: f.mailboxChan(ep)}
}

func (m *mailboxHandle_t) Read(buf []byte) (int, error) {
	msg := <-m.ch
	n := copy(buf, msg)
	return n, nil
}

func (m *mailboxHandle_t) Write(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	m.ch <- cp
	return nil
}

func (m *mailboxHandle_t) Close() error { return nil }

// / portalHandle_t is a Portal_i bound to one endpoint of the fabric.
type portalHandle_t struct {
	f    *Fabric_t
	ep   Endpoint_t
	ch   chan []byte
}

// / PortalOpen binds a handle for bulk transfer at ep. The two-stage
// / mailbox-ACK-then-portal discipline (§4.3.3) is enforced by caller
// / ordering, not by this type.
func (f *Fabric_t) PortalOpen(ep Endpoint_t) Portal_i {
	return &portalHandle_t{f: f, ep: ep, ch: f.portalChan(ep)}
}

func (p *portalHandle_t) Allow(remote Endpoint_t) error {
	p.f.mu.Lock()
	p.f.allowed[p.ep] = remote
	p.f.mu.Unlock()
	return nil
}

func (p *portalHandle_t) Read(buf []byte) (int, error) {
	msg := <-p.ch
	n := copy(buf, msg)
	return n, nil
}

func (p *portalHandle_t) Write(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	p.ch <- cp
	return nil
}

func (p *portalHandle_t) Close() error { return nil }
