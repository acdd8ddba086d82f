package tcp

import (
	"errors"
	"fmt"

	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"github.com/terassyi/tuntcp/pkg/packet/tcp"
)

var (
	ErrConnectionExists = errors.New("connection already exists")
	ErrNoSuchConnection = errors.New("no such connection")
)

// Quad identifies a connection by its addresses as seen on ingress:
// Src is the remote peer, Dst is this endpoint.
type Quad struct {
	Src     ipv4.IPAddress
	SrcPort uint16
	Dst     ipv4.IPAddress
	DstPort uint16
}

func quadOf(ip ipv4.Header, hdr *tcp.Header) Quad {
	return Quad{
		Src:     ip.Src,
		SrcPort: hdr.SourcePort,
		Dst:     ip.Dst,
		DstPort: hdr.DestinationPort,
	}
}

func (q Quad) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", q.Src, q.SrcPort, q.Dst, q.DstPort)
}

// Table maps a quad to its connection. It is owned by a single dispatcher
// goroutine and is not safe for concurrent use.
type Table struct {
	entry map[Quad]*Connection
}

func NewTable() *Table {
	return &Table{
		entry: make(map[Quad]*Connection),
	}
}

func (t *Table) Search(q Quad) (*Connection, bool) {
	c, ok := t.entry[q]
	return c, ok
}

// Add inserts c under q. An existing entry is never replaced.
func (t *Table) Add(q Quad, c *Connection) error {
	if _, ok := t.entry[q]; ok {
		return fmt.Errorf("%s: %w", q, ErrConnectionExists)
	}
	t.entry[q] = c
	return nil
}

func (t *Table) Delete(q Quad) error {
	if _, ok := t.entry[q]; !ok {
		return fmt.Errorf("%s: %w", q, ErrNoSuchConnection)
	}
	delete(t.entry, q)
	return nil
}

func (t *Table) Len() int {
	return len(t.entry)
}
