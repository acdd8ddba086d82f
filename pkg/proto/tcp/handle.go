package tcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/pkg/interfaces"
	"github.com/terassyi/tuntcp/pkg/logger"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"github.com/terassyi/tuntcp/pkg/packet/tcp"
)

// Tcp demultiplexes the segments read from an interface to their
// connections. Run and Dispatch must be called from one goroutine.
type Tcp struct {
	iface  interfaces.Iface
	table  *Table
	opts   options
	logger *logger.Logger
}

func New(iface interfaces.Iface, opts ...Option) (*Tcp, error) {
	if iface == nil {
		return nil, errors.New("interface is not specified")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.iss == nil {
		o.iss = NewISNGenerator()
	}
	return &Tcp{
		iface:  iface,
		table:  NewTable(),
		opts:   o,
		logger: logger.NewWith(o.log, o.debug, "tcp"),
	}, nil
}

// Connections returns the number of live connections.
func (t *Tcp) Connections() int {
	return t.table.Len()
}

// Run reads frames until the interface fails. It returns nil if the failure
// follows the cancellation of ctx, which is how callers stop it: cancel,
// then close the interface.
func (t *Tcp) Run(ctx context.Context) error {
	t.logger.Infof("start to recv on %s", t.iface.Name())
	buf := make([]byte, interfaces.MTU)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := t.iface.Recv(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: recv: %w", ErrTransport, err)
		}
		if err := t.Dispatch(buf[:n]); err != nil {
			return err
		}
	}
}

// Dispatch handles one frame. Frames failing either checksum are dropped
// before any connection is looked up. Only transport failures are returned;
// any other problem drops the frame and is logged.
func (t *Tcp) Dispatch(frame []byte) error {
	ip, err := ipv4.New(frame)
	if err != nil {
		if errors.Is(err, ipv4.ErrNotIPv4) {
			t.logger.Debugf("drop frame: %v", err)
			return nil
		}
		t.logger.Warnf("ignoring malformed ip packet: %v", err)
		return nil
	}
	if ip.Header.Protocol != ipv4.IPTCPProtocol {
		t.logger.Debugf("drop %s packet from %s", ip.Header.Protocol, ip.Header.Src)
		return nil
	}
	packet, err := tcp.New(ip.Data)
	if err != nil {
		t.logger.Warnf("ignoring malformed tcp segment from %s: %v", ip.Header.Src, err)
		return nil
	}
	if err := tcp.VerifyChecksum(ip.Header.Src, ip.Header.Dst, ip.Data); err != nil {
		t.logger.Warnf("ignoring corrupted tcp segment from %s: %v", ip.Header.Src, err)
		return nil
	}
	q := quadOf(ip.Header, &packet.Header)
	if c, ok := t.table.Search(q); ok {
		t.logger.Debugf("%s: %s %d bytes", q, &packet.Header, len(packet.Data))
		err := c.OnPacket(packet)
		if c.state.Terminal() {
			if err := t.table.Delete(q); err != nil {
				t.logger.Error(err)
			}
			t.logger.Infof("%s: connection closed", q)
		}
		return t.filter(q, err)
	}
	t.logger.Debugf("%s: %s %d bytes, no connection", q, &packet.Header, len(packet.Data))
	c, err := t.accept(ip.Header, packet)
	if err != nil {
		return t.filter(q, err)
	}
	if err := t.table.Add(q, c); err != nil {
		t.logger.Error(err)
		return nil
	}
	t.logger.Infof("%s: new connection", q)
	return nil
}

func (t *Tcp) accept(ip ipv4.Header, packet *tcp.Packet) (*Connection, error) {
	q := quadOf(ip, &packet.Header)
	c, err := passiveOpen(t.iface, &t.opts, t.connLogger(q), ip, packet)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, ErrNotSyn) && t.opts.reset == SendReset {
		if rerr := writeReset(t.iface, t.logger, ip, packet); rerr != nil {
			return nil, rerr
		}
	}
	return nil, err
}

func (t *Tcp) connLogger(q Quad) *logger.Logger {
	return t.logger.With(logrus.Fields{"quad": q.String()})
}

func (t *Tcp) filter(q Quad, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	t.logger.Debugf("%s: drop segment: %v", q, err)
	return nil
}
