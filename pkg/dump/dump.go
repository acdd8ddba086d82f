// Package dump logs a summary of every datagram read from an interface
// without answering any of them.
package dump

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/pkg/interfaces"
	"github.com/terassyi/tuntcp/pkg/logger"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"github.com/terassyi/tuntcp/pkg/packet/tcp"
)

type Dumper struct {
	iface  interfaces.Iface
	logger *logger.Logger
}

type summary struct {
	src    ipv4.IPAddress
	dst    ipv4.IPAddress
	proto  ipv4.IPProtocol
	length int
	tcp    *tcp.Header
	data   int
}

func (s *summary) String() string {
	if s.tcp == nil {
		return fmt.Sprintf("%s %s -> %s len=%d", s.proto, s.src, s.dst, s.length)
	}
	return fmt.Sprintf("tcp %s:%d -> %s:%d [%s] seq=%d ack=%d win=%d len=%d",
		s.src, s.tcp.SourcePort, s.dst, s.tcp.DestinationPort,
		s.tcp.Flag, s.tcp.Sequence, s.tcp.Ack, s.tcp.WindowSize, s.data)
}

func New(iface interfaces.Iface, log *logrus.Logger, debug bool) *Dumper {
	return &Dumper{iface: iface, logger: logger.NewWith(log, debug, "dump")}
}

// Summarize describes one datagram on a single line.
func Summarize(frame []byte) (string, error) {
	ip, err := ipv4.New(frame)
	if err != nil {
		return "", err
	}
	s := &summary{
		src:    ip.Header.Src,
		dst:    ip.Header.Dst,
		proto:  ip.Header.Protocol,
		length: len(ip.Data),
	}
	if ip.Header.Protocol == ipv4.IPTCPProtocol {
		segment, err := tcp.New(ip.Data)
		if err != nil {
			return "", err
		}
		s.tcp = &segment.Header
		s.data = len(segment.Data)
	}
	return s.String(), nil
}

// Run logs frames until the interface fails. It returns nil once ctx is done.
func (d *Dumper) Run(ctx context.Context) error {
	d.logger.Infof("start to recv on %s", d.iface.Name())
	buf := make([]byte, interfaces.MTU)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := d.iface.Recv(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("recv: %w", err)
		}
		line, err := Summarize(buf[:n])
		if err != nil {
			d.logger.Warnf("ignoring frame: %v", err)
			continue
		}
		d.logger.Info(line)
	}
}
