package tcp

import (
	"fmt"

	"github.com/soypat/seqs"
	"github.com/terassyi/tuntcp/pkg/logger"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"github.com/terassyi/tuntcp/pkg/packet/tcp"
)

// write builds one segment from the connection's reply template and hands
// it to the transport. Nothing is sent when the segment cannot be built.
func (c *Connection) write(seq, ack seqs.Value, flag tcp.ControlFlag, window uint16, data []byte) error {
	packet := tcp.Build(c.quad.DstPort, c.quad.SrcPort, seq, ack, flag, window, 0, data)
	if err := send(c.out, c.ip, packet); err != nil {
		return err
	}
	c.logger.Debugf("sent %s", &packet.Header)
	return nil
}

// <SEQ=ISS><ACK=RCV.NXT><CTL=SYN,ACK>
func (c *Connection) writeSynAck() error {
	return c.write(c.snd.ISS, c.rcv.NXT, tcp.SYN|tcp.ACK, c.snd.WND, nil)
}

// <SEQ=SND.NXT><ACK=RCV.NXT><CTL=ACK>
func (c *Connection) writeAck() error {
	return c.write(c.snd.NXT, c.rcv.NXT, tcp.ACK, c.snd.WND, nil)
}

// writeReset answers a segment that has no connection, following the
// CLOSED state rules of RFC 793. A RST is never answered.
func writeReset(out sender, log *logger.Logger, ip ipv4.Header, packet *tcp.Packet) error {
	hdr := packet.Header
	if hdr.Flag.Rst() {
		return nil
	}
	var rst *tcp.Packet
	if hdr.Flag.Ack() {
		// <SEQ=SEG.ACK><CTL=RST>
		rst = tcp.Build(hdr.DestinationPort, hdr.SourcePort, hdr.Ack, 0, tcp.RST, windowZero, 0, nil)
	} else {
		// <SEQ=0><ACK=SEG.SEQ+SEG.LEN><CTL=RST,ACK>
		ack := seqs.Add(hdr.Sequence, packet.Len())
		rst = tcp.Build(hdr.DestinationPort, hdr.SourcePort, 0, ack, tcp.RST|tcp.ACK, windowZero, 0, nil)
	}
	if err := send(out, ip.Reply(), rst); err != nil {
		return err
	}
	log.Debugf("sent %s", &rst.Header)
	return nil
}

func send(out sender, ip ipv4.Header, packet *tcp.Packet) error {
	frame, err := tcp.Serialize(ip, packet)
	if err != nil {
		return fmt.Errorf("failed to build reply: %w", err)
	}
	if _, err := out.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
