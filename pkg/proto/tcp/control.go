package tcp

import (
	"errors"
	"fmt"

	"github.com/soypat/seqs"
	"github.com/terassyi/tuntcp/pkg/logger"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"github.com/terassyi/tuntcp/pkg/packet/tcp"
)

var (
	ErrNotSyn              = errors.New("segment does not open a connection")
	ErrUnexpectedPayload   = errors.New("syn carries payload")
	ErrUnexpectedSyn       = errors.New("unexpected syn")
	ErrUnacceptableAck     = errors.New("unacceptable ack")
	ErrUnacceptableSegment = errors.New("unacceptable segment")
	ErrOutOfOrder          = errors.New("out of order segment")
	ErrUnexpectedState     = errors.New("unexpected state")
	ErrTransport           = errors.New("transport failure")
)

// sender is the transmit half of the packet transport.
type sender interface {
	Send([]byte) (int, error)
}

// Connection is the transmission control block of one connection.
type Connection struct {
	quad   Quad
	state  State
	snd    SendSequence
	rcv    ReceiveSequence
	ip     ipv4.Header // reply template, owned by the connection
	out    sender
	opts   *options
	logger *logger.Logger
}

// SendSequence is the Send Sequence Space.
//
//	     1         2          3          4
//	----------|----------|----------|----------
//	       SND.UNA    SND.NXT    SND.UNA
//	                            +SND.WND
//
//	1 - old sequence numbers which have been acknowledged
//	2 - sequence numbers of unacknowledged data
//	3 - sequence numbers allowed for new data transmission
//	4 - future sequence numbers which are not yet allowed
type SendSequence struct {
	UNA seqs.Value // send unacknowladged
	NXT seqs.Value // send next
	WND uint16     // send window
	UP  bool       // send urgent pointer
	WL1 seqs.Value // segment sequence number used for last window update
	WL2 seqs.Value // segment acknowledgement number used for last window update
	ISS seqs.Value // initial send sequence number
}

// ReceiveSequence is the Receive Sequence Space.
//
//	    1          2          3
//	----------|----------|----------
//	       RCV.NXT    RCV.NXT
//	                 +RCV.WND
//
//	1 - old sequence numbers which have been acknowledged
//	2 - sequence numbers allowed for new reception
//	3 - future sequence numbers which are not yet allowed
type ReceiveSequence struct {
	NXT seqs.Value // receive next
	WND uint16     // receive window
	UP  bool       // receive urgent pointer
	IRS seqs.Value // initial receive sequence number
}

func (c *Connection) Quad() Quad {
	return c.quad
}

func (c *Connection) State() State {
	return c.state
}

func (c *Connection) SendSpace() SendSequence {
	return c.snd
}

func (c *Connection) RecvSpace() ReceiveSequence {
	return c.rcv
}

func (c *Connection) transition(s State) {
	c.logger.Debugf("%s -> %s", c.state, s)
	c.state = s
}

func (c *Connection) showSeq() string {
	return fmt.Sprintf("<snd.una=%d snd.nxt=%d rcv.nxt=%d>", c.snd.UNA, c.snd.NXT, c.rcv.NXT)
}

// passiveOpen builds the control block for an inbound SYN and answers it
// with <SEQ=ISS><ACK=RCV.NXT><CTL=SYN,ACK>. No connection is returned when
// the SYN-ACK cannot be sent.
func passiveOpen(out sender, opts *options, log *logger.Logger, ip ipv4.Header, packet *tcp.Packet) (*Connection, error) {
	hdr := packet.Header
	if !hdr.Flag.Syn() || hdr.Flag.Ack() || hdr.Flag.Rst() {
		return nil, fmt.Errorf("flags [%s]: %w", hdr.Flag, ErrNotSyn)
	}
	if len(packet.Data) > 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(packet.Data), ErrUnexpectedPayload)
	}
	q := quadOf(ip, &hdr)
	iss := opts.iss(q)
	c := &Connection{
		quad:  q,
		state: CLOSED,
		snd: SendSequence{
			ISS: iss,
			UNA: iss,
			NXT: seqs.Add(iss, 1),
			WND: opts.window,
		},
		rcv: ReceiveSequence{
			IRS: hdr.Sequence,
			NXT: seqs.Add(hdr.Sequence, 1),
			WND: hdr.WindowSize,
		},
		ip:     ip.Reply(),
		out:    out,
		opts:   opts,
		logger: log,
	}
	c.transition(SYN_RECVD)
	if err := c.writeSynAck(); err != nil {
		return nil, err
	}
	return c, nil
}

// OnPacket runs one inbound segment through the state machine. Errors other
// than ErrTransport describe a dropped segment and leave the connection as
// it was.
func (c *Connection) OnPacket(packet *tcp.Packet) error {
	switch c.state {
	case SYN_RECVD:
		return c.synReceived(packet)
	case ESTABLISHED:
		return c.established(packet)
	case CLOSED:
		return fmt.Errorf("%s: %w", c.state, ErrUnexpectedState)
	default:
		return fmt.Errorf("state %d: %w", int(c.state), ErrUnexpectedState)
	}
}

func (c *Connection) synReceived(packet *tcp.Packet) error {
	hdr := packet.Header
	flag := hdr.Flag
	// retransmitted SYN: our SYN-ACK was lost
	if flag.Syn() && !flag.Ack() && !flag.Rst() && hdr.Sequence == c.rcv.IRS {
		c.logger.Debug("retransmitted syn")
		return c.writeSynAck()
	}
	// first check sequence number
	if !acceptableSegment(c.rcv.NXT, c.rcv.WND, hdr.Sequence, packet.Len()) {
		return fmt.Errorf("seq=%d %s: %w", hdr.Sequence, c.showSeq(), ErrUnacceptableSegment)
	}
	// second check RST: a passive open goes back to LISTEN, that is, the
	// control block is dropped
	if flag.Rst() {
		c.transition(CLOSED)
		return nil
	}
	// fourth check SYN
	if flag.Syn() {
		return fmt.Errorf("seq=%d: %w", hdr.Sequence, ErrUnexpectedSyn)
	}
	// fifth check ACK
	if !flag.Ack() {
		return fmt.Errorf("ack flag is not set: %w", ErrUnacceptableAck)
	}
	if !acceptableAck(c.snd.UNA, hdr.Ack, c.snd.NXT) {
		if c.opts.reset == SendReset {
			// <SEQ=SEG.ACK><CTL=RST>
			if err := c.write(hdr.Ack, 0, tcp.RST, windowZero, nil); err != nil {
				return err
			}
		}
		return fmt.Errorf("ack=%d %s: %w", hdr.Ack, c.showSeq(), ErrUnacceptableAck)
	}
	c.snd.UNA = hdr.Ack
	c.snd.WL1 = hdr.Sequence
	c.snd.WL2 = hdr.Ack
	c.transition(ESTABLISHED)
	c.logger.Info("connection established")
	if len(packet.Data) == 0 {
		return nil
	}
	return c.receive(packet)
}

func (c *Connection) established(packet *tcp.Packet) error {
	hdr := packet.Header
	flag := hdr.Flag
	if !acceptableSegment(c.rcv.NXT, c.rcv.WND, hdr.Sequence, packet.Len()) {
		return fmt.Errorf("seq=%d len=%d %s: %w", hdr.Sequence, packet.Len(), c.showSeq(), ErrUnacceptableSegment)
	}
	if flag.Rst() {
		c.transition(CLOSED)
		c.logger.Info("connection reset by peer")
		return nil
	}
	if flag.Syn() {
		return fmt.Errorf("seq=%d: %w", hdr.Sequence, ErrUnexpectedSyn)
	}
	if !flag.Ack() {
		return fmt.Errorf("ack flag is not set: %w", ErrUnacceptableAck)
	}
	if ackOfUnsent(c.snd.NXT, hdr.Ack) {
		// <SEQ=SND.NXT><ACK=RCV.NXT><CTL=ACK>, then drop the segment
		if err := c.writeAck(); err != nil {
			return err
		}
		return fmt.Errorf("ack=%d %s: %w", hdr.Ack, c.showSeq(), ErrUnacceptableAck)
	}
	if acceptableAck(c.snd.UNA, hdr.Ack, c.snd.NXT) {
		c.snd.UNA = hdr.Ack
		c.snd.WL1 = hdr.Sequence
		c.snd.WL2 = hdr.Ack
	}
	if flag.Fin() {
		// TODO: move to CLOSE_WAIT and acknowledge the FIN once teardown is modelled
		c.logger.Debug("fin is not supported, ignored")
	}
	if len(packet.Data) == 0 {
		return nil
	}
	return c.receive(packet)
}

// receive accepts the in-window, in-order part of the payload, advances
// RCV.NXT past it, delivers it and acknowledges it.
func (c *Connection) receive(packet *tcp.Packet) error {
	seq := packet.Header.Sequence
	data := packet.Data
	end := seqs.Add(c.rcv.NXT, seqs.Size(c.rcv.WND))
	if IsBetweenWrapped(c.rcv.NXT, seq, end) {
		// a gap before seq, no reassembly: ask for RCV.NXT again
		if err := c.writeAck(); err != nil {
			return err
		}
		return fmt.Errorf("seq=%d %s: %w", seq, c.showSeq(), ErrOutOfOrder)
	}
	if seq != c.rcv.NXT {
		// starts before RCV.NXT, drop what was already received
		data = data[seqs.Sizeof(seq, c.rcv.NXT):]
	}
	if len(data) > int(c.rcv.WND) {
		data = data[:c.rcv.WND]
	}
	c.rcv.NXT = seqs.Add(c.rcv.NXT, seqs.Size(len(data)))
	c.logger.Debugf("received %d bytes %s", len(data), c.showSeq())
	if c.opts.sink != nil && len(data) > 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		c.opts.sink.Deliver(c.quad, buf)
	}
	return c.writeAck()
}
