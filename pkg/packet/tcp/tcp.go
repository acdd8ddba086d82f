package tcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/soypat/seqs"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/checksum"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// document http://www5d.biglobe.ne.jp/stssk/rfc/rfc793j.html

var (
	ErrTruncated = errors.New("tcp segment is truncated")
	ErrChecksum  = errors.New("tcp checksum mismatch")
)

type Header struct {
	SourcePort      uint16
	DestinationPort uint16
	Sequence        seqs.Value
	Ack             seqs.Value
	Offset          uint8 // header length in bytes
	Flag            ControlFlag
	WindowSize      uint16
	Checksum        uint16
	Urgent          uint16
}

type Packet struct {
	Header Header
	// Data aliases the buffer passed to New.
	Data []byte
}

type ControlFlag uint8

func (f ControlFlag) String() string {
	var flags []string
	if f.Syn() {
		flags = append(flags, "syn")
	}
	if f.Ack() {
		flags = append(flags, "ack")
	}
	if f.Fin() {
		flags = append(flags, "fin")
	}
	if f.Rst() {
		flags = append(flags, "rst")
	}
	if f.Psh() {
		flags = append(flags, "psh")
	}
	if f.Urg() {
		flags = append(flags, "urg")
	}
	if f.Ecn() {
		flags = append(flags, "ecn")
	}
	if f.Cwr() {
		flags = append(flags, "cwr")
	}
	return strings.Join(flags, "|")
}

func (f ControlFlag) Fin() bool { return FIN&f != 0 }
func (f ControlFlag) Syn() bool { return SYN&f != 0 }
func (f ControlFlag) Rst() bool { return RST&f != 0 }
func (f ControlFlag) Psh() bool { return PSH&f != 0 }
func (f ControlFlag) Ack() bool { return ACK&f != 0 }
func (f ControlFlag) Urg() bool { return URG&f != 0 }
func (f ControlFlag) Ecn() bool { return ECN&f != 0 }
func (f ControlFlag) Cwr() bool { return CWR&f != 0 }

// New decodes a TCP segment. Options are skipped, not interpreted.
func New(data []byte) (*Packet, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("tcp header is too short (%d): %w", len(data), ErrTruncated)
	}
	var t layers.TCP
	if err := t.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("failed to decode tcp header: %v: %w", err, ErrTruncated)
	}
	return &Packet{
		Header: Header{
			SourcePort:      uint16(t.SrcPort),
			DestinationPort: uint16(t.DstPort),
			Sequence:        seqs.Value(t.Seq),
			Ack:             seqs.Value(t.Ack),
			Offset:          t.DataOffset * 4,
			Flag:            flagsOf(&t),
			WindowSize:      t.Window,
			Checksum:        t.Checksum,
			Urgent:          t.Urgent,
		},
		Data: t.Payload,
	}, nil
}

// VerifyChecksum checks the checksum of segment, the TCP part of a datagram
// from src to dst, against the pseudo-header.
func VerifyChecksum(src, dst ipv4.IPAddress, segment []byte) error {
	if len(segment) < HeaderLength {
		return fmt.Errorf("tcp header is too short (%d): %w", len(segment), ErrTruncated)
	}
	seg := header.TCP(segment)
	offset := int(seg.DataOffset())
	if offset < HeaderLength || offset > len(segment) {
		return fmt.Errorf("data offset %d: %w", offset, ErrTruncated)
	}
	payload := segment[offset:]
	if !seg.IsChecksumValid(tcpip.AddrFrom4(src), tcpip.AddrFrom4(dst), checksum.Checksum(payload, 0), uint16(len(payload))) {
		return fmt.Errorf("checksum %#04x: %w", seg.Checksum(), ErrChecksum)
	}
	return nil
}

// Build returns a segment without options. The checksum is left to Serialize.
func Build(src, dst uint16, seq, ack seqs.Value, flag ControlFlag, window, urgent uint16, data []byte) *Packet {
	return &Packet{
		Header: Header{
			SourcePort:      src,
			DestinationPort: dst,
			Sequence:        seq,
			Ack:             ack,
			Offset:          HeaderLength,
			Flag:            flag,
			WindowSize:      window,
			Urgent:          urgent,
		},
		Data: data,
	}
}

// Len returns the sequence space occupied by the segment: payload plus one
// for each of SYN and FIN.
func (tp *Packet) Len() seqs.Size {
	n := seqs.Size(len(tp.Data))
	if tp.Header.Flag.Syn() {
		n++
	}
	if tp.Header.Flag.Fin() {
		n++
	}
	return n
}

// Serialize writes iphdr followed by tp into a single datagram, filling in
// lengths and both checksums.
func Serialize(iphdr ipv4.Header, tp *Packet) ([]byte, error) {
	ip := iphdr.Layer()
	ip.Protocol = layers.IPProtocolTCP
	t := tp.layer()
	if err := t.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ip, t, gopacket.Payload(tp.Data)); err != nil {
		return nil, fmt.Errorf("failed to serialize tcp segment: %w", err)
	}
	return buf.Bytes(), nil
}

func (tp *Packet) layer() *layers.TCP {
	h := tp.Header
	return &layers.TCP{
		SrcPort: layers.TCPPort(h.SourcePort),
		DstPort: layers.TCPPort(h.DestinationPort),
		Seq:     uint32(h.Sequence),
		Ack:     uint32(h.Ack),
		FIN:     h.Flag.Fin(),
		SYN:     h.Flag.Syn(),
		RST:     h.Flag.Rst(),
		PSH:     h.Flag.Psh(),
		ACK:     h.Flag.Ack(),
		URG:     h.Flag.Urg(),
		ECE:     h.Flag.Ecn(),
		CWR:     h.Flag.Cwr(),
		Window:  h.WindowSize,
		Urgent:  h.Urgent,
	}
}

func flagsOf(t *layers.TCP) ControlFlag {
	var f ControlFlag
	for _, b := range []struct {
		set  bool
		flag ControlFlag
	}{
		{t.FIN, FIN}, {t.SYN, SYN}, {t.RST, RST}, {t.PSH, PSH},
		{t.ACK, ACK}, {t.URG, URG}, {t.ECE, ECN}, {t.CWR, CWR},
	} {
		if b.set {
			f |= b.flag
		}
	}
	return f
}

func (h *Header) String() string {
	return fmt.Sprintf("%d -> %d [%s] seq=%d ack=%d win=%d",
		h.SourcePort, h.DestinationPort, h.Flag, h.Sequence, h.Ack, h.WindowSize)
}
