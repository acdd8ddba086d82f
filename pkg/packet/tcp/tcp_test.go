package tcp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/seqs"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/checksum"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

var (
	src = ipv4.IPAddress{192, 168, 0, 2}
	dst = ipv4.IPAddress{192, 168, 0, 3}
)

func testHeader() ipv4.Header {
	return ipv4.Header{TTL: ipv4.DefaultTTL, Protocol: ipv4.IPTCPProtocol, Src: src, Dst: dst}
}

func TestSerialize(t *testing.T) {
	data := []byte("hello")
	b, err := Serialize(testHeader(), Build(8080, 80, 4294967295, 100, PSH|ACK, 1024, 0, data))
	if err != nil {
		t.Fatal(err)
	}
	ip := header.IPv4(b)
	if !ip.IsValid(len(b)) || !ip.IsChecksumValid() {
		t.Fatalf("invalid ipv4 datagram: % x", b)
	}
	if int(ip.TotalLength()) != ipv4.HeaderLength+HeaderLength+len(data) {
		t.Fatalf("actual total length %d", ip.TotalLength())
	}
	if ip.SourceAddress() != tcpip.AddrFrom4(src) || ip.DestinationAddress() != tcpip.AddrFrom4(dst) {
		t.Fatalf("actual %v -> %v", ip.SourceAddress(), ip.DestinationAddress())
	}
	seg := header.TCP(ip.Payload())
	if !seg.IsChecksumValid(ip.SourceAddress(), ip.DestinationAddress(), checksum.Checksum(seg.Payload(), 0), uint16(len(seg.Payload()))) {
		t.Fatal("invalid tcp checksum")
	}
	if seg.SourcePort() != 8080 || seg.DestinationPort() != 80 {
		t.Fatalf("actual ports %d -> %d", seg.SourcePort(), seg.DestinationPort())
	}
	if seg.SequenceNumber() != 4294967295 || seg.AckNumber() != 100 {
		t.Fatalf("actual seq=%d ack=%d", seg.SequenceNumber(), seg.AckNumber())
	}
	if seg.Flags() != header.TCPFlagPsh|header.TCPFlagAck {
		t.Fatalf("actual flags %v", seg.Flags())
	}
	if seg.WindowSize() != 1024 || seg.DataOffset() != HeaderLength {
		t.Fatalf("actual window=%d offset=%d", seg.WindowSize(), seg.DataOffset())
	}
	if !bytes.Equal(seg.Payload(), data) {
		t.Fatalf("actual payload %q", seg.Payload())
	}
}

func TestNew(t *testing.T) {
	b, err := Serialize(testHeader(), Build(8080, 80, 1000, 2000, SYN|ACK, 64240, 0, []byte("abc")))
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(b[ipv4.HeaderLength:])
	if err != nil {
		t.Fatal(err)
	}
	wanted := Header{
		SourcePort:      8080,
		DestinationPort: 80,
		Sequence:        1000,
		Ack:             2000,
		Offset:          HeaderLength,
		Flag:            SYN | ACK,
		WindowSize:      64240,
		Checksum:        p.Header.Checksum,
	}
	if diff := cmp.Diff(wanted, p.Header); diff != "" {
		t.Fatalf("header mismatch (-wanted +actual):\n%s", diff)
	}
	if string(p.Data) != "abc" {
		t.Fatalf("actual payload %q", p.Data)
	}
	if p.Len() != seqs.Size(4) {
		t.Fatalf("actual len %d", p.Len())
	}
}

func TestNewTruncated(t *testing.T) {
	b, err := Serialize(testHeader(), Build(8080, 80, 1000, 0, SYN, 64240, 0, nil))
	if err != nil {
		t.Fatal(err)
	}
	seg := b[ipv4.HeaderLength:]
	for _, data := range [][]byte{nil, seg[:8], seg[:HeaderLength-1]} {
		if _, err := New(data); !errors.Is(err, ErrTruncated) {
			t.Errorf("%d bytes: actual error %v", len(data), err)
		}
	}
	// data offset pointing past the segment
	bad := append([]byte{}, seg...)
	bad[12] = 0xf0
	if _, err := New(bad); !errors.Is(err, ErrTruncated) {
		t.Errorf("actual error %v", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	b, err := Serialize(testHeader(), Build(8080, 80, 1000, 2000, PSH|ACK, 64240, 0, []byte("abc")))
	if err != nil {
		t.Fatal(err)
	}
	seg := b[ipv4.HeaderLength:]
	if err := VerifyChecksum(src, dst, seg); err != nil {
		t.Fatal(err)
	}
	flip := func(offset int) []byte {
		c := append([]byte{}, seg...)
		c[offset] ^= 0xff
		return c
	}
	for _, c := range []struct {
		name     string
		src, dst ipv4.IPAddress
		segment  []byte
		wanted   error
	}{
		{"checksum field", src, dst, flip(16), ErrChecksum},
		{"flags", src, dst, flip(13), ErrChecksum},
		{"payload", src, dst, flip(len(seg) - 1), ErrChecksum},
		// the pseudo header covers the addresses
		{"source address", ipv4.IPAddress{192, 168, 0, 9}, dst, seg, ErrChecksum},
		{"short", src, dst, seg[:HeaderLength-1], ErrTruncated},
	} {
		if err := VerifyChecksum(c.src, c.dst, c.segment); !errors.Is(err, c.wanted) {
			t.Errorf("%s: actual error %v", c.name, err)
		}
	}
}

func TestLen(t *testing.T) {
	for _, c := range []struct {
		flag   ControlFlag
		data   []byte
		wanted seqs.Size
	}{
		{ACK, nil, 0},
		{SYN, nil, 1},
		{FIN | ACK, nil, 1},
		{SYN | FIN, nil, 2},
		{PSH | ACK, []byte("abcd"), 4},
		{FIN | PSH | ACK, []byte("abcd"), 5},
	} {
		p := Build(1, 2, 0, 0, c.flag, 0, 0, c.data)
		if p.Len() != c.wanted {
			t.Errorf("[%s] actual %d wanted %d", c.flag, p.Len(), c.wanted)
		}
	}
}

func TestControlFlagString(t *testing.T) {
	if s := (SYN | ACK).String(); s != "syn|ack" {
		t.Fatalf("actual %s", s)
	}
	if s := ControlFlag(0).String(); s != "" {
		t.Fatalf("actual %s", s)
	}
}
