package tcp

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/soypat/seqs"
	"github.com/terassyi/tuntcp/pkg/packet/ipv4"
	"github.com/terassyi/tuntcp/pkg/packet/tcp"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/checksum"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

var (
	peerAddr = ipv4.IPAddress{10, 0, 0, 2}
	hostAddr = ipv4.IPAddress{10, 0, 0, 1}
)

const (
	peerPort uint16 = 55000
	hostPort uint16 = 80
	testISS         = seqs.Value(5000)
)

type mockIface struct {
	inbound [][]byte
	sent    [][]byte
	recvErr error
	sendErr error
	onEmpty func()
}

func (m *mockIface) Name() string { return "mock0" }

func (m *mockIface) Recv(buf []byte) (int, error) {
	if len(m.inbound) == 0 {
		if m.onEmpty != nil {
			m.onEmpty()
		}
		if m.recvErr != nil {
			return 0, m.recvErr
		}
		return 0, io.EOF
	}
	f := m.inbound[0]
	m.inbound = m.inbound[1:]
	return copy(buf, f), nil
}

func (m *mockIface) Send(buf []byte) (int, error) {
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	b := make([]byte, len(buf))
	copy(b, buf)
	m.sent = append(m.sent, b)
	return len(buf), nil
}

func (m *mockIface) Close() error { return nil }

var errDeviceGone = errors.New("device gone")

type segment struct {
	seq, ack seqs.Value
	flag     tcp.ControlFlag
	window   uint16
	data     []byte
	sport    uint16
}

// frame builds a datagram from the peer to the host.
func frame(t *testing.T, s segment) []byte {
	t.Helper()
	if s.window == 0 {
		s.window = 64240
	}
	if s.sport == 0 {
		s.sport = peerPort
	}
	b, err := tcp.Serialize(testIPHeader(), tcp.Build(s.sport, hostPort, s.seq, s.ack, s.flag, s.window, 0, s.data))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func testIPHeader() ipv4.Header {
	return ipv4.Header{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: ipv4.IPTCPProtocol,
		Src:      peerAddr,
		Dst:      hostAddr,
	}
}

func peerQuad() Quad {
	return Quad{Src: peerAddr, SrcPort: peerPort, Dst: hostAddr, DstPort: hostPort}
}

// reply validates a frame sent by the host with gVisor's header package and
// returns its TCP header.
func reply(t *testing.T, b []byte) header.TCP {
	t.Helper()
	ip := header.IPv4(b)
	if !ip.IsValid(len(b)) {
		t.Fatalf("invalid ipv4 datagram: % x", b)
	}
	if !ip.IsChecksumValid() {
		t.Fatal("invalid ipv4 checksum")
	}
	if got, want := ip.SourceAddress(), tcpip.AddrFrom4(hostAddr); got != want {
		t.Fatalf("source address: actual %v wanted %v", got, want)
	}
	if got, want := ip.DestinationAddress(), tcpip.AddrFrom4(peerAddr); got != want {
		t.Fatalf("destination address: actual %v wanted %v", got, want)
	}
	if ip.TransportProtocol() != header.TCPProtocolNumber {
		t.Fatalf("actual protocol %d", ip.TransportProtocol())
	}
	seg := header.TCP(ip.Payload())
	payload := seg.Payload()
	if !seg.IsChecksumValid(ip.SourceAddress(), ip.DestinationAddress(), checksum.Checksum(payload, 0), uint16(len(payload))) {
		t.Fatal("invalid tcp checksum")
	}
	return seg
}

func newTestTcp(t *testing.T, opts ...Option) (*Tcp, *mockIface, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	iface := &mockIface{}
	opts = append([]Option{WithISS(FixedISN(testISS)), WithLogger(log)}, opts...)
	tt, err := New(iface, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return tt, iface, hook
}

// handshake drives a SYN through tt and returns the new connection.
func handshake(t *testing.T, tt *Tcp, iface *mockIface) *Connection {
	t.Helper()
	if err := tt.Dispatch(frame(t, segment{seq: 1000, flag: tcp.SYN})); err != nil {
		t.Fatal(err)
	}
	c, ok := tt.table.Search(peerQuad())
	if !ok {
		t.Fatal("connection is not created")
	}
	iface.sent = nil
	return c
}

func establish(t *testing.T, tt *Tcp, iface *mockIface) *Connection {
	t.Helper()
	c := handshake(t, tt, iface)
	if err := tt.Dispatch(frame(t, segment{seq: 1001, ack: testISS + 1, flag: tcp.ACK})); err != nil {
		t.Fatal(err)
	}
	if c.State() != ESTABLISHED {
		t.Fatalf("actual %s", c.State())
	}
	return c
}

type snapshot struct {
	State State
	Snd   SendSequence
	Rcv   ReceiveSequence
}

func snap(c *Connection) snapshot {
	return snapshot{State: c.State(), Snd: c.SendSpace(), Rcv: c.RecvSpace()}
}
