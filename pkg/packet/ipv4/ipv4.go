package ipv4

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

/*
0                   1                   2                   3
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |Version|  IHL  | Type of Service|          Total Length         |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |         Identification        |Flags|      Fragment Offset    |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |  Time to Live |    Protocol   |         Header Checksum       |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                       Source Address                          |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                    Destination Address                        |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |                    Options                    |    Padding    |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

const (
	HeaderLength = 20
	DefaultTTL   = 64
)

const (
	IPICMPv4Protocol IPProtocol = 1
	IPTCPProtocol    IPProtocol = 6
	IPUDPProtocol    IPProtocol = 17
)

var (
	ErrNotIPv4   = errors.New("ip version is not ipv4")
	ErrTruncated = errors.New("ip packet is truncated")
	ErrChecksum  = errors.New("ip header checksum mismatch")
)

// Header holds the scalar fields of an IPv4 header. It never references the
// frame it was decoded from.
type Header struct {
	Version  uint8
	IHL      uint8
	TOS      uint8
	Length   uint16
	Ident    uint16
	TTL      uint8
	Protocol IPProtocol
	Checksum uint16
	Src      IPAddress
	Dst      IPAddress
}

type IPAddress [4]byte

func NewIPAddress(addr []byte) IPAddress {
	return IPAddress{addr[0], addr[1], addr[2], addr[3]}
}

func (ipaddr IPAddress) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ipaddr[0], ipaddr[1], ipaddr[2], ipaddr[3])
}

func (ipaddr IPAddress) Bytes() []byte {
	return ipaddr[:]
}

func (ipaddr IPAddress) IP() net.IP {
	return net.IPv4(ipaddr[0], ipaddr[1], ipaddr[2], ipaddr[3]).To4()
}

func StringToIPAddress(addr string) (IPAddress, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return IPAddress{}, err
	}
	if !a.Is4() {
		return IPAddress{}, fmt.Errorf("%s: %w", addr, ErrNotIPv4)
	}
	return IPAddress(a.As4()), nil
}

type IPProtocol uint8

func (ipp IPProtocol) String() string {
	switch ipp {
	case IPICMPv4Protocol:
		return "icmp"
	case IPTCPProtocol:
		return "tcp"
	case IPUDPProtocol:
		return "udp"
	default:
		return "(UNKNOWN)"
	}
}

type Packet struct {
	Header Header
	// Data aliases the frame passed to New.
	Data []byte
}

// New decodes an IPv4 datagram and verifies its header checksum. Bytes past
// the total length are ignored.
func New(data []byte) (*Packet, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("ip header is too short (%d): %w", len(data), ErrTruncated)
	}
	if version := data[0] >> 4; version != 4 {
		return nil, fmt.Errorf("version %d: %w", version, ErrNotIPv4)
	}
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("failed to decode ipv4 header: %w", err)
	}
	if int(ip.Length) > len(data) {
		return nil, fmt.Errorf("total length %d exceeds frame (%d): %w", ip.Length, len(data), ErrTruncated)
	}
	if !header.IPv4(data).IsChecksumValid() {
		return nil, fmt.Errorf("checksum %#04x: %w", ip.Checksum, ErrChecksum)
	}
	return &Packet{
		Header: Header{
			Version:  ip.Version,
			IHL:      ip.IHL,
			TOS:      ip.TOS,
			Length:   ip.Length,
			Ident:    ip.Id,
			TTL:      ip.TTL,
			Protocol: IPProtocol(ip.Protocol),
			Checksum: ip.Checksum,
			Src:      NewIPAddress(ip.SrcIP.To4()),
			Dst:      NewIPAddress(ip.DstIP.To4()),
		},
		Data: ip.Payload,
	}, nil
}

// Reply returns the header template for datagrams answering h:
// addresses swapped, same protocol, default TTL.
func (h Header) Reply() Header {
	return Header{
		Version:  4,
		IHL:      HeaderLength / 4,
		TTL:      DefaultTTL,
		Protocol: h.Protocol,
		Src:      h.Dst,
		Dst:      h.Src,
	}
}

// Layer converts h into a serializable gopacket layer. Length, IHL and
// checksum are fixed up at serialization time.
func (h Header) Layer() *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      HeaderLength / 4,
		TOS:      h.TOS,
		Id:       h.Ident,
		Flags:    layers.IPv4DontFragment,
		TTL:      h.TTL,
		Protocol: layers.IPProtocol(h.Protocol),
		SrcIP:    h.Src.IP(),
		DstIP:    h.Dst.IP(),
	}
}
