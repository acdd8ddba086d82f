package interfaces

import "fmt"

// MTU bounds the size of a single frame read from a device.
const MTU = 1500

// Iface is a frame transport. Recv blocks until one frame is available;
// Send hands one frame to the device.
type Iface interface {
	Name() string
	Recv([]byte) (int, error)
	Send([]byte) (int, error)
	Close() error
}

func New(name, typ string) (Iface, error) {
	switch typ {
	case "tun":
		return newTunDevice(name)
	default:
		return nil, fmt.Errorf("invalid type %q", typ)
	}
}
