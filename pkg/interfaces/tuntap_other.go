//go:build !linux

package interfaces

import "errors"

func newTunDevice(name string) (Iface, error) {
	return nil, errors.New("tun devices are only supported on linux")
}
