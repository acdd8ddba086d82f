//go:build linux

package interfaces

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const tuntap = "/dev/net/tun"

type tunDevice struct {
	file *os.File
	name string
}

func newTunDevice(name string) (Iface, error) {
	name, file, err := openDevice(name)
	if err != nil {
		return nil, err
	}
	return &tunDevice{
		file: file,
		name: name,
	}, nil
}

func (tun *tunDevice) Name() string {
	return tun.name
}

func (tun *tunDevice) Recv(buf []byte) (int, error) {
	return tun.file.Read(buf)
}

func (tun *tunDevice) Send(buf []byte) (int, error) {
	return tun.file.Write(buf)
}

func (tun *tunDevice) Close() error {
	return tun.file.Close()
}

func openDevice(name string) (string, *os.File, error) {
	if len(name) >= unix.IFNAMSIZ {
		return "", nil, fmt.Errorf("name is too long")
	}
	fd, err := unix.Open(tuntap, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", tuntap, err)
	}
	name, err = tunsetiff(fd, name, unix.IFF_TUN|unix.IFF_NO_PI)
	if err != nil {
		unix.Close(fd)
		return "", nil, fmt.Errorf("tunsetiff: %w", err)
	}
	// non-blocking so that Close unblocks a pending Read through the runtime poller
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return "", nil, err
	}
	file := os.NewFile(uintptr(fd), tuntap)
	flags, err := siocgifflags(name)
	if err != nil {
		file.Close()
		return "", nil, fmt.Errorf("siocgifflags: %w", err)
	}
	flags |= unix.IFF_UP | unix.IFF_RUNNING
	if err := siocsifflags(name, flags); err != nil {
		file.Close()
		return "", nil, fmt.Errorf("siocsifflags: %w", err)
	}
	return name, file, nil
}
