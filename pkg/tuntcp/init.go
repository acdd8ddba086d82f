package tuntcp

import (
	"context"

	"github.com/terassyi/tuntcp/pkg/interfaces"
	"github.com/terassyi/tuntcp/pkg/proto/tcp"
	"golang.org/x/sync/errgroup"
)

const tun string = "tun"

// Runner is a receive loop bound to an interface.
type Runner interface {
	Run(ctx context.Context) error
}

// Open opens the TUN device name.
func Open(name string) (interfaces.Iface, error) {
	return interfaces.New(name, tun)
}

// TcpInit opens the TUN device name and builds the TCP engine on it.
func TcpInit(name string, opts ...tcp.Option) (*tcp.Tcp, interfaces.Iface, error) {
	iface, err := Open(name)
	if err != nil {
		return nil, nil, err
	}
	t, err := tcp.New(iface, opts...)
	if err != nil {
		iface.Close()
		return nil, nil, err
	}
	return t, iface, nil
}

// Serve runs r until ctx is done or r fails. The interface is closed on
// return, which is also what unblocks a pending read once ctx is done.
func Serve(ctx context.Context, iface interfaces.Iface, r Runner) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return r.Run(ctx)
	})
	eg.Go(func() error {
		<-ctx.Done()
		return iface.Close()
	})
	return eg.Wait()
}
