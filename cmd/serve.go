package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/pkg/proto/tcp"
	"github.com/terassyi/tuntcp/pkg/tuntcp"
)

type ServeCommand struct {
	Iface string
	Debug bool
}

func (*ServeCommand) Name() string {
	return "serve"
}

func (*ServeCommand) Synopsis() string {
	return "accept tcp connections on a tun device"
}

func (*ServeCommand) Usage() string {
	return `tuntcp serve -i <interface name> [-debug]:
	complete handshakes and receive data for every peer reaching the tun device`
}

func (s *ServeCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.Iface, "i", "tun0", "interface")
	f.BoolVar(&s.Debug, "debug", false, "output debug message")
}

func (s *ServeCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logrus.WithFields(logrus.Fields{
		"command": "serve",
	})
	if s.Debug {
		log.Debug("debug flag is set")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := tcp.SinkFunc(func(q tcp.Quad, data []byte) {
		log.Infof("%s: recv %d bytes: %q", q, len(data), data)
	})
	engine, iface, err := tuntcp.TcpInit(s.Iface, tcp.WithDebug(s.Debug), tcp.WithSink(sink))
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	log.Infof("tcp engine running on %s", iface.Name())
	if err := tuntcp.Serve(ctx, iface, engine); err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	log.Infof("stopped, %d connections open", engine.Connections())
	return subcommands.ExitSuccess
}
