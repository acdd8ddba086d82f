package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"github.com/terassyi/tuntcp/pkg/dump"
	"github.com/terassyi/tuntcp/pkg/tuntcp"
)

type DumpCommand struct {
	Iface string
	Debug bool
}

func (d *DumpCommand) Name() string {
	return "dump"
}

func (d *DumpCommand) Synopsis() string {
	return "dump"
}

func (d *DumpCommand) Usage() string {
	return `tuntcp dump -i <interface name> [-debug]:
	dump packets received by the interface`
}

func (d *DumpCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.Iface, "i", "tun0", "interface")
	f.BoolVar(&d.Debug, "debug", false, "output debug message")
}

func (d *DumpCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logrus.WithFields(logrus.Fields{
		"command": "dump",
	})
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	iface, err := tuntcp.Open(d.Iface)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	if err := tuntcp.Serve(ctx, iface, dump.New(iface, logrus.StandardLogger(), d.Debug)); err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
