package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/daemon"

	"github.com/vendtech/vendcore/internal/config"
	"github.com/vendtech/vendcore/internal/machine"
	"github.com/vendtech/vendcore/log2"
	"github.com/vendtech/vendcore/tele"
)

var log = log2.NewStderr(log2.LInfo)

var BuildVersion string = "unknown" // set by ldflags -X

func main() {
	flagset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := flagset.String("config", "vendcore.hcl", "machine definition file")
	debug := flagset.Bool("debug", false, "debug logging")
	onlyVersion := flagset.Bool("version", false, "print build version and exit")
	if err := flagset.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("vendcore %s\n", BuildVersion)
	if *onlyVersion {
		return
	}
	if *debug {
		log.SetLevel(log2.LDebug)
	}
	log.SetFlags(log2.LInteractiveFlags)

	c, err := config.ReadFile(log, *configPath)
	if err != nil {
		log.Fatal(err)
	}
	spec, err := c.MachineSpec()
	if err != nil {
		log.Fatal(err)
	}
	m, err := machine.New(log, spec)
	if err != nil {
		log.Fatal(err)
	}
	items, err := c.Catalog()
	if err != nil {
		log.Fatal(err)
	}

	teler := tele.Teler(tele.Noop{})
	if c.Tele != nil {
		if teler, err = tele.New(log, *c.Tele); err != nil {
			log.Fatal(err)
		}
		defer teler.Close()
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debugf("systemd notify err=%v", err)
	}

	log.Debugf("machine ready slots=%d slot_size=%d coins=%v",
		spec.SlotCount, spec.SlotSize, m.Nominals())
	runConsole(m, items, teler)
}
