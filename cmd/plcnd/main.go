// Command plcnd is the POWERLINK Controlled Node daemon: it loads a
// bring-up configuration for a single node id, attaches to a raw-Ethernet
// interface, and runs the CN receive loop.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/config"
	"github.com/powerlink-go/plstack/pkg/eth"
	"github.com/powerlink-go/plstack/pkg/network"
	"github.com/powerlink-go/plstack/pkg/od"
)

const defaultInterface = "eth0"

func main() {
	iface := flag.String("i", defaultInterface, "raw Ethernet interface, e.g. eth0")
	nodeID := flag.Int("n", 1, "this node's POWERLINK Node ID (1-239)")
	configPath := flag.String("c", "", "bring-up ini configuration path (optional, adds to the mandatory object set)")
	rpdoIndex := flag.Int("rpdo", 0, "RPDO mapping object index to compile, e.g. 0x1600 (0 disables)")
	tpdoIndex := flag.Int("tpdo", 0, "TPDO mapping object index to compile, e.g. 0x1A00 (0 disables)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := log.New()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	entry := log.NewEntry(logger)

	id := uint8(*nodeID)
	dict := od.New(entry)
	od.BuildMandatory(dict, id)
	if *configPath != "" {
		loaded, err := config.LoadObjectDictionary(*configPath, id, entry)
		if err != nil {
			entry.WithError(err).Fatal("plcnd: failed to load configuration")
		}
		for _, e := range loaded.Entries() {
			dict.AddEntry(e)
		}
	}

	local := network.NewLocalNode(id, dict, entry)
	if *rpdoIndex != 0 {
		if err := local.SetRPDOMapping(uint16(*rpdoIndex), 0); err != nil {
			entry.WithError(err).Fatal("plcnd: failed to compile RPDO mapping")
		}
	}
	if *tpdoIndex != 0 {
		if err := local.SetTPDOMapping(uint16(*tpdoIndex), 0); err != nil {
			entry.WithError(err).Fatal("plcnd: failed to compile TPDO mapping")
		}
	}

	bus, err := eth.NewBus("afpacket", *iface, id)
	if err != nil {
		entry.WithError(err).Fatal("plcnd: failed to open interface")
	}

	net := network.NewCNNetwork(local, bus, entry)
	net.Run()
	entry.WithFields(log.Fields{"interface": *iface, "node": id}).Info("plcnd: running")

	waitForSignal()
	if err := net.Close(); err != nil {
		entry.WithError(err).Warn("plcnd: error during shutdown")
	}
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
