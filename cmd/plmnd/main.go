// Command plmnd is the POWERLINK Managing Node daemon: it loads a
// bring-up configuration, attaches to a raw-Ethernet interface, and runs
// the MN cycle loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/config"
	"github.com/powerlink-go/plstack/pkg/eth"
	"github.com/powerlink-go/plstack/pkg/network"
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/od"
)

const defaultInterface = "eth0"

func main() {
	iface := flag.String("i", defaultInterface, "raw Ethernet interface, e.g. eth0")
	cyclePeriod := flag.Duration("cycle", time.Millisecond, "SoC-to-SoC cycle period")
	configPath := flag.String("c", "", "bring-up ini configuration path (optional, adds to the mandatory object set)")
	verbose := flag.Bool("v", false, "debug logging")
	cns := flag.String("cns", "", "comma-separated list of node_id:isochronous(0/1) pairs to manage, e.g. 1:1,2:0")
	flag.Parse()

	logger := log.New()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	entry := log.NewEntry(logger)

	dict := od.New(entry)
	od.BuildMandatory(dict, od.MNDefaultNodeID)
	if *configPath != "" {
		loaded, err := config.LoadObjectDictionary(*configPath, od.MNDefaultNodeID, entry)
		if err != nil {
			entry.WithError(err).Fatal("plmnd: failed to load configuration")
		}
		for _, e := range loaded.Entries() {
			dict.AddEntry(e)
		}
	}

	bus, err := eth.NewBus("afpacket", *iface, od.MNDefaultNodeID)
	if err != nil {
		entry.WithError(err).Fatal("plmnd: failed to open interface")
	}

	net := network.NewMNNetwork(dict, bus, nil, entry)
	net.SetCycleLength(*cyclePeriod)

	for _, spec := range parseCNList(*cns) {
		record := nmt.NewNodeRecord(spec.nodeID, spec.assign, nmt.Identity{}, 0)
		remoteDict := od.New(entry)
		rn := network.NewRemoteNode(record, nil, nil, remoteDict)
		net.AddRemoteNode(rn, spec.isochronous, 0)
	}

	net.Run()
	entry.WithFields(log.Fields{"interface": *iface, "cycle": *cyclePeriod}).Info("plmnd: running")

	waitForSignal()
	if err := net.Close(); err != nil {
		entry.WithError(err).Warn("plmnd: error during shutdown")
	}
}

type cnSpec struct {
	nodeID      uint8
	isochronous bool
	assign      nmt.AssignFlags
}

// parseCNList parses "nodeID:isochronous" pairs, e.g. "1:1,2:0". Malformed
// entries are skipped with a log line rather than aborting the whole list.
func parseCNList(raw string) []cnSpec {
	var out []cnSpec
	if raw == "" {
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		var id, iso int
		if _, err := fmt.Sscanf(part, "%d:%d", &id, &iso); err != nil {
			log.WithField("entry", part).Warn("plmnd: skipping malformed --cns entry")
			continue
		}
		assign := nmt.AssignValid | nmt.AssignMandatory
		if iso != 0 {
			assign |= nmt.AssignIsochronous
		}
		out = append(out, cnSpec{nodeID: uint8(id), isochronous: iso != 0, assign: assign})
	}
	return out
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
