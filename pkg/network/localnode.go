// Package network is the top-level orchestrator: it wires an Object
// Dictionary, NMT state machine, DLL cycle engine, PDO channels, SDO
// command layer, and a raw-Ethernet/UDP transport into one runnable MN or
// CN, mirroring the teacher's pkg/network.Network (CreateLocalNode/
// AddRemoteNode/launchNodeProcess) generalised from CANopen's single-bus
// model to POWERLINK's cyclic/asynchronous split.
package network

import (
	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/dll"
	"github.com/powerlink-go/plstack/pkg/errctrl"
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/pdo"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// LocalNode is a CN running under this process: it owns the Object
// Dictionary an SDO server answers against, the compiled PDO channels the
// CN engine's CNFrameIO reads/writes, and the CN's own NMT/DLL machines.
type LocalNode struct {
	NodeID uint8

	Dict   *od.ObjectDictionary
	Errs   *errctrl.Handler
	NMT    *nmt.CNMachine
	Engine *dll.CNEngine
	Server *sdo.Server

	rpdo *pdo.Channel
	tpdo *pdo.Channel
}

// NewLocalNode builds a CN's local wiring: OD, error counters, NMT machine
// and SDO server. It compiles no RPDO/TPDO channels; SetRPDOMapping and
// SetTPDOMapping install those. It does not start the node; Network.Run does.
func NewLocalNode(nodeID uint8, dict *od.ObjectDictionary, logger *log.Entry) *LocalNode {
	errs := errctrl.NewHandler(dict, logger)
	cnMachine := nmt.NewCNMachine(nodeID, dict, logger)
	cnMachine.RunInternalInitialisation()

	n := &LocalNode{
		NodeID: nodeID,
		Dict:   dict,
		Errs:   errs,
		NMT:    cnMachine,
		Server: sdo.NewServer(dict, logger),
	}
	n.Engine = dll.NewCNEngine(nodeID, n, errs, cnMachine, logger)
	return n
}

// SetRPDOMapping compiles the RPDO mapping object at mappingIndex (e.g.
// 0x1600) and installs it as this node's RPDO channel.
func (n *LocalNode) SetRPDOMapping(mappingIndex uint16, version uint8) error {
	entry := n.Dict.Index(mappingIndex)
	if entry == nil {
		return nil
	}
	ch, err := pdo.Compile(n.Dict, entry, version, true)
	if err != nil {
		return err
	}
	n.rpdo = ch
	return nil
}

// SetTPDOMapping compiles the TPDO mapping object at mappingIndex (e.g.
// 0x1A00) and installs it as this node's TPDO channel.
func (n *LocalNode) SetTPDOMapping(mappingIndex uint16, version uint8) error {
	entry := n.Dict.Index(mappingIndex)
	if entry == nil {
		return nil
	}
	ch, err := pdo.Compile(n.Dict, entry, version, false)
	if err != nil {
		return err
	}
	n.tpdo = ch
	return nil
}

// BuildPResPayload implements dll.CNFrameIO: projects the compiled TPDO
// channel's mapped cells into a fresh payload buffer. An unmapped node
// (no TPDO configured) answers with an empty payload, matching spec.md
// §4.3's "an empty mapping is valid and produces a zero-length payload".
func (n *LocalNode) BuildPResPayload() ([]byte, uint8, error) {
	if n.tpdo == nil {
		return nil, 0, nil
	}
	buf := make([]byte, (n.tpdo.TotalBits+7)/8)
	if err := pdo.ProjectToFrame(buf, n.tpdo, n.Dict); err != nil {
		return nil, 0, err
	}
	return buf, n.tpdo.Version, nil
}

// ApplyPReqPayload implements dll.CNFrameIO: applies an inbound PReq
// payload to the compiled RPDO channel. A node with no RPDO configured
// silently ignores any payload (nothing is mapped to receive it).
func (n *LocalNode) ApplyPReqPayload(payload []byte, version uint8) error {
	if n.rpdo == nil {
		return nil
	}
	return pdo.ApplyFromFrame(payload, n.rpdo, n.Dict, version)
}
