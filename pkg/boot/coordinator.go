// Package boot implements the MN Boot Coordinator of spec.md §4.8: on the
// MN's entry into PRE_OPERATIONAL_1 it walks the configured CN set through
// DS 301 §7.4.2.2's four boot phases (device identification, software
// check, configuration, state command), driving each CN's NMT state
// forward and blocking the MN's own transition to OPERATIONAL until every
// mandatory CN reaches at least READY_TO_OPERATE.
//
// Grounded on original_source/crates/powerlink-rs/src/node/mn/scheduler.rs's
// check_bootup_state/find_next_node_to_identify shape, reworked around the
// concrete ConfigurationProvider hook (original_source's hal.rs
// ConfigurationInterface) and the teacher's mutex-guarded-struct idiom.
package boot

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/powerlink-go/plstack/pkg/dll"
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/plerr"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// ConfigurationProvider is the CFM hook: it supplies the expected identity
// and, when configuration push is required, a Concise Device
// Configuration (CDC) byte stream the coordinator writes via SDO. A nil
// ConfigurationProvider skips phases 2/3 entirely (spec.md §4.8: "out of
// core scope if no CFM is provided; the hook is exposed").
type ConfigurationProvider interface {
	ExpectedIdentity(nodeID uint8) nmt.Identity
	// Configuration returns the CDC stream to push to nodeID, or a nil
	// slice if the CN needs no configuration this boot.
	Configuration(nodeID uint8) ([]byte, error)
}

// managedNode pairs a boot-tracked CN with the SDO client used to talk to
// it; the client's Session/Transport is wired by pkg/network.
type managedNode struct {
	record *nmt.NodeRecord
	client *sdo.Client
}

// PendingCommand is one NMT command phase 4 (spec.md §4.8) has decided to
// send but not yet transmitted; pkg/network drains these each cycle and
// sends them as ASnd NMTCommand frames through the Generic async queue.
type PendingCommand struct {
	NodeID  uint8
	Command nmt.Command
}

// Coordinator drives the boot sequence for every configured CN.
type Coordinator struct {
	mu sync.Mutex

	logger *log.Entry
	mn     *nmt.MNMachine
	sched  *dll.AsyncScheduler
	cfg    ConfigurationProvider

	nodes []*managedNode

	identPollEveryN  uint32
	cyclesSinceIdent uint32

	pendingCmds []PendingCommand
}

// NewCoordinator builds a boot coordinator. cfg may be nil (phases 2/3
// skipped). identPollEveryN is how many Tick calls elapse between
// IdentRequest re-enqueues for CNs still awaiting identification.
func NewCoordinator(mn *nmt.MNMachine, sched *dll.AsyncScheduler, cfg ConfigurationProvider, identPollEveryN uint32, logger *log.Entry) *Coordinator {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	if identPollEveryN == 0 {
		identPollEveryN = 1
	}
	return &Coordinator{mn: mn, sched: sched, cfg: cfg, identPollEveryN: identPollEveryN, logger: logger}
}

// AddNode registers a configured CN for the boot sequence.
func (c *Coordinator) AddNode(rec *nmt.NodeRecord, client *sdo.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, &managedNode{record: rec, client: client})
}

// Tick drives one boot-sequence step; call it once per DLL cycle (or any
// fixed period) while the MN is in PRE_OPERATIONAL_1. It re-enqueues
// IdentRequest for every CN still in BootPhaseIdentification every
// identPollEveryN calls, and checks whether all mandatory CNs have
// completed booting, driving the MN's EventAllCNsIdentified when so.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mn.CurrentState() == nmt.StatePreOperational1 {
		c.cyclesSinceIdent++
		if c.cyclesSinceIdent >= c.identPollEveryN {
			c.cyclesSinceIdent = 0
			for _, n := range c.nodes {
				if n.record.Phase() == nmt.BootPhaseIdentification && !n.record.Active() {
					c.sched.Enqueue(dll.QueueIdentRequest, n.record.NodeID)
				}
			}
		}
	}

	if !c.allMandatoryReadyLocked() {
		return
	}

	// All mandatory CNs have completed their own boot phases; step the
	// MN's own state machine through whichever of the three remaining
	// boot-completion events applies to its current state (spec.md §4.8:
	// "the MN itself may only transition to OPERATIONAL when all
	// mandatory CNs have reached at least READY_TO_OPERATE").
	switch c.mn.CurrentState() {
	case nmt.StatePreOperational1:
		_ = c.mn.Process(nmt.EventAllCNsIdentified)
	case nmt.StatePreOperational2:
		_ = c.mn.Process(nmt.EventConfigurationComplete)
	case nmt.StateReadyToOperate:
		_ = c.mn.Process(nmt.EventStartNode)
	}
}

func (c *Coordinator) allMandatoryReadyLocked() bool {
	for _, n := range c.nodes {
		if !n.record.Mandatory() {
			continue
		}
		if n.record.Phase() != nmt.BootPhaseDone {
			return false
		}
	}
	return true
}

// HandleIdentResponse processes a CN's IdentResponse: validates identity
// (phase 1) and, on success, advances it through phases 2-4.
func (c *Coordinator) HandleIdentResponse(nodeID uint8, identity nmt.Identity) error {
	c.mu.Lock()
	node := c.nodeByIDLocked(nodeID)
	c.mu.Unlock()
	if node == nil {
		return plerr.New(plerr.CodeObjectNotFound, "boot: ident response from unconfigured node")
	}
	if node.record.Phase() != nmt.BootPhaseIdentification {
		return nil
	}

	expected := nmt.Identity{}
	if c.cfg != nil {
		expected = c.cfg.ExpectedIdentity(nodeID)
	}
	if expected != (nmt.Identity{}) && expected != identity {
		node.record.SetPhase(nmt.BootPhaseFailed)
		node.record.SetActive(false)
		return plerr.New(plerr.CodeIdentityMismatch, "boot: cn identity does not match configured expectation")
	}

	node.record.SetActive(true)
	node.record.SetPhase(nmt.BootPhaseSoftwareCheck)
	return c.advance(node)
}

// advance pushes a node through phases 2 (software check, a no-op absent
// richer version bookkeeping than spec.md models), 3 (configuration push
// via the CFM hook) and 4 (the NMT state command sequence).
func (c *Coordinator) advance(node *managedNode) error {
	if node.record.Phase() == nmt.BootPhaseSoftwareCheck {
		node.record.SetPhase(nmt.BootPhaseConfiguration)
	}

	if node.record.Phase() == nmt.BootPhaseConfiguration {
		if c.cfg != nil && node.client != nil {
			cdc, err := c.cfg.Configuration(node.record.NodeID)
			if err != nil {
				return err
			}
			if err := pushConfiguration(node.client, cdc); err != nil {
				return err
			}
		}
		node.record.SetPhase(nmt.BootPhaseStateCommand)
	}

	if node.record.Phase() == nmt.BootPhaseStateCommand {
		c.queueCommand(node.record.NodeID, nmt.CommandEnableReadyToOperate)
		c.queueCommand(node.record.NodeID, nmt.CommandStartNode)
		node.record.SetPhase(nmt.BootPhaseDone)
	}
	return nil
}

// queueCommand records an NMT command to send to nodeID and reserves it
// an async-phase slot through the Generic queue (spec.md §4.5.1's
// "Generic (MN-originated ASnd)").
func (c *Coordinator) queueCommand(nodeID uint8, cmd nmt.Command) {
	c.mu.Lock()
	c.pendingCmds = append(c.pendingCmds, PendingCommand{NodeID: nodeID, Command: cmd})
	c.mu.Unlock()
	c.sched.Enqueue(dll.QueueGeneric, nodeID)
}

// NextCommandFor pops the oldest still-pending command addressed to
// nodeID, for pkg/network to send when the async scheduler hands the
// Generic queue a slot targeting that node.
func (c *Coordinator) NextCommandFor(nodeID uint8) (nmt.Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pc := range c.pendingCmds {
		if pc.NodeID == nodeID {
			c.pendingCmds = append(c.pendingCmds[:i], c.pendingCmds[i+1:]...)
			return pc.Command, true
		}
	}
	return 0, false
}

func (c *Coordinator) nodeByIDLocked(nodeID uint8) *managedNode {
	idx := slices.IndexFunc(c.nodes, func(n *managedNode) bool { return n.record.NodeID == nodeID })
	if idx < 0 {
		return nil
	}
	return c.nodes[idx]
}
