package dll

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/errctrl"
	"github.com/powerlink-go/plstack/pkg/frame"
	"github.com/powerlink-go/plstack/pkg/nmt"
)

// CNFrameIO is the CN-side PDO data-plane boundary: build a PRes payload
// from the compiled TPDO mapping, apply an inbound PReq payload to the
// compiled RPDO mapping.
type CNFrameIO interface {
	BuildPResPayload() (payload []byte, pdoVersion uint8, err error)
	ApplyPReqPayload(payload []byte, pdoVersion uint8) error
}

// CNAction names what the host must do after a CNEngine event.
type CNAction uint8

const (
	CNActionNone CNAction = iota
	CNActionSendPRes
	CNActionSendASnd
)

// CNResult is returned by every CNEngine event handler.
type CNResult struct {
	Action CNAction
	Data   []byte
}

// CNEngine is the CN-side DLL cycle engine (DLL_CS), spec.md §4.6. Unlike
// the MN engine it is purely event-driven: each inbound frame (or timeout)
// is delivered through one of the Handle* methods and yields at most one
// outbound action.
type CNEngine struct {
	mu sync.Mutex

	logger   *log.Entry
	nodeID   uint8
	io       CNFrameIO
	errs     *errctrl.Handler
	nmtMachine *nmt.CNMachine

	state CNState
}

// NewCNEngine builds a CN cycle engine bound to its NMT state machine and
// DLL error counters.
func NewCNEngine(nodeID uint8, io CNFrameIO, errs *errctrl.Handler, nmtMachine *nmt.CNMachine, logger *log.Entry) *CNEngine {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	return &CNEngine{nodeID: nodeID, io: io, errs: errs, nmtMachine: nmtMachine, state: CNNonCyclic, logger: logger}
}

// State returns the engine's current DLL_CS state.
func (c *CNEngine) State() CNState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleSoC processes an inbound Start of Cycle: latches the cycle start
// and moves to WAIT_PREQ (spec.md §4.6).
func (c *CNEngine) HandleSoC(soc *frame.SoC) CNResult {
	c.mu.Lock()
	c.state = CNWaitPReq
	c.mu.Unlock()
	if c.errs != nil {
		c.errs.Decay(errctrl.LossOfSoC)
	}
	// The SoC train is itself the signal that a POWERLINK segment is
	// cyclic: the first one ever seen moves a fresh CN out of NOT_ACTIVE,
	// the next moves it from PRE_OPERATIONAL_1 into the cyclic phases
	// (spec.md §4.7's NOT_ACTIVE/PRE_OPERATIONAL_1 boot edges).
	if c.nmtMachine != nil {
		switch c.nmtMachine.CurrentState() {
		case nmt.StateNotActive:
			_ = c.nmtMachine.Process(nmt.EventPowerlinkFrameReceived)
		case nmt.StatePreOperational1:
			_ = c.nmtMachine.Process(nmt.EventSocReceived)
		}
	}
	return CNResult{Action: CNActionNone}
}

// HandlePReq processes an inbound Poll Request addressed to this node:
// applies the RPDO payload, composes the PRes from the TPDO mapping, and
// moves to WAIT_SOA.
func (c *CNEngine) HandlePReq(req *frame.PReq) (CNResult, error) {
	c.mu.Lock()
	inCycle := c.state == CNWaitPReq
	c.mu.Unlock()
	if !inCycle {
		return CNResult{Action: CNActionNone}, nil
	}

	if err := c.io.ApplyPReqPayload(req.Payload, req.PDOVersion); err != nil {
		return CNResult{}, err
	}
	payload, version, err := c.io.BuildPResPayload()
	if err != nil {
		return CNResult{}, err
	}

	c.mu.Lock()
	c.state = CNWaitSoA
	c.mu.Unlock()

	pres := &frame.PRes{
		Header:     frame.Header{Destination: frame.MulticastPRes, PlDest: frame.NodeIDBroadcast, PlSource: frame.NodeID(c.nodeID)},
		NMTStatus:  c.currentWireState(),
		PDOVersion: version,
		Payload:    payload,
	}
	return CNResult{Action: CNActionSendPRes, Data: pres.Encode()}, nil
}

// HandleSoA processes an inbound Start of Asynchronous: if it invites this
// node, respond with an ASnd and return to WAIT_SOC; otherwise just return
// to WAIT_SOC (spec.md §4.6).
func (c *CNEngine) HandleSoA(soa *frame.SoA, asndPayload []byte, serviceID frame.ASndServiceID) CNResult {
	c.mu.Lock()
	c.state = CNWaitSoC
	c.mu.Unlock()

	if soa.RequestedTarget != frame.NodeID(c.nodeID) {
		return CNResult{Action: CNActionNone}
	}

	asnd := &frame.ASnd{
		Header:    frame.Header{Destination: frame.MulticastASnd, PlDest: frame.NodeIDMN, PlSource: frame.NodeID(c.nodeID)},
		ServiceID: serviceID,
		Payload:   asndPayload,
	}
	return CNResult{Action: CNActionSendASnd, Data: asnd.Encode()}
}

// HandleSoCTimeout processes the expiry of the cyclic SoC-to-SoC timeout:
// increments LossOfSoC and, on threshold crossing, drives the node's own
// NMT state machine back to PRE_OPERATIONAL_1 (spec.md §4.9: "LossOfSoC
// (CN) -> NMT PRE_OP_2 -> PRE_OP_1").
func (c *CNEngine) HandleSoCTimeout() error {
	c.mu.Lock()
	c.state = CNNonCyclic
	c.mu.Unlock()

	if c.errs == nil {
		return nil
	}
	if c.errs.Observe(errctrl.LossOfSoC) {
		return c.nmtMachine.Process(nmt.EventError)
	}
	return nil
}

func (c *CNEngine) currentWireState() uint8 {
	if c.nmtMachine == nil {
		return 0
	}
	return c.nmtMachine.CurrentState().WireByte()
}
