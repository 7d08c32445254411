package dll

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/powerlink-go/plstack/pkg/frame"
	"github.com/powerlink-go/plstack/pkg/nmt"
)

// FrameIO is the PDO data-plane boundary the cycle engine calls to
// fill/consume frame payloads, injected by the orchestrator (pkg/network)
// so dll never owns an Object Dictionary or a pdo.Channel itself (spec.md
// §3: "the DLL... hold capability references to [the OD]").
type FrameIO interface {
	// BuildPReqPayload fills the PReq payload sent to nodeID from that
	// node's RPDO mapping.
	BuildPReqPayload(nodeID uint8) (payload []byte, pdoVersion uint8, err error)
	// ApplyPResPayload consumes a PRes payload received from nodeID into
	// its TPDO mapping.
	ApplyPResPayload(nodeID uint8, payload []byte, pdoVersion uint8) error
	// BuildOwnPRes optionally fills the MN's own PRes payload (step 3 of
	// spec.md §4.5's per-cycle algorithm); ok=false skips it.
	BuildOwnPRes() (payload []byte, pdoVersion uint8, ok bool)
}

// ActionKind names what the host must do after a Next()/HandlePRes() call.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionSendSoC
	ActionSendPReq
	ActionSendOwnPRes
	ActionSendSoA
)

// Action is one unit of work the host performs against the transport; Data
// is the already-encoded frame. Queue is only meaningful for
// ActionSendSoA: it names which of the four async queues (spec.md
// §4.5.1) was selected, so the host knows whether to await a CN response
// (IdentRequest/StatusRequest/Invited) or send its own MN-originated
// frame (Generic).
type Action struct {
	Kind   ActionKind
	Queue  Queue
	NodeID uint8
	Data   []byte
}

// multiplexedNode pairs a configured CN with the multiplexed-cycle slot
// (NMT_MultiplCycleAssign_AU8) it is polled on, spec.md §4.5's "multiplexed
// CNs (accessed once per multiplexed-cycle)".
type multiplexedNode struct {
	node *nmt.NodeRecord
	slot uint8
}

// MNEngine is the MN-side DLL cycle engine (DLL_MS), spec.md §4.5.
// Grounded on original_source/node/mn/cycle.rs's advance_cycle_phase: each
// call to Next advances exactly one phase step, matching the Rust
// implementation's phase-at-a-time, non-blocking design (spec.md §5: "all
// cycle-critical operations... must be non-blocking").
type MNEngine struct {
	mu sync.Mutex

	logger *log.Entry
	io     FrameIO

	scheduler *AsyncScheduler

	state MNState

	continuous        []*nmt.NodeRecord
	multiplexed       []multiplexedNode
	multiplexCycle    uint8
	maxMultiplexCycle uint8

	pollIdx  int
	mplexIdx int
	pending  *nmt.NodeRecord

	sendOwnPRes bool

	onPResTimeout func(node *nmt.NodeRecord)
}

// NewMNEngine builds an idle MN engine. logger may be nil.
func NewMNEngine(io FrameIO, scheduler *AsyncScheduler, logger *log.Entry) *MNEngine {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	return &MNEngine{io: io, scheduler: scheduler, state: MNNonCyclic, logger: logger}
}

// AddContinuousNode registers a CN polled every cycle, ignoring a
// duplicate registration of the same Node ID.
func (m *MNEngine) AddContinuousNode(rec *nmt.NodeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := slices.IndexFunc(m.continuous, func(n *nmt.NodeRecord) bool { return n.NodeID == rec.NodeID }); idx >= 0 {
		return
	}
	m.continuous = append(m.continuous, rec)
}

// AddMultiplexedNode registers a CN polled once every maxMultiplexCycle
// cycles, on the given 1-based slot (spec.md §4.5 "multiplexed-cycle
// assign").
func (m *MNEngine) AddMultiplexedNode(rec *nmt.NodeRecord, slot uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multiplexed = append(m.multiplexed, multiplexedNode{node: rec, slot: slot})
	if slot > m.maxMultiplexCycle {
		m.maxMultiplexCycle = slot
	}
}

// SetSendOwnPRes enables/disables step 3 of spec.md §4.5's algorithm, the
// MN's own optional PRes.
func (m *MNEngine) SetSendOwnPRes(send bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendOwnPRes = send
}

// OnPResTimeout installs the callback invoked whenever a polled CN's PRes
// does not arrive within the per-node timeout. The callback receives the
// node record with its LossOfPRes counter already incremented by 8 by
// HandlePResTimeout — deciding whether the crossing marks the node failed
// is the MN boot coordinator's job (spec.md §4.9), not the cycle engine's.
func (m *MNEngine) OnPResTimeout(fn func(node *nmt.NodeRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPResTimeout = fn
}

// StartCycle resets the poll order for a new cycle (spec.md §4.5 step 1).
// It returns nothing: the caller builds the SoC with NetTime/RelativeTime
// and sends it; StartCycle only advances the state machine.
func (m *MNEngine) StartCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollIdx = 0
	m.mplexIdx = 0
	m.pending = nil
	m.state = MNWaitPRes
	if m.maxMultiplexCycle > 0 {
		m.multiplexCycle = (m.multiplexCycle % m.maxMultiplexCycle) + 1
	}
}

// State returns the engine's current DLL_MS state.
func (m *MNEngine) State() MNState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Next advances the cycle engine by one phase step, returning the next
// action to perform. Call it repeatedly (after each action's response, or
// immediately for actions needing none) until it returns ActionNone,
// meaning the isochronous+asynchronous phases are both exhausted and the
// engine is waiting for the next SOC_TRIG (spec.md §4.5 step 6).
func (m *MNEngine) Next() (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == MNWaitPRes {
		if target := m.nextPollTargetLocked(); target != nil {
			m.pending = target
			payload, version, err := m.io.BuildPReqPayload(target.NodeID)
			if err != nil {
				return Action{}, err
			}
			return Action{Kind: ActionSendPReq, NodeID: target.NodeID, Data: encodePReqPlaceholder(payload, version)}, nil
		}
		// Isochronous phase exhausted.
		if m.sendOwnPRes {
			if payload, version, ok := m.io.BuildOwnPRes(); ok {
				m.state = MNWaitSoA
				return Action{Kind: ActionSendOwnPRes, Data: encodePReqPlaceholder(payload, version)}, nil
			}
		}
		m.state = MNWaitSoA
	}

	if m.state == MNWaitSoA {
		q, nodeID, ok := m.scheduler.Select()
		m.state = MNWaitASnd
		if !ok {
			m.state = MNNonCyclic
			return Action{Kind: ActionSendSoA, NodeID: uint8(frame.NodeIDInvalid)}, nil
		}
		return Action{Kind: ActionSendSoA, Queue: q, NodeID: nodeID}, nil
	}

	return Action{Kind: ActionNone}, nil
}

// nextPollTargetLocked returns the next CN to poll this cycle: every
// continuous CN first, then any multiplexed CN assigned to the current
// multiplex slot. Caller must hold m.mu.
func (m *MNEngine) nextPollTargetLocked() *nmt.NodeRecord {
	for m.pollIdx < len(m.continuous) {
		n := m.continuous[m.pollIdx]
		m.pollIdx++
		return n
	}
	for m.mplexIdx < len(m.multiplexed) {
		entry := m.multiplexed[m.mplexIdx]
		m.mplexIdx++
		if entry.slot == m.multiplexCycle {
			return entry.node
		}
	}
	return nil
}

// HandlePRes consumes a CN's Poll Response: applies its TPDO payload,
// mirrors its reported NMT status into the node record, and clears the
// pending-timeout slot.
func (m *MNEngine) HandlePRes(nodeID uint8, pres *frame.PRes) error {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()

	if pending == nil || pending.NodeID != nodeID {
		return nil // unsolicited or cross-traffic PRes; spec.md §4.6 allows ignoring it
	}
	if err := m.io.ApplyPResPayload(nodeID, pres.Payload, pres.PDOVersion); err != nil {
		return err
	}
	pending.SetState(wireStateToNMT(pres.NMTStatus))
	pending.SetActive(true)
	pending.DecayLossOfPRes(1)

	m.mu.Lock()
	m.pending = nil
	m.state = MNWaitPRes
	m.mu.Unlock()
	return nil
}

// HandlePResTimeout is called by the host when the per-node PRes timeout
// scheduled after a PReq elapses without a matching HandlePRes call
// (spec.md §4.5 step 2: "on timeout increment LossOfPRes for that node and
// proceed").
func (m *MNEngine) HandlePResTimeout() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.state = MNWaitPRes
	cb := m.onPResTimeout
	m.mu.Unlock()

	if pending == nil {
		return
	}
	pending.AddLossOfPRes(8)
	if cb != nil {
		cb(pending)
	}
}

func wireStateToNMT(wire uint8) nmt.State {
	switch wire {
	case 0x1C:
		return nmt.StateNotActive
	case 0x1D:
		return nmt.StatePreOperational1
	case 0x5D:
		return nmt.StatePreOperational2
	case 0x6D:
		return nmt.StateReadyToOperate
	case 0xFF:
		return nmt.StateOperational
	case 0x4D:
		return nmt.StateStopped
	case 0x1E:
		return nmt.StateBasicEthernet
	default:
		return nmt.StateNotActive
	}
}

// encodePReqPlaceholder is a narrow seam: the actual frame.PReq/PRes
// envelope (header, flags, multicast MAC) is assembled by pkg/network,
// which owns routing and addressing; the cycle engine only hands back the
// PDO-mapped payload bytes it was given, unchanged.
func encodePReqPlaceholder(payload []byte, _ uint8) []byte {
	return payload
}
