package nmt

import "sync"

// AssignFlags are the MN's configured expectations for one CN, mirrored
// from OD 0x1F81 NMT_NodeAssignment_AU32 (spec.md §3's "assignment
// flags" field of the NMT node record).
type AssignFlags uint32

const (
	AssignValid         AssignFlags = 1 << 0
	AssignIsochronous   AssignFlags = 1 << 1
	AssignMandatory     AssignFlags = 1 << 3
	AssignAsyncOnly     AssignFlags = 1 << 8
	AssignMultiplexed   AssignFlags = 1 << 10
	AssignPresentAtBoot AssignFlags = 1 << 12
)

func (f AssignFlags) Has(bit AssignFlags) bool { return f&bit != 0 }

// Identity is a CN's expected device identity read from OD 0x1018 during
// boot phase 1 (spec.md §4.8 "device identification").
type Identity struct {
	Vendor   uint32
	Product  uint32
	Revision uint32
	Serial   uint32
}

// BootPhase is the MN boot coordinator's per-CN progress marker, the
// four phases DS 301 §7.4.2.2 names (spec.md §4.8).
type BootPhase uint8

const (
	BootPhaseIdentification BootPhase = iota
	BootPhaseSoftwareCheck
	BootPhaseConfiguration
	BootPhaseStateCommand
	BootPhaseDone
	BootPhaseFailed
)

// NodeRecord is the MN-side bookkeeping entry for one configured CN
// (spec.md §3's "NMT node record"): assignment, expected and observed
// identity, last observed NMT state, boot progress, and the poll slot the
// DLL cycle engine uses to address it.
type NodeRecord struct {
	mu sync.Mutex

	NodeID    uint8
	Assign    AssignFlags
	Expected  Identity
	PollSlot  int

	observedState State
	phase         BootPhase
	lossOfPRes    uint32
	active        bool
}

// NewNodeRecord builds an inactive node record for a configured CN.
func NewNodeRecord(nodeID uint8, assign AssignFlags, expected Identity, pollSlot int) *NodeRecord {
	return &NodeRecord{NodeID: nodeID, Assign: assign, Expected: expected, PollSlot: pollSlot, phase: BootPhaseIdentification}
}

func (r *NodeRecord) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observedState
}

func (r *NodeRecord) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observedState = s
}

func (r *NodeRecord) Phase() BootPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *NodeRecord) SetPhase(p BootPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
}

func (r *NodeRecord) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *NodeRecord) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
}

// LossOfPRes returns the node's current LossOfPRes cumulative counter
// (spec.md §4.9); the MN cycle engine (dll.MNEngine) increments and decays
// it through AddLossOfPRes/DecayLossOfPRes.
func (r *NodeRecord) LossOfPRes() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lossOfPRes
}

// AddLossOfPRes adds delta to the cumulative counter, called by
// dll.MNEngine.HandlePResTimeout on an observed PRes timeout.
func (r *NodeRecord) AddLossOfPRes(delta uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lossOfPRes += delta
}

// DecayLossOfPRes subtracts delta, floored at 0, called once per
// error-free cycle (dll.MNEngine.HandlePRes, when the node's PRes arrives).
func (r *NodeRecord) DecayLossOfPRes(delta uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lossOfPRes < delta {
		r.lossOfPRes = 0
	} else {
		r.lossOfPRes -= delta
	}
}

// Mandatory reports whether the configured CN blocks the MN's own
// transition to OPERATIONAL (spec.md §4.8: "Optional CNs do not block").
func (r *NodeRecord) Mandatory() bool {
	return r.Assign.Has(AssignMandatory)
}
