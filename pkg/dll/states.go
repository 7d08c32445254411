// Package dll implements the Data Link Layer cycle engine of spec.md
// §4.5/§4.6: the MN scheduler (DLL_MS) and CN responder (DLL_CS) state
// machines, and the MN's asynchronous-phase queue scheduler (§4.5.1).
// Grounded on original_source/crates/powerlink-rs/src/node/mn/cycle.rs and
// scheduler.rs for the algorithm, reshaped into the teacher's explicit
// enum-of-states-plus-pure-transition-function idiom (pkg/nmt's
// transition tables, themselves grounded on the teacher's pkg/nmt/nmt.go).
package dll

// MNState is one state of the MN cycle engine (DLL_MS), spec.md §4.5.
type MNState uint8

const (
	MNNonCyclic MNState = iota
	MNWaitSoCTrig
	MNWaitPRes
	MNWaitASnd
	MNWaitSoA
)

func (s MNState) String() string {
	switch s {
	case MNNonCyclic:
		return "NON_CYCLIC"
	case MNWaitSoCTrig:
		return "WAIT_SOC_TRIG"
	case MNWaitPRes:
		return "WAIT_PRES"
	case MNWaitASnd:
		return "WAIT_ASND"
	case MNWaitSoA:
		return "WAIT_SOA"
	default:
		return "UNKNOWN"
	}
}

// MNEvent drives the MN cycle engine.
type MNEvent uint8

const (
	EventSoCTrig MNEvent = iota
	EventPRes
	EventPResTimeout
	EventASnd
	EventASndTimeout
	EventSoATrig
)

// CNState is one state of the CN cycle engine (DLL_CS), spec.md §4.6.
type CNState uint8

const (
	CNNonCyclic CNState = iota
	CNWaitSoC
	CNWaitPReq
	CNWaitSoA
)

func (s CNState) String() string {
	switch s {
	case CNNonCyclic:
		return "NON_CYCLIC"
	case CNWaitSoC:
		return "WAIT_SOC"
	case CNWaitPReq:
		return "WAIT_PREQ"
	case CNWaitSoA:
		return "WAIT_SOA"
	default:
		return "UNKNOWN"
	}
}

// CNEvent drives the CN cycle engine.
type CNEvent uint8

const (
	EventSoC CNEvent = iota
	EventPReq
	EventPResCrossTraffic
	EventSoA
	EventASndReceived
	EventSoCTimeout
)
