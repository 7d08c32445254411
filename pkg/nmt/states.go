// Package nmt implements the common, MN, and CN NMT state machines of
// spec.md §4.7 and the MN boot-sequence events they consume from
// pkg/boot. Grounded on the teacher's pkg/nmt pure-transition-function
// style, generalised from CANopen's four-state model to POWERLINK's
// GS_*/CS_*/MS_* hierarchy.
package nmt

// State is one NMT state, spanning the common GS_* initialisation chain
// plus the CN- and MN-specific substates of DS 301 §7.1.
type State uint8

const (
	StateOff State = iota
	StateInitialising
	StateResetApplication
	StateResetCommunication
	StateResetConfiguration
	StateNotActive
	StatePreOperational1
	StatePreOperational2
	StateReadyToOperate
	StateOperational
	StateStopped
	StateBasicEthernet
)

var stateNames = map[State]string{
	StateOff:                 "GS_OFF",
	StateInitialising:        "GS_INITIALISING",
	StateResetApplication:    "GS_RESET_APPLICATION",
	StateResetCommunication:  "GS_RESET_COMMUNICATION",
	StateResetConfiguration:  "GS_RESET_CONFIGURATION",
	StateNotActive:           "NOT_ACTIVE",
	StatePreOperational1:     "PRE_OPERATIONAL_1",
	StatePreOperational2:     "PRE_OPERATIONAL_2",
	StateReadyToOperate:      "READY_TO_OPERATE",
	StateOperational:         "OPERATIONAL",
	StateStopped:             "STOPPED",
	StateBasicEthernet:       "BASIC_ETHERNET",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// WireByte returns the value spec.md §8's scenario 1 asserts for 0x1F8C
// ("reads 0xFF (operational)") and its neighbouring DS 301 Table 96
// codes; states with no wire representation (the GS_* reset chain,
// which never survives long enough to be observed via SDO) return 0.
func (s State) WireByte() uint8 {
	switch s {
	case StateNotActive:
		return 0x1C
	case StatePreOperational1:
		return 0x1D
	case StatePreOperational2:
		return 0x5D
	case StateReadyToOperate:
		return 0x6D
	case StateOperational:
		return 0xFF
	case StateStopped:
		return 0x4D
	case StateBasicEthernet:
		return 0x1E
	default:
		return 0
	}
}

// Event is an NMT transition trigger: a received command, a boot-progress
// signal from pkg/boot, or an internally observed condition (timeout,
// error threshold crossing).
type Event uint8

const (
	EventReset Event = iota
	EventResetNode
	EventResetCommunication
	EventResetConfiguration
	EventPowerlinkFrameReceived // CN: any SoC/SoA seen while NOT_ACTIVE
	EventSocReceived            // CN: SoC seen while PRE_OPERATIONAL_1
	EventTimeout                // CN: NOT_ACTIVE timeout; MN: WaitNotActive timeout
	EventEnableReadyToOperate
	EventConfigurationComplete // CN: app confirms readiness; MN: CNs ready + own config done
	EventStartNode
	EventStopNode
	EventEnterPreOperational2
	EventError
	EventAllCNsIdentified // MN only
)
