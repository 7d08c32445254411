package nmt

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/plerr"
)

// CNMachine is the CN-side NMT state machine of spec.md §4.7: the common
// GS_* reset chain followed by NOT_ACTIVE -> PRE_OPERATIONAL_1 ->
// PRE_OPERATIONAL_2 -> READY_TO_OPERATE -> OPERATIONAL, with STOPPED and
// BASIC_ETHERNET side branches. Grounded on
// original_source/crates/powerlink-rs/src/nmt/cn_state_machine.rs's
// process_event match table, reshaped into the teacher's
// mutex-guarded-struct-with-Process-method idiom.
type CNMachine struct {
	base
	NodeID uint8
}

// NewCNMachine builds a CN machine in GS_INITIALISING. dict may be nil for
// a machine under test in isolation.
func NewCNMachine(nodeID uint8, dict *od.ObjectDictionary, logger *log.Entry) *CNMachine {
	return &CNMachine{base: newBase(dict, logger), NodeID: nodeID}
}

// RunInternalInitialisation drives the automatic GS_INITIALISING ->
// GS_RESET_APPLICATION -> GS_RESET_COMMUNICATION -> GS_RESET_CONFIGURATION
// -> NOT_ACTIVE chain that requires no external event, mirroring the
// original's run_internal_initialisation loop.
func (m *CNMachine) RunInternalInitialisation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		var next State
		switch m.current {
		case StateInitialising:
			next = StateResetApplication
		case StateResetApplication:
			next = StateResetCommunication
		case StateResetCommunication:
			next = StateResetConfiguration
		case StateResetConfiguration:
			next = StateNotActive
		default:
			return
		}
		m.transition(next)
	}
}

// Process advances the machine on event, returning an error describing an
// event that has no transition defined from the current state (the
// machine stays put, matching the original's "push an UnexpectedEvent and
// remain" behaviour).
func (m *CNMachine) Process(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Resets apply from any state (NMT_CT1-class transitions).
	switch event {
	case EventReset:
		m.transition(StateInitialising)
		return nil
	case EventResetNode:
		m.transition(StateResetApplication)
		return nil
	case EventResetCommunication:
		m.transition(StateResetCommunication)
		return nil
	case EventResetConfiguration:
		m.transition(StateResetConfiguration)
		return nil
	}

	next, ok := cnTransition(m.current, event)
	if !ok {
		return plerr.New(plerr.CodeNotReady, fmt.Sprintf("nmt: event %s has no transition from state %s", event, m.current))
	}
	m.transition(next)
	return nil
}

// cnTransition implements the CN boot-up and operational transition table
// (NMT_CT2..NMT_CT12 in the original source's comments).
func cnTransition(current State, event Event) (State, bool) {
	switch {
	case current == StateNotActive && event == EventPowerlinkFrameReceived:
		return StatePreOperational1, true
	case current == StateNotActive && event == EventTimeout:
		return StateBasicEthernet, true
	case current == StatePreOperational1 && event == EventSocReceived:
		return StatePreOperational2, true
	case current == StatePreOperational2 && event == EventEnableReadyToOperate:
		return StateReadyToOperate, true
	case current == StatePreOperational2 && event == EventConfigurationComplete:
		return StateReadyToOperate, true
	case current == StateReadyToOperate && event == EventStartNode:
		return StateOperational, true
	case isCyclicCNState(current) && event == EventStopNode:
		return StateStopped, true
	case current == StateOperational && event == EventEnterPreOperational2:
		return StatePreOperational2, true
	case current == StateStopped && event == EventEnterPreOperational2:
		return StatePreOperational2, true
	case isCyclicCNState(current) && event == EventError:
		return StatePreOperational1, true
	case current == StateBasicEthernet && event == EventPowerlinkFrameReceived:
		return StatePreOperational1, true
	default:
		return current, false
	}
}

func isCyclicCNState(s State) bool {
	return s == StatePreOperational2 || s == StateReadyToOperate || s == StateOperational || s == StateStopped
}

func (e Event) String() string {
	switch e {
	case EventReset:
		return "Reset"
	case EventResetNode:
		return "ResetNode"
	case EventResetCommunication:
		return "ResetCommunication"
	case EventResetConfiguration:
		return "ResetConfiguration"
	case EventPowerlinkFrameReceived:
		return "PowerlinkFrameReceived"
	case EventSocReceived:
		return "SocReceived"
	case EventTimeout:
		return "Timeout"
	case EventEnableReadyToOperate:
		return "EnableReadyToOperate"
	case EventConfigurationComplete:
		return "ConfigurationComplete"
	case EventStartNode:
		return "StartNode"
	case EventStopNode:
		return "StopNode"
	case EventEnterPreOperational2:
		return "EnterPreOperational2"
	case EventError:
		return "Error"
	case EventAllCNsIdentified:
		return "AllCNsIdentified"
	default:
		return "Unknown"
	}
}
