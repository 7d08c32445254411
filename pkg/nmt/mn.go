package nmt

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/plerr"
)

// StartupBasicEthernet is bit 13 of NMT_StartUp_U32 (OD 0x1F80): when set,
// an MN that times out in NOT_ACTIVE falls back to BASIC_ETHERNET instead
// of starting the isochronous boot sequence, mirrored from
// original_source/nmt/mn_state_machine.rs's startup_flags check.
const StartupBasicEthernet uint32 = 1 << 13

// MNMachine is the MN-side NMT state machine of spec.md §4.7/§4.8: the
// common GS_* reset chain, then NOT_ACTIVE -> PRE_OPERATIONAL_1 (once all
// configured CNs are identified) -> PRE_OPERATIONAL_2 -> READY_TO_OPERATE
// -> OPERATIONAL. Grounded on
// original_source/crates/powerlink-rs/src/nmt/mn_state_machine.rs.
type MNMachine struct {
	base
	StartupFlags uint32
}

// NewMNMachine builds an MN machine in GS_INITIALISING.
func NewMNMachine(dict *od.ObjectDictionary, startupFlags uint32, logger *log.Entry) *MNMachine {
	return &MNMachine{base: newBase(dict, logger), StartupFlags: startupFlags}
}

// RunInternalInitialisation drives the MN's automatic reset chain, the
// same shape as the CN's but without a loop since each reset substate
// immediately advances (mirroring the original's unconditional sequence
// in run_internal_initialisation).
func (m *MNMachine) RunInternalInitialisation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != StateInitialising {
		return
	}
	m.transition(StateResetApplication)
	m.transition(StateResetCommunication)
	m.transition(StateResetConfiguration)
	m.transition(StateNotActive)
}

// Process advances the MN machine on event. The boot coordinator (pkg/boot)
// drives EventAllCNsIdentified and EventConfigurationComplete once it has
// observed every mandatory CN reach the required phase (spec.md §4.8).
func (m *MNMachine) Process(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

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

	next, ok := m.mnTransition(event)
	if !ok {
		return plerr.New(plerr.CodeNotReady, fmt.Sprintf("nmt: event %s has no transition from state %s", event, m.current))
	}
	m.transition(next)
	return nil
}

func (m *MNMachine) mnTransition(event Event) (State, bool) {
	switch {
	case m.current == StateNotActive && event == EventTimeout:
		if m.StartupFlags&StartupBasicEthernet != 0 {
			return StateBasicEthernet, true
		}
		return StatePreOperational1, true
	case m.current == StatePreOperational1 && event == EventAllCNsIdentified:
		return StatePreOperational2, true
	case m.current == StatePreOperational2 && event == EventConfigurationComplete:
		return StateReadyToOperate, true
	case m.current == StateReadyToOperate && event == EventStartNode:
		return StateOperational, true
	case m.current == StateOperational && event == EventError:
		return StatePreOperational1, true
	default:
		return m.current, false
	}
}
