package nmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/od"
)

func TestCNInternalBootSequence(t *testing.T) {
	m := NewCNMachine(1, nil, nil)
	assert.Equal(t, StateInitialising, m.CurrentState())
	m.RunInternalInitialisation()
	assert.Equal(t, StateNotActive, m.CurrentState())
}

func TestCNFullBootUpHappyPath(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	m := NewCNMachine(1, dict, nil)
	m.RunInternalInitialisation()
	require.NoError(t, m.Process(EventPowerlinkFrameReceived))
	assert.Equal(t, StatePreOperational1, m.CurrentState())

	require.NoError(t, m.Process(EventSocReceived))
	assert.Equal(t, StatePreOperational2, m.CurrentState())

	require.NoError(t, m.Process(EventEnableReadyToOperate))
	assert.Equal(t, StateReadyToOperate, m.CurrentState())

	// ConfigurationComplete has no transition out of READY_TO_OPERATE.
	require.Error(t, m.Process(EventConfigurationComplete))
	assert.Equal(t, StateReadyToOperate, m.CurrentState())

	require.NoError(t, m.Process(EventStartNode))
	assert.Equal(t, StateOperational, m.CurrentState())

	raw, err := dict.Read(od.IdxNMTCurrentState, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), raw)
}

func TestCNErrorFromCyclicStateReturnsToPreOp1(t *testing.T) {
	m := NewCNMachine(1, nil, nil)
	m.RunInternalInitialisation()
	m.current = StateOperational
	require.NoError(t, m.Process(EventError))
	assert.Equal(t, StatePreOperational1, m.CurrentState())
}

func TestCNStopAndRestart(t *testing.T) {
	m := NewCNMachine(1, nil, nil)
	m.RunInternalInitialisation()
	m.current = StateOperational
	require.NoError(t, m.Process(EventStopNode))
	assert.Equal(t, StateStopped, m.CurrentState())
	require.NoError(t, m.Process(EventEnterPreOperational2))
	assert.Equal(t, StatePreOperational2, m.CurrentState())
}

func TestCNUnexpectedEventErrors(t *testing.T) {
	m := NewCNMachine(1, nil, nil)
	err := m.Process(EventStartNode)
	assert.Error(t, err)
	assert.Equal(t, StateInitialising, m.CurrentState())
}

func TestMNBootUpHappyPath(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, od.MNDefaultNodeID)
	m := NewMNMachine(dict, 0, nil)
	m.RunInternalInitialisation()
	assert.Equal(t, StateNotActive, m.CurrentState())

	require.NoError(t, m.Process(EventTimeout))
	assert.Equal(t, StatePreOperational1, m.CurrentState())

	require.NoError(t, m.Process(EventAllCNsIdentified))
	assert.Equal(t, StatePreOperational2, m.CurrentState())

	require.NoError(t, m.Process(EventConfigurationComplete))
	assert.Equal(t, StateReadyToOperate, m.CurrentState())

	require.NoError(t, m.Process(EventStartNode))
	assert.Equal(t, StateOperational, m.CurrentState())

	raw, err := dict.Read(od.IdxNMTCurrentState, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), raw)
}

func TestMNBootToBasicEthernetOnStartupFlag(t *testing.T) {
	m := NewMNMachine(nil, StartupBasicEthernet, nil)
	m.RunInternalInitialisation()
	require.NoError(t, m.Process(EventTimeout))
	assert.Equal(t, StateBasicEthernet, m.CurrentState())
}

func TestMNErrorTransition(t *testing.T) {
	m := NewMNMachine(nil, 0, nil)
	m.current = StateOperational
	require.NoError(t, m.Process(EventError))
	assert.Equal(t, StatePreOperational1, m.CurrentState())
}

func TestNodeRecordMandatoryAndLossOfPRes(t *testing.T) {
	r := NewNodeRecord(1, AssignValid|AssignMandatory|AssignIsochronous, Identity{}, 0)
	assert.True(t, r.Mandatory())
	r.AddLossOfPRes(8)
	r.AddLossOfPRes(8)
	assert.Equal(t, uint32(16), r.LossOfPRes())
	r.DecayLossOfPRes(1)
	assert.Equal(t, uint32(15), r.LossOfPRes())
	r.DecayLossOfPRes(100)
	assert.Equal(t, uint32(0), r.LossOfPRes())
}

func TestCommandPayloadRoundTrips(t *testing.T) {
	payload := EncodeCommandPayload(CommandStopNode, 5)
	cmd, target, ok := DecodeCommandPayload(payload)
	require.True(t, ok)
	assert.Equal(t, CommandStopNode, cmd)
	assert.Equal(t, uint8(5), target)
	assert.Equal(t, EventStopNode, cmd.ToEvent())
}

func TestDecodeCommandPayloadTooShort(t *testing.T) {
	_, _, ok := DecodeCommandPayload([]byte{1})
	assert.False(t, ok)
}
