package dll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/errctrl"
	"github.com/powerlink-go/plstack/pkg/frame"
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/od"
)

func TestAsyncSchedulerServicesEveryNonEmptyQueueEventually(t *testing.T) {
	s := NewAsyncScheduler()
	s.Enqueue(QueueIdentRequest, 5)
	s.Enqueue(QueueStatusRequest, 6)

	seen := map[Queue]bool{}
	for i := 0; i < 2; i++ {
		q, _, ok := s.Select()
		require.True(t, ok)
		seen[q] = true
	}
	assert.True(t, seen[QueueIdentRequest])
	assert.True(t, seen[QueueStatusRequest])
	assert.Equal(t, 0, s.Pending())
}

func TestAsyncSchedulerStarvedQueueWinsTie(t *testing.T) {
	s := NewAsyncScheduler()
	// All four queues start non-empty at age 0. Equal ages go to the lowest
	// queue index, so Invited is skipped for 3 rounds while the other three
	// queues are served, and its age grows to 3.
	s.Enqueue(QueueGeneric, 1)
	s.Enqueue(QueueIdentRequest, 3)
	s.Enqueue(QueueStatusRequest, 4)
	s.Enqueue(QueueInvited, 2)
	for _, want := range []Queue{QueueGeneric, QueueIdentRequest, QueueStatusRequest} {
		q, _, ok := s.Select()
		require.True(t, ok)
		assert.Equal(t, want, q)
	}
	// Generic is refilled at age 0; the starved Invited queue must win.
	s.Enqueue(QueueGeneric, 1)
	q, nodeID, ok := s.Select()
	require.True(t, ok)
	assert.Equal(t, QueueInvited, q)
	assert.Equal(t, uint8(2), nodeID)
}

func TestAsyncSchedulerEmptyReturnsNotOK(t *testing.T) {
	s := NewAsyncScheduler()
	_, _, ok := s.Select()
	assert.False(t, ok)
}

type fakeCNIO struct {
	applied []byte
}

func (f *fakeCNIO) BuildPResPayload() ([]byte, uint8, error) {
	return []byte{0xAA, 0xBB}, 1, nil
}

func (f *fakeCNIO) ApplyPReqPayload(payload []byte, version uint8) error {
	f.applied = payload
	return nil
}

func newTestCNEngine(t *testing.T) (*CNEngine, *errctrl.Handler, *nmt.CNMachine) {
	t.Helper()
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	errs := errctrl.NewHandler(dict, nil)
	require.NoError(t, dict.Write(0x1C0A, 1, od.EncodeUint(15, od.UNSIGNED32)))
	nmtMachine := nmt.NewCNMachine(1, dict, nil)
	nmtMachine.RunInternalInitialisation()
	io := &fakeCNIO{}
	eng := NewCNEngine(1, io, errs, nmtMachine, nil)
	return eng, errs, nmtMachine
}

func TestCNEngineSoCThenPReqProducesPRes(t *testing.T) {
	eng, _, _ := newTestCNEngine(t)

	eng.HandleSoC(&frame.SoC{})
	assert.Equal(t, CNWaitPReq, eng.State())

	req := &frame.PReq{Payload: []byte{0x01, 0x02}}
	result, err := eng.HandlePReq(req)
	require.NoError(t, err)
	assert.Equal(t, CNActionSendPRes, result.Action)
	assert.Equal(t, CNWaitSoA, eng.State())
	assert.NotEmpty(t, result.Data)
}

func TestCNEnginePReqOutsideCycleIsIgnored(t *testing.T) {
	eng, _, _ := newTestCNEngine(t)
	result, err := eng.HandlePReq(&frame.PReq{Payload: []byte{0x01}})
	require.NoError(t, err)
	assert.Equal(t, CNActionNone, result.Action)
}

func TestCNEngineSoAForOtherNodeProducesNoAction(t *testing.T) {
	eng, _, _ := newTestCNEngine(t)
	eng.HandleSoC(&frame.SoC{})
	_, err := eng.HandlePReq(&frame.PReq{Payload: []byte{0x01}})
	require.NoError(t, err)

	result := eng.HandleSoA(&frame.SoA{RequestedTarget: frame.NodeID(9)}, nil, frame.ServiceIDStatusResponse)
	assert.Equal(t, CNActionNone, result.Action)
	assert.Equal(t, CNWaitSoC, eng.State())
}

func TestCNEngineSoAInvitingThisNodeSendsASnd(t *testing.T) {
	eng, _, _ := newTestCNEngine(t)
	eng.HandleSoC(&frame.SoC{})
	_, err := eng.HandlePReq(&frame.PReq{Payload: []byte{0x01}})
	require.NoError(t, err)

	result := eng.HandleSoA(&frame.SoA{RequestedTarget: frame.NodeID(1)}, []byte{0x01}, frame.ServiceIDStatusResponse)
	assert.Equal(t, CNActionSendASnd, result.Action)
	assert.NotEmpty(t, result.Data)
}

func TestCNEngineSoCTimeoutTripsErrorOnThresholdCrossing(t *testing.T) {
	eng, errs, nmtMachine := newTestCNEngine(t)
	require.NoError(t, nmtMachine.Process(nmt.EventPowerlinkFrameReceived)) // -> PRE_OPERATIONAL_1
	require.NoError(t, nmtMachine.Process(nmt.EventSocReceived))            // -> PRE_OPERATIONAL_2 (cyclic)

	require.NoError(t, eng.HandleSoCTimeout())
	assert.Equal(t, uint32(8), errs.Counter(errctrl.LossOfSoC).Value())
	assert.Equal(t, nmt.StatePreOperational2, nmtMachine.CurrentState())

	require.NoError(t, eng.HandleSoCTimeout())
	// 16 > 15 threshold: the CN's NMT machine observes EventError and drops
	// back to PRE_OPERATIONAL_1 (spec.md §4.9).
	assert.Equal(t, uint32(16), errs.Counter(errctrl.LossOfSoC).Value())
	assert.Equal(t, nmt.StatePreOperational1, nmtMachine.CurrentState())
}

type fakeMNIO struct {
	preqCalls []uint8
	applied   map[uint8][]byte
}

func (f *fakeMNIO) BuildPReqPayload(nodeID uint8) ([]byte, uint8, error) {
	f.preqCalls = append(f.preqCalls, nodeID)
	return []byte{nodeID}, 1, nil
}

func (f *fakeMNIO) ApplyPResPayload(nodeID uint8, payload []byte, version uint8) error {
	if f.applied == nil {
		f.applied = map[uint8][]byte{}
	}
	f.applied[nodeID] = payload
	return nil
}

func (f *fakeMNIO) BuildOwnPRes() ([]byte, uint8, bool) {
	return nil, 0, false
}

func TestMNEnginePollsContinuousNodesThenGoesAsync(t *testing.T) {
	io := &fakeMNIO{}
	sched := NewAsyncScheduler()
	eng := NewMNEngine(io, sched, nil)
	n1 := nmt.NewNodeRecord(1, nmt.AssignValid|nmt.AssignIsochronous, nmt.Identity{}, 0)
	n2 := nmt.NewNodeRecord(2, nmt.AssignValid|nmt.AssignIsochronous, nmt.Identity{}, 1)
	eng.AddContinuousNode(n1)
	eng.AddContinuousNode(n2)

	eng.StartCycle()

	action, err := eng.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionSendPReq, action.Kind)
	assert.Equal(t, uint8(1), action.NodeID)

	require.NoError(t, eng.HandlePRes(1, &frame.PRes{Payload: []byte{0x11}, NMTStatus: 0xFF}))

	action, err = eng.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionSendPReq, action.Kind)
	assert.Equal(t, uint8(2), action.NodeID)

	require.NoError(t, eng.HandlePRes(2, &frame.PRes{Payload: []byte{0x22}, NMTStatus: 0xFF}))

	action, err = eng.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionSendSoA, action.Kind)

	assert.Equal(t, []uint8{1, 2}, io.preqCalls)
	assert.Equal(t, nmt.StateOperational, n1.State())
}

func TestMNEnginePResTimeoutIncrementsLossOfPResAndFiresCallback(t *testing.T) {
	io := &fakeMNIO{}
	sched := NewAsyncScheduler()
	eng := NewMNEngine(io, sched, nil)
	n1 := nmt.NewNodeRecord(3, nmt.AssignValid|nmt.AssignIsochronous|nmt.AssignMandatory, nmt.Identity{}, 0)
	eng.AddContinuousNode(n1)

	var timedOut *nmt.NodeRecord
	eng.OnPResTimeout(func(n *nmt.NodeRecord) { timedOut = n })

	eng.StartCycle()
	_, err := eng.Next()
	require.NoError(t, err)

	eng.HandlePResTimeout()
	assert.Equal(t, uint32(8), n1.LossOfPRes())
	require.NotNil(t, timedOut)
	assert.Equal(t, uint8(3), timedOut.NodeID)
}

func TestMNEngineMultiplexedNodePolledOnlyOnItsSlot(t *testing.T) {
	io := &fakeMNIO{}
	sched := NewAsyncScheduler()
	eng := NewMNEngine(io, sched, nil)
	m1 := nmt.NewNodeRecord(4, nmt.AssignValid|nmt.AssignMultiplexed, nmt.Identity{}, 0)
	m2 := nmt.NewNodeRecord(5, nmt.AssignValid|nmt.AssignMultiplexed, nmt.Identity{}, 0)
	eng.AddMultiplexedNode(m1, 1)
	eng.AddMultiplexedNode(m2, 2)

	eng.StartCycle() // multiplexCycle becomes 1
	action, err := eng.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionSendPReq, action.Kind)
	assert.Equal(t, uint8(4), action.NodeID)
	require.NoError(t, eng.HandlePRes(4, &frame.PRes{}))
	action, err = eng.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionSendSoA, action.Kind) // node 5 skipped this cycle

	eng.StartCycle() // multiplexCycle becomes 2
	action, err = eng.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionSendPReq, action.Kind)
	assert.Equal(t, uint8(5), action.NodeID)
}
