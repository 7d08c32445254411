package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/dll"
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// loopbackTransport answers every command with an immediate success
// response, carrying the transaction id through so Session.Deliver routes
// it back to the waiting Enqueue call.
type loopbackTransport struct {
	session *sdo.Session
}

func (t *loopbackTransport) Send(peer string, payload []byte) error {
	if len(payload) < 4 {
		return nil
	}
	seqHeader, rest := payload[:4], payload[4:]
	_ = seqHeader
	if len(rest) == 0 {
		return nil
	}
	cmd, err := sdo.DecodeCommand(rest)
	if err != nil {
		return err
	}
	resp := &sdo.Command{
		Header: sdo.CommandHeader{
			TransactionID: cmd.Header.TransactionID,
			IsResponse:    true,
			Segmentation:  sdo.SegExpedited,
			CommandID:     cmd.Header.CommandID,
		},
	}
	t.session.Deliver(resp)
	return nil
}

func newLoopbackClient() *sdo.Client {
	lt := &loopbackTransport{}
	session := sdo.NewSession("1", lt, nil)
	lt.session = session
	return sdo.NewClient(session)
}

type fakeCFM struct {
	expected map[uint8]nmt.Identity
	configs  map[uint8][]byte
}

func (f *fakeCFM) ExpectedIdentity(nodeID uint8) nmt.Identity {
	return f.expected[nodeID]
}

func (f *fakeCFM) Configuration(nodeID uint8) ([]byte, error) {
	return f.configs[nodeID], nil
}

func newTestMN(t *testing.T) *nmt.MNMachine {
	t.Helper()
	dict := od.New(nil)
	od.BuildMandatory(dict, od.MNDefaultNodeID)
	mn := nmt.NewMNMachine(dict, 0, nil)
	mn.RunInternalInitialisation() // -> NOT_ACTIVE
	require.NoError(t, mn.Process(nmt.EventTimeout))
	assert.Equal(t, nmt.StatePreOperational1, mn.CurrentState())
	return mn
}

func TestCoordinatorEnqueuesIdentRequestForUnbootedNodes(t *testing.T) {
	mn := newTestMN(t)
	sched := dll.NewAsyncScheduler()
	c := NewCoordinator(mn, sched, nil, 1, nil)

	rec := nmt.NewNodeRecord(5, nmt.AssignValid|nmt.AssignMandatory, nmt.Identity{}, 0)
	c.AddNode(rec, nil)

	c.Tick()
	q, nodeID, ok := sched.Select()
	require.True(t, ok)
	assert.Equal(t, dll.QueueIdentRequest, q)
	assert.Equal(t, uint8(5), nodeID)
}

func TestCoordinatorIdentityMismatchFailsNode(t *testing.T) {
	mn := newTestMN(t)
	sched := dll.NewAsyncScheduler()
	cfg := &fakeCFM{expected: map[uint8]nmt.Identity{7: {Vendor: 1, Product: 2}}}
	c := NewCoordinator(mn, sched, cfg, 1, nil)

	rec := nmt.NewNodeRecord(7, nmt.AssignValid, nmt.Identity{}, 0)
	c.AddNode(rec, newLoopbackClient())

	err := c.HandleIdentResponse(7, nmt.Identity{Vendor: 9, Product: 9})
	require.Error(t, err)
	assert.Equal(t, nmt.BootPhaseFailed, rec.Phase())
	assert.False(t, rec.Active())
}

func TestCoordinatorHappyPathReachesDoneAndPushesConfiguration(t *testing.T) {
	mn := newTestMN(t)
	sched := dll.NewAsyncScheduler()
	identity := nmt.Identity{Vendor: 1, Product: 2, Revision: 3, Serial: 4}
	cfg := &fakeCFM{
		expected: map[uint8]nmt.Identity{9: identity},
		configs:  map[uint8][]byte{9: EncodeCDC([]cdcEntry{{Index: 0x2000, Sub: 1, Data: []byte{0x01}}})},
	}
	c := NewCoordinator(mn, sched, cfg, 1, nil)

	rec := nmt.NewNodeRecord(9, nmt.AssignValid|nmt.AssignMandatory, identity, 0)
	c.AddNode(rec, newLoopbackClient())

	require.NoError(t, c.HandleIdentResponse(9, identity))
	assert.Equal(t, nmt.BootPhaseDone, rec.Phase())
	assert.True(t, rec.Active())

	c.Tick() // PRE_OPERATIONAL_1 -> PRE_OPERATIONAL_2
	c.Tick() // PRE_OPERATIONAL_2 -> READY_TO_OPERATE
	c.Tick() // READY_TO_OPERATE -> OPERATIONAL
	assert.Equal(t, nmt.StateOperational, mn.CurrentState())
}

func TestCoordinatorOptionalNodeDoesNotBlockOperational(t *testing.T) {
	mn := newTestMN(t)
	sched := dll.NewAsyncScheduler()
	c := NewCoordinator(mn, sched, nil, 1, nil)

	optional := nmt.NewNodeRecord(11, nmt.AssignValid, nmt.Identity{}, 0)
	c.AddNode(optional, nil)

	c.Tick()
	c.Tick()
	c.Tick()
	assert.Equal(t, nmt.StateOperational, mn.CurrentState())
}
