package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/od"
)

// TestColdBootReachesOperational exercises spec.md §8 scenario 1: an MN
// (240) and a single mandatory isochronous CN (1) reach OPERATIONAL from a
// cold boot, and the MN's own 0x1F8C mirrors 0xFF once it does.
func TestColdBootReachesOperational(t *testing.T) {
	medium := newVirtualMedium()
	mnBus := newVirtualBus(medium, od.MNDefaultNodeID)
	cnBus := newVirtualBus(medium, 1)

	mnDict := od.New(nil)
	od.BuildMandatory(mnDict, od.MNDefaultNodeID)
	cnDict := od.New(nil)
	od.BuildMandatory(cnDict, 1)

	mnNet := NewMNNetwork(mnDict, mnBus, nil, nil)
	mnNet.SetCycleLength(time.Millisecond)

	cnLocal := NewLocalNode(1, cnDict, nil)
	cnNet := NewCNNetwork(cnLocal, cnBus, nil)

	remoteDict := od.New(nil)
	record := nmt.NewNodeRecord(1, nmt.AssignValid|nmt.AssignIsochronous|nmt.AssignMandatory, nmt.Identity{}, 0)
	rn := NewRemoteNode(record, nil, nil, remoteDict)
	mnNet.AddRemoteNode(rn, true, 0)

	mnNet.Run()
	cnNet.Run()
	defer func() {
		require.NoError(t, mnNet.Close())
		require.NoError(t, cnNet.Close())
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if mnNet.MNMachine.CurrentState() == nmt.StateOperational &&
			cnLocal.NMT.CurrentState() == nmt.StateOperational {
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, nmt.StateOperational, mnNet.MNMachine.CurrentState())
	assert.Equal(t, nmt.StateOperational, cnLocal.NMT.CurrentState())

	raw, err := mnDict.Read(od.IdxNMTCurrentState, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), raw)

	rawCN, err := cnDict.Read(od.IdxNMTCurrentState, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), rawCN)
}
