package network

import (
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/pdo"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// RemoteNode is the MN's own view of one configured CN: its boot/poll
// bookkeeping (nmt.NodeRecord), an SDO client to reach it, and the two
// mapping channels that mirror what that CN expects to receive and what
// it produces, generalising the teacher's Network.odMap ("OD information
// for a remote node") from a single dictionary snapshot to POWERLINK's
// paired RPDO/TPDO channels.
type RemoteNode struct {
	Record  *nmt.NodeRecord
	Client  *sdo.Client
	Session *sdo.Session

	// Dict mirrors the OD cells this node's mapped PDO data lives at from
	// the MN's perspective (spec.md §3's "capability references"): the
	// same cells a local application on the MN reads/writes to interact
	// with this CN's process data.
	Dict *od.ObjectDictionary

	// txChannel projects Dict's mapped cells into the PReq payload sent to
	// this CN (a TPDO-shaped channel from the MN's perspective, since it
	// is producing data for the wire).
	txChannel *pdo.Channel
	// rxChannel applies an inbound PRes payload from this CN into Dict (an
	// RPDO-shaped channel, since the MN is consuming data from the wire).
	rxChannel *pdo.Channel
}

// NewRemoteNode builds a RemoteNode around the given mirror dictionary; call
// SetTxMapping/SetRxMapping once the CN's mapping is known (from
// configuration or a completed boot sequence).
func NewRemoteNode(record *nmt.NodeRecord, client *sdo.Client, session *sdo.Session, dict *od.ObjectDictionary) *RemoteNode {
	return &RemoteNode{Record: record, Client: client, Session: session, Dict: dict}
}

// SetTxMapping compiles the mapping object at mappingIndex against this
// node's mirror dictionary and installs it as the outbound (PReq) channel.
func (r *RemoteNode) SetTxMapping(mappingIndex uint16, version uint8) error {
	entry := r.Dict.Index(mappingIndex)
	if entry == nil {
		return nil
	}
	ch, err := pdo.Compile(r.Dict, entry, version, false)
	if err != nil {
		return err
	}
	r.txChannel = ch
	return nil
}

// SetRxMapping compiles the mapping object at mappingIndex against this
// node's mirror dictionary and installs it as the inbound (PRes) channel.
func (r *RemoteNode) SetRxMapping(mappingIndex uint16, version uint8) error {
	entry := r.Dict.Index(mappingIndex)
	if entry == nil {
		return nil
	}
	ch, err := pdo.Compile(r.Dict, entry, version, true)
	if err != nil {
		return err
	}
	r.rxChannel = ch
	return nil
}
