package sdo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerlink-go/plstack/pkg/od"
)

func TestSequenceHeaderRoundTrip(t *testing.T) {
	h := SequenceHeader{ReceiveSeqNum: 42, ReceiveCon: RConConnectionValid, SendSeqNum: 15, SendCon: SConConnectionValidAckRequest}
	b := h.Encode()
	assert.Equal(t, []byte{0xAA, 0x3F, 0x00, 0x00}, b)

	decoded, err := DecodeSequenceHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestCommandExpeditedRoundTrip(t *testing.T) {
	req := WriteByIndexRequest{Index: 0x1018, SubIndex: 1, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	cmd := &Command{
		Header:  CommandHeader{TransactionID: 1, CommandID: CommandWriteByIndex, Segmentation: SegExpedited},
		Payload: req.Encode(),
	}
	encoded := cmd.Encode()
	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	assert.Equal(t, cmd.Header, decoded.Header)
	assert.Equal(t, cmd.Payload, decoded.Payload)
}

func TestCommandSegmentedInitiateCarriesDataSize(t *testing.T) {
	total := uint32(1000)
	cmd := &Command{
		Header:   CommandHeader{TransactionID: 2, CommandID: CommandWriteByIndex, Segmentation: SegInitiate},
		DataSize: &total,
		Payload:  []byte{0x10, 0x60, 0x00, 0x00},
	}
	decoded, err := DecodeCommand(cmd.Encode())
	require.NoError(t, err)
	require.NotNil(t, decoded.DataSize)
	assert.Equal(t, total, *decoded.DataSize)
}

// loopbackTransport wires a Client's Session directly into a Server for
// tests, standing in for the ASnd/UDP adapters.
type loopbackTransport struct {
	server  *Server
	session *Session
}

func (lt *loopbackTransport) Send(peer string, payload []byte) error {
	if len(payload) <= SeqHeaderLen {
		return nil
	}
	cmd, err := DecodeCommand(payload[SeqHeaderLen:])
	if err != nil {
		return err
	}
	resp := lt.server.Handle(cmd)
	lt.session.Deliver(resp)
	return nil
}

func newLoopback(dict *od.ObjectDictionary) *Client {
	server := NewServer(dict, nil)
	lt := &loopbackTransport{server: server}
	session := NewSession("loopback", lt, nil)
	lt.session = session
	return NewClient(session)
}

func TestClientServerReadWriteRoundTrip(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	client := newLoopback(dict)

	require.NoError(t, client.WriteByIndex(od.IdxCycleLength, 0, od.EncodeUint(3000, od.UNSIGNED32)))

	data, err := client.ReadByIndex(od.IdxCycleLength, 0)
	require.NoError(t, err)
	assert.Equal(t, od.EncodeUint(3000, od.UNSIGNED32), data)
}

func TestClientServerReadUnknownIndexAborts(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	client := newLoopback(dict)

	_, err := client.ReadByIndex(0xBEEF, 0)
	assert.Error(t, err)
}

func TestClientServerWriteReadOnlyAborts(t *testing.T) {
	dict := od.New(nil)
	od.BuildMandatory(dict, 1)
	client := newLoopback(dict)

	err := client.WriteByIndex(od.IdxDeviceType, 0, od.EncodeUint(1, od.UNSIGNED32))
	assert.Error(t, err)
}

func TestSessionRejectsOutOfOrderSequence(t *testing.T) {
	server := NewServer(od.New(nil), nil)
	lt := &loopbackTransport{server: server}
	session := NewSession("peer", lt, nil)
	lt.session = session

	require.NoError(t, session.Open())
	_, _, err := session.HandleInboundSequence(SequenceHeader{SendCon: SConInitialization})
	require.NoError(t, err)
	_, _, err = session.HandleInboundSequence(SequenceHeader{SendSeqNum: 5, SendCon: SConConnectionValid})
	assert.Error(t, err)
}
