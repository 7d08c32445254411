package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoCRoundTrip(t *testing.T) {
	f := &SoC{
		Header: Header{
			Destination: MulticastSoC,
			Source:      MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
			PlDest:      NodeID(NodeIDBroadcast),
			PlSource:    NodeID(NodeIDMN),
		},
		Flags:       SoCFlags{MC: true, PS: false},
		NetTimeSec:  123,
		NetTimeNsec: 456,
		RelTimeSec:  789,
		RelTimeNsec: 1011,
	}
	encoded := f.Encode()
	assert.GreaterOrEqual(t, len(encoded), MinFrameLen)

	decodedAny, err := Decode(encoded)
	assert.Nil(t, err)
	decoded, ok := decodedAny.(*SoC)
	assert.True(t, ok)
	assert.Equal(t, f.Flags, decoded.Flags)
	assert.Equal(t, f.NetTimeSec, decoded.NetTimeSec)
	assert.Equal(t, f.NetTimeNsec, decoded.NetTimeNsec)
	assert.Equal(t, f.RelTimeSec, decoded.RelTimeSec)
	assert.Equal(t, f.RelTimeNsec, decoded.RelTimeNsec)
	assert.Equal(t, f.Header.PlDest, decoded.Header.PlDest)
	assert.Equal(t, f.Header.PlSource, decoded.Header.PlSource)
}

func TestPReqRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	f := &PReq{
		Header: Header{
			Destination: MAC{1, 2, 3, 4, 5, 6},
			Source:      MAC{6, 5, 4, 3, 2, 1},
			PlDest:      1,
			PlSource:    NodeIDMN,
		},
		Flags:      PReqFlags{MS: true, EN: false, RD: true},
		PDOVersion: 0x10,
		Payload:    payload,
	}
	encoded := f.Encode()
	decodedAny, err := Decode(encoded)
	assert.Nil(t, err)
	decoded := decodedAny.(*PReq)
	assert.Equal(t, f.Flags, decoded.Flags)
	assert.Equal(t, f.PDOVersion, decoded.PDOVersion)
	assert.Equal(t, payload, decoded.Payload)
}

func TestPResRoundTrip(t *testing.T) {
	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := &PRes{
		Header: Header{
			Destination: MulticastPRes,
			PlDest:      NodeIDBroadcast,
			PlSource:    5,
		},
		Flags:      PResFlags{MS: false, EN: true, RD: true, RS: 3, PR: 5},
		NMTStatus:  0xFF,
		PDOVersion: 0x11,
		Payload:    payload,
	}
	encoded := f.Encode()
	decodedAny, err := Decode(encoded)
	assert.Nil(t, err)
	decoded := decodedAny.(*PRes)
	assert.Equal(t, f.Flags, decoded.Flags)
	assert.Equal(t, f.NMTStatus, decoded.NMTStatus)
	assert.Equal(t, f.PDOVersion, decoded.PDOVersion)
	assert.Equal(t, payload, decoded.Payload)
}

func TestSoARoundTrip(t *testing.T) {
	f := &SoA{
		Header:             Header{Destination: MulticastSoA, PlDest: NodeIDBroadcast, PlSource: NodeIDMN},
		NMTStatus:          0x05,
		RequestedServiceID: ServiceIdentRequest,
		RequestedTarget:    3,
		EPLVersion:         0x20,
	}
	encoded := f.Encode()
	decodedAny, err := Decode(encoded)
	assert.Nil(t, err)
	decoded := decodedAny.(*SoA)
	assert.Equal(t, f.RequestedServiceID, decoded.RequestedServiceID)
	assert.Equal(t, f.RequestedTarget, decoded.RequestedTarget)
	assert.Equal(t, f.EPLVersion, decoded.EPLVersion)
}

func TestASndRoundTrip(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f := &ASnd{
		Header:    Header{Destination: MulticastASnd, PlDest: NodeIDMN, PlSource: 7},
		ServiceID: ServiceIDSDO,
		Payload:   payload,
	}
	encoded := f.Encode()
	decodedAny, err := Decode(encoded)
	assert.Nil(t, err)
	decoded := decodedAny.(*ASnd)
	assert.Equal(t, f.ServiceID, decoded.ServiceID)
	assert.Equal(t, payload, decoded.Payload)
}

// TestSoCKnownBytes pins the post-header body layout against the reference
// wire values: reserved, flags, reserved, NetTimeSec, NetTimeNsec,
// RelTimeSec, RelTimeNsec, all little-endian.
func TestSoCKnownBytes(t *testing.T) {
	f := &SoC{
		Header:      Header{Destination: MulticastSoC, Source: MAC{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}, PlDest: NodeIDBroadcast, PlSource: NodeIDMN},
		Flags:       SoCFlags{MC: true, PS: false},
		NetTimeSec:  123,
		NetTimeNsec: 456,
		RelTimeSec:  789,
		RelTimeNsec: 101,
	}
	encoded := f.Encode()
	body := encoded[ethHeaderLen+plHeaderLen:]
	want := []byte{
		0x00,         // reserved
		0x80,         // flags: MC set
		0x00,         // reserved
		123, 0, 0, 0, // NetTimeSec
		200, 1, 0, 0, // NetTimeNsec (456)
		21, 3, 0, 0,  // RelTimeSec (789)
		101, 0, 0, 0, // RelTimeNsec
	}
	assert.Equal(t, want, body[:len(want)])
}

// TestPReqKnownBytes pins PReq's 7-byte post-header body: reserved, flags,
// reserved, PDOVersion, reserved, size(2).
func TestPReqKnownBytes(t *testing.T) {
	f := &PReq{
		Header:     Header{Destination: MAC{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}, Source: MAC{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, PlDest: 55, PlSource: NodeIDMN},
		Flags:      PReqFlags{MS: true, EN: false, RD: true},
		PDOVersion: 2,
		Payload:    []byte{0x01, 0x02, 0x03, 0x04},
	}
	encoded := f.Encode()
	body := encoded[ethHeaderLen+plHeaderLen:]
	want := []byte{
		0x00, // reserved
		0x21, // flags: MS (bit5) | RD (bit0)
		0x00, // reserved
		2,    // PDOVersion
		0x00, // reserved
		4, 0, // size
		0x01, 0x02, 0x03, 0x04,
	}
	assert.Equal(t, want, body[:len(want)])
}

// TestPResKnownBytes pins PRes's 7-byte post-header body: nmt_state, flags,
// pr/rs octet, pdo_version, reserved, size(2).
func TestPResKnownBytes(t *testing.T) {
	f := &PRes{
		Header:     Header{Destination: MulticastPRes, Source: MAC{0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC}, PlDest: NodeIDBroadcast, PlSource: 10},
		NMTStatus:  0x6D, // READY_TO_OPERATE status code, used as a literal here
		Flags:      PResFlags{MS: false, EN: true, RD: true, PR: 7, RS: 0},
		PDOVersion: 1,
		Payload:    []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
	}
	encoded := f.Encode()
	body := encoded[ethHeaderLen+plHeaderLen:]
	want := []byte{
		0x6D, // nmt_state
		0x11, // flags: EN (bit4) | RD (bit0)
		0x38, // pr/rs octet: pr=7<<3
		1,    // pdo_version (full byte)
		0x00, // reserved
		6, 0, // size
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
	}
	assert.Equal(t, want, body[:len(want)])
}

// TestSoAKnownBytes pins SoA's 6-byte post-header body: nmt_state, flags
// (EA/ER), reserved, service id, target, epl version.
func TestSoAKnownBytes(t *testing.T) {
	f := &SoA{
		Header:             Header{Destination: MulticastSoA, Source: MAC{0xFE, 0xDC, 0xBA, 0x98, 0x76, 0x54}, PlDest: NodeIDBroadcast, PlSource: NodeIDMN},
		NMTStatus:          0x1D, // NmtPreOperational1-style status code used as a literal here
		Flags:              SoAFlags{EA: true, ER: false},
		RequestedServiceID: ServiceStatusRequest,
		RequestedTarget:    42,
		EPLVersion:         1,
	}
	encoded := f.Encode()
	body := encoded[ethHeaderLen+plHeaderLen:]
	want := []byte{
		0x1D, // nmt_state
		0x04, // flags: EA (bit2)
		0x00, // reserved
		0x02, // req service id: StatusRequest
		42,   // target node id
		1,    // epl version
	}
	assert.Equal(t, want, body[:len(want)])
}

// TestASndKnownBytes pins ASnd's single-byte post-header body against the
// reference layout (no reserved padding before the service id).
func TestASndKnownBytes(t *testing.T) {
	f := &ASnd{
		Header:    Header{Destination: MAC{0x22, 0x22, 0x22, 0x22, 0x22, 0x22}, Source: MAC{0x11, 0x11, 0x11, 0x11, 0x11, 0x11}, PlDest: 10, PlSource: 240},
		ServiceID: ServiceIDSDO,
		Payload:   []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	encoded := f.Encode()
	body := encoded[ethHeaderLen+plHeaderLen:]
	want := []byte{0x05, 0xDE, 0xAD, 0xBE, 0xEF}
	assert.Equal(t, want, body[:len(want)])
}

func TestDecodeInvalidEtherType(t *testing.T) {
	buf := make([]byte, MinFrameLen)
	buf[12] = 0x08
	buf[13] = 0x00
	_, err := Decode(buf)
	assert.NotNil(t, err)
}

func TestDecodeUnknownMessageType(t *testing.T) {
	buf := make([]byte, MinFrameLen)
	buf[12] = 0x88
	buf[13] = 0xAB
	buf[14] = 0x7F // not a recognised message type
	_, err := Decode(buf)
	assert.NotNil(t, err)
}

func TestDecodeTruncatedFrame(t *testing.T) {
	buf := make([]byte, 10)
	_, err := Decode(buf)
	assert.NotNil(t, err)
}

func TestDecodeTolerantOfTrailingPadding(t *testing.T) {
	f := &SoA{Header: Header{PlDest: NodeIDBroadcast, PlSource: NodeIDMN}}
	encoded := f.Encode()
	padded := append(encoded, make([]byte, 10)...)
	_, err := Decode(padded)
	assert.Nil(t, err)
}
