// Package frame implements bit-exact encode/decode of the five POWERLINK
// message types (SoC, PReq, PRes, SoA, ASnd) inside an Ethernet-II envelope,
// grounded on the teacher's little-endian wire encoding style
// (od_variable.go's encode/decode) and on the buffer-borrowing, zero-alloc
// decode shape of _examples/distributed-ecat/ecfr (OverlayETHFrame/GetPayload).
//
// The codec is stateless: Encode produces exactly the octets DS 301 defines,
// Decode never allocates beyond the payload slice it borrows from the input,
// and both tolerate Ethernet padding.
package frame

import (
	"encoding/binary"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// EtherTypePowerlink is the IEEE 802.3 EtherType reserved for POWERLINK.
const EtherTypePowerlink uint16 = 0x88AB

// Ethernet frame length bounds, excluding the 4-octet FCS which the NIC
// computes. 64 octets including FCS (spec.md §3) is therefore 60 here.
const (
	MinFrameLen = 60
	MaxFrameLen = 1518

	macLen       = 6
	ethHeaderLen = macLen + macLen + 2 // dst MAC, src MAC, EtherType
	plHeaderLen  = 3                  // MessageType, dst node, src node
)

// Well-known multicast MAC addresses (spec.md §6).
var (
	MulticastSoC  = MAC{0x01, 0x11, 0x1E, 0x00, 0x00, 0x01}
	MulticastPRes = MAC{0x01, 0x11, 0x1E, 0x00, 0x00, 0x02}
	MulticastSoA  = MAC{0x01, 0x11, 0x1E, 0x00, 0x00, 0x03}
	MulticastASnd = MAC{0x01, 0x11, 0x1E, 0x00, 0x00, 0x04}
	MulticastAMNI = MAC{0x01, 0x11, 0x1E, 0x00, 0x00, 0x05}
)

// MAC is an Ethernet hardware address.
type MAC [6]byte

// MessageType is the 7-bit POWERLINK message type carried in the high octet
// following the Ethernet header (the reserved top bit is always zero on the
// wire and ignored on decode).
type MessageType uint8

const (
	MessageSoC  MessageType = 0x01
	MessagePReq MessageType = 0x03
	MessagePRes MessageType = 0x04
	MessageSoA  MessageType = 0x05
	MessageASnd MessageType = 0x06
)

func (m MessageType) String() string {
	switch m {
	case MessageSoC:
		return "SoC"
	case MessagePReq:
		return "PReq"
	case MessagePRes:
		return "PRes"
	case MessageSoA:
		return "SoA"
	case MessageASnd:
		return "ASnd"
	default:
		return "Unknown"
	}
}

// NodeID is a POWERLINK Node ID, valid in [1, 254] on the wire (0 and
// reserved values are rejected by the higher layers, not by the codec,
// which must tolerate any octet value per the "tolerate trailing padding,
// never allocate beyond the borrowed slice" contract).
type NodeID uint8

// Reserved / special Node IDs (spec.md §3).
const (
	NodeIDInvalid     NodeID = 0
	NodeIDMN          NodeID = 240
	NodeIDSelf        NodeID = 251
	NodeIDDummy       NodeID = 252
	NodeIDDiagnostic  NodeID = 253
	NodeIDRouter      NodeID = 254
	NodeIDBroadcast   NodeID = 255
	NodeIDMaxRegular  NodeID = 239
	NodeIDMinRegular  NodeID = 1
)

// Header is the common preamble of every POWERLINK frame, layered directly
// on the Ethernet-II envelope.
type Header struct {
	Destination MAC
	Source      MAC
	MsgType     MessageType
	PlDest      NodeID
	PlSource    NodeID
}

func (h Header) encode(buf []byte) []byte {
	copy(buf[0:6], h.Destination[:])
	copy(buf[6:12], h.Source[:])
	binary.BigEndian.PutUint16(buf[12:14], EtherTypePowerlink)
	buf[14] = uint8(h.MsgType) & 0x7F
	buf[15] = uint8(h.PlDest)
	buf[16] = uint8(h.PlSource)
	return buf[ethHeaderLen+plHeaderLen:]
}

func decodeHeader(b []byte) (Header, []byte, error) {
	if len(b) < ethHeaderLen+plHeaderLen {
		return Header{}, nil, plerr.New(plerr.CodeTruncatedFrame, "frame shorter than header")
	}
	var h Header
	copy(h.Destination[:], b[0:6])
	copy(h.Source[:], b[6:12])
	etherType := binary.BigEndian.Uint16(b[12:14])
	if etherType != EtherTypePowerlink {
		return Header{}, nil, plerr.New(plerr.CodeInvalidEtherType, "")
	}
	h.MsgType = MessageType(b[14] & 0x7F)
	h.PlDest = NodeID(b[15])
	h.PlSource = NodeID(b[16])
	return h, b[ethHeaderLen+plHeaderLen:], nil
}

// padAndCommit zero-pads buf from used up to MinFrameLen octets (headers
// included) so the wire frame meets the 64-octet minimum, then returns the
// final frame slice.
func padAndCommit(buf []byte, used int) []byte {
	if used < MinFrameLen {
		for i := used; i < MinFrameLen; i++ {
			buf[i] = 0
		}
		used = MinFrameLen
	}
	return buf[:used]
}

// allocFrame returns a zeroed buffer large enough for fixedLen bytes of
// header/fixed fields plus payloadLen bytes of payload, at least MinFrameLen.
func allocFrame(fixedLen, payloadLen int) []byte {
	total := fixedLen + payloadLen
	if total < MinFrameLen {
		total = MinFrameLen
	}
	return make([]byte, total)
}

// Decode inspects the Ethernet/POWERLINK header and dispatches to the
// message-specific decoder. It returns one of *SoC, *PReq, *PRes, *SoA or
// *ASnd as the first return value.
func Decode(b []byte) (any, error) {
	h, rest, err := decodeHeader(b)
	if err != nil {
		return nil, err
	}
	switch h.MsgType {
	case MessageSoC:
		return decodeSoC(h, rest)
	case MessagePReq:
		return decodePReq(h, rest)
	case MessagePRes:
		return decodePRes(h, rest)
	case MessageSoA:
		return decodeSoA(h, rest)
	case MessageASnd:
		return decodeASnd(h, rest)
	default:
		return nil, plerr.New(plerr.CodeUnknownMessageType, "")
	}
}
