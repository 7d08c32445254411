package sdo

import "github.com/powerlink-go/plstack/pkg/plerr"

// ReceiveConnState/SendConnState are the rcon/scon fields of the sequence
// layer header (DS 301 Table 53), grounded verbatim on
// original_source/sdo/sequence.rs's ReceiveConnState/SendConnState.
type ReceiveConnState uint8

const (
	RConNoConnection ReceiveConnState = iota
	RConInitialization
	RConConnectionValid
	RConErrorResponse
)

type SendConnState uint8

const (
	SConNoConnection SendConnState = iota
	SConInitialization
	SConConnectionValid
	SConConnectionValidAckRequest
)

// SeqHeaderLen is the fixed 4-byte sequence layer header size (DS 301
// Table 52).
const SeqHeaderLen = 4

// SequenceHeader is the 4-byte ASnd/UDP SDO sequence layer header: a 6-bit
// sequence number and 2-bit connection state on each direction.
type SequenceHeader struct {
	ReceiveSeqNum uint8
	ReceiveCon    ReceiveConnState
	SendSeqNum    uint8
	SendCon       SendConnState
}

// Encode packs the header per original_source/sdo/sequence.rs's bit layout:
// octet0 = rsnr<<2 | rcon, octet1 = ssnr<<2 | scon, octets 2-3 reserved.
func (h SequenceHeader) Encode() []byte {
	b := make([]byte, SeqHeaderLen)
	b[0] = (h.ReceiveSeqNum << 2) | uint8(h.ReceiveCon)
	b[1] = (h.SendSeqNum << 2) | uint8(h.SendCon)
	return b
}

// DecodeSequenceHeader parses the 4-byte sequence layer header.
func DecodeSequenceHeader(b []byte) (SequenceHeader, error) {
	if len(b) < SeqHeaderLen {
		return SequenceHeader{}, plerr.New(plerr.CodeTruncatedFrame, "sequence header")
	}
	return SequenceHeader{
		ReceiveCon:    ReceiveConnState(b[0] & 0x03),
		ReceiveSeqNum: (b[0] >> 2) & 0x3F,
		SendCon:       SendConnState(b[1] & 0x03),
		SendSeqNum:    (b[1] >> 2) & 0x3F,
	}, nil
}

// ConnState is the sequence layer connection lifecycle, spec.md §4.4:
// "idle -> init -> connected -> closing -> idle".
type ConnState uint8

const (
	ConnIdle ConnState = iota
	ConnInit
	ConnConnected
	ConnClosing
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnInit:
		return "init"
	case ConnConnected:
		return "connected"
	case ConnClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// seqNumNext advances a 6-bit sequence number with wraparound.
func seqNumNext(n uint8) uint8 {
	return (n + 1) & 0x3F
}
