package frame

import (
	"encoding/binary"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// PReqFlags are the flag bits carried in the PReq frame.
type PReqFlags struct {
	// MS indicates a multiplexed-slot poll.
	MS bool
	// EN indicates the MN has a pending exception-new condition.
	EN bool
	// RD indicates the MN is ready (NMT operational or later).
	RD bool
}

// PReq is the MN's unicast Poll Request to a single CN.
type PReq struct {
	Header     Header
	Flags      PReqFlags
	PDOVersion uint8
	Payload    []byte
}

const preqFixedLen = ethHeaderLen + plHeaderLen + 1 /*reserved*/ + 1 /*flags*/ + 1 /*reserved*/ + 1 /*pdo version*/ + 1 /*reserved*/ + 2 /*size*/

// Encode produces the exact octets of a PReq frame.
func (f *PReq) Encode() []byte {
	buf := allocFrame(preqFixedLen, len(f.Payload))
	h := f.Header
	h.MsgType = MessagePReq
	rest := h.encode(buf)
	var flags uint8
	if f.Flags.MS {
		flags |= 0x20
	}
	if f.Flags.EN {
		flags |= 0x04
	}
	if f.Flags.RD {
		flags |= 0x01
	}
	rest[0] = 0 // reserved
	rest[1] = flags
	rest[2] = 0 // reserved
	rest[3] = f.PDOVersion
	rest[4] = 0 // reserved
	binary.LittleEndian.PutUint16(rest[5:7], uint16(len(f.Payload)))
	copy(rest[7:], f.Payload)
	return padAndCommit(buf, preqFixedLen+len(f.Payload))
}

func decodePReq(h Header, rest []byte) (*PReq, error) {
	const need = 7
	if len(rest) < need {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "PReq body")
	}
	flags := rest[1]
	size := binary.LittleEndian.Uint16(rest[5:7])
	payload := rest[7:]
	if len(payload) < int(size) {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "PReq payload shorter than declared size")
	}
	return &PReq{
		Header: h,
		Flags: PReqFlags{
			MS: flags&0x20 != 0,
			EN: flags&0x04 != 0,
			RD: flags&0x01 != 0,
		},
		PDOVersion: rest[3],
		Payload:    payload[:size],
	}, nil
}
