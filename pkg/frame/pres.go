package frame

import (
	"encoding/binary"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// PResFlags are the flag bits carried in the PRes frame.
type PResFlags struct {
	MS bool
	EN bool
	RD bool
	// RS is the request-to-send counter, 3 bits.
	RS uint8
	// PR is the priority, 3 bits.
	PR uint8
}

// PRes is a CN's (or the MN's own) multicast Poll Response.
type PRes struct {
	Header     Header
	Flags      PResFlags
	NMTStatus  uint8
	PDOVersion uint8
	Payload    []byte
}

const presFixedLen = ethHeaderLen + plHeaderLen + 1 /*nmt status*/ + 1 /*flags*/ + 1 /*pr/rs*/ + 1 /*pdo version*/ + 1 /*reserved*/ + 2 /*size*/

// Encode produces the exact octets of a PRes frame.
func (f *PRes) Encode() []byte {
	buf := allocFrame(presFixedLen, len(f.Payload))
	h := f.Header
	h.MsgType = MessagePRes
	rest := h.encode(buf)
	var flags uint8
	if f.Flags.MS {
		flags |= 0x20
	}
	if f.Flags.EN {
		flags |= 0x10
	}
	if f.Flags.RD {
		flags |= 0x01
	}
	rest[0] = f.NMTStatus
	rest[1] = flags
	rest[2] = (f.Flags.PR&0x07)<<3 | (f.Flags.RS & 0x07)
	rest[3] = f.PDOVersion
	rest[4] = 0 // reserved
	binary.LittleEndian.PutUint16(rest[5:7], uint16(len(f.Payload)))
	copy(rest[7:], f.Payload)
	return padAndCommit(buf, presFixedLen+len(f.Payload))
}

func decodePRes(h Header, rest []byte) (*PRes, error) {
	const need = 7
	if len(rest) < need {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "PRes body")
	}
	flags := rest[1]
	prrs := rest[2]
	size := binary.LittleEndian.Uint16(rest[5:7])
	payload := rest[7:]
	if len(payload) < int(size) {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "PRes payload shorter than declared size")
	}
	return &PRes{
		Header: h,
		Flags: PResFlags{
			MS: flags&0x20 != 0,
			EN: flags&0x10 != 0,
			RD: flags&0x01 != 0,
			RS: prrs & 0x07,
			PR: (prrs >> 3) & 0x07,
		},
		NMTStatus:  rest[0],
		PDOVersion: rest[3],
		Payload:    payload[:size],
	}, nil
}
