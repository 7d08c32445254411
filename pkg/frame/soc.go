package frame

import (
	"encoding/binary"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// SoCFlags are the flag bits carried in the SoC frame.
type SoCFlags struct {
	// MC indicates the multiplexed cycle has completed.
	MC bool
	// PS indicates a prescaled slot.
	PS bool
}

// SoC is the Start of Cycle frame: multicast, MN-originated, carries the
// network time base for the cycle.
type SoC struct {
	Header      Header
	Flags       SoCFlags
	NetTimeSec  uint32
	NetTimeNsec uint32
	RelTimeSec  uint32
	RelTimeNsec uint32
}

const socFixedLen = ethHeaderLen + plHeaderLen + 1 /*reserved*/ + 1 /*flags*/ + 1 /*reserved*/ + 4 + 4 + 4 + 4

// Encode produces the exact octets of an SoC frame, zero-padded to the
// minimum Ethernet length.
func (f *SoC) Encode() []byte {
	buf := allocFrame(socFixedLen, 0)
	h := f.Header
	h.MsgType = MessageSoC
	rest := h.encode(buf)
	var flags uint8
	if f.Flags.MC {
		flags |= 0x80
	}
	if f.Flags.PS {
		flags |= 0x40
	}
	rest[0] = 0 // reserved
	rest[1] = flags
	rest[2] = 0 // reserved
	binary.LittleEndian.PutUint32(rest[3:7], f.NetTimeSec)
	binary.LittleEndian.PutUint32(rest[7:11], f.NetTimeNsec)
	binary.LittleEndian.PutUint32(rest[11:15], f.RelTimeSec)
	binary.LittleEndian.PutUint32(rest[15:19], f.RelTimeNsec)
	return padAndCommit(buf, socFixedLen)
}

func decodeSoC(h Header, rest []byte) (*SoC, error) {
	const need = 19
	if len(rest) < need {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "SoC body")
	}
	flags := rest[1]
	return &SoC{
		Header: h,
		Flags: SoCFlags{
			MC: flags&0x80 != 0,
			PS: flags&0x40 != 0,
		},
		NetTimeSec:  binary.LittleEndian.Uint32(rest[3:7]),
		NetTimeNsec: binary.LittleEndian.Uint32(rest[7:11]),
		RelTimeSec:  binary.LittleEndian.Uint32(rest[11:15]),
		RelTimeNsec: binary.LittleEndian.Uint32(rest[15:19]),
	}, nil
}
