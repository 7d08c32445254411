package frame

import "github.com/powerlink-go/plstack/pkg/plerr"

// RequestedService identifies which asynchronous service the MN invites in
// an SoA frame.
type RequestedService uint8

const (
	ServiceNoService      RequestedService = 0x00
	ServiceIdentRequest   RequestedService = 0x01
	ServiceStatusRequest  RequestedService = 0x02
	ServiceNMTRequest     RequestedService = 0x03
	ServiceUnspecified    RequestedService = 0xFF
)

// SoAFlags are the flag bits carried in the SoA frame.
type SoAFlags struct {
	// EA indicates the MN acknowledges the CN's pending exception.
	EA bool
	// ER indicates the MN requests the CN reset its exception condition.
	ER bool
}

// SoA is the Start of Asynchronous frame: it opens the asynchronous phase
// and invites exactly one target to transmit in it.
type SoA struct {
	Header             Header
	NMTStatus          uint8
	Flags              SoAFlags
	RequestedServiceID RequestedService
	RequestedTarget    NodeID
	EPLVersion         uint8
}

const soaFixedLen = ethHeaderLen + plHeaderLen + 1 /*nmt status*/ + 1 /*flags*/ + 1 /*reserved*/ + 1 /*service id*/ + 1 /*target*/ + 1 /*epl version*/

// Encode produces the exact octets of an SoA frame.
func (f *SoA) Encode() []byte {
	buf := allocFrame(soaFixedLen, 0)
	h := f.Header
	h.MsgType = MessageSoA
	rest := h.encode(buf)
	var flags uint8
	if f.Flags.EA {
		flags |= 0x04
	}
	if f.Flags.ER {
		flags |= 0x02
	}
	rest[0] = f.NMTStatus
	rest[1] = flags
	rest[2] = 0 // reserved
	rest[3] = uint8(f.RequestedServiceID)
	rest[4] = uint8(f.RequestedTarget)
	rest[5] = f.EPLVersion
	return padAndCommit(buf, soaFixedLen)
}

func decodeSoA(h Header, rest []byte) (*SoA, error) {
	const need = 6
	if len(rest) < need {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "SoA body")
	}
	flags := rest[1]
	return &SoA{
		Header:    h,
		NMTStatus: rest[0],
		Flags: SoAFlags{
			EA: flags&0x04 != 0,
			ER: flags&0x02 != 0,
		},
		RequestedServiceID: RequestedService(rest[3]),
		RequestedTarget:    NodeID(rest[4]),
		EPLVersion:         rest[5],
	}, nil
}
