package frame

import "github.com/powerlink-go/plstack/pkg/plerr"

// ASndServiceID identifies the service-specific payload carried by an ASnd
// frame.
type ASndServiceID uint8

const (
	ServiceIDIdentResponse  ASndServiceID = 0x01
	ServiceIDStatusResponse ASndServiceID = 0x02
	ServiceIDNMTRequest     ASndServiceID = 0x03
	ServiceIDNMTCommand     ASndServiceID = 0x04
	ServiceIDSDO            ASndServiceID = 0x05
)

// ASnd is the Asynchronous Send frame: unicast or multicast, carrying one
// of the service-specific payloads (IdentResponse, StatusResponse,
// NMTRequest, NMTCommand, SDO). The codec does not interpret the payload
// beyond the service ID; the nmt/sdo/boot packages own that.
type ASnd struct {
	Header    Header
	ServiceID ASndServiceID
	Payload   []byte
}

const asndFixedLen = ethHeaderLen + plHeaderLen + 1 /*service id*/

// Encode produces the exact octets of an ASnd frame.
func (f *ASnd) Encode() []byte {
	buf := allocFrame(asndFixedLen, len(f.Payload))
	h := f.Header
	h.MsgType = MessageASnd
	rest := h.encode(buf)
	rest[0] = uint8(f.ServiceID)
	copy(rest[1:], f.Payload)
	return padAndCommit(buf, asndFixedLen+len(f.Payload))
}

func decodeASnd(h Header, rest []byte) (*ASnd, error) {
	if len(rest) < 1 {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "ASnd body")
	}
	return &ASnd{
		Header:    h,
		ServiceID: ASndServiceID(rest[0]),
		Payload:   rest[1:],
	}, nil
}
