// Package sdo implements the two-layer SDO Sequence & Command Layer of
// spec.md §4.4: a reliable in-order sequence layer riding over an
// abstract transport, and a command layer multiplexing ReadByIndex/
// WriteByIndex transactions (expedited or segmented) over it. Grounded on
// the teacher's pkg/sdo (abort code taxonomy, client/server transaction
// shape) and on original_source's sdo/command.rs and sdo/sequence.rs for
// the exact wire layout DS 301 specifies, since the teacher's own SDO
// layer rides over CAN frames rather than ASnd/UDP.
package sdo

import (
	"fmt"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// AbortCode is the wire-level SDO abort code, DS 301 Table 79. This is the
// taxonomy the teacher's pkg/sdo/common.go AbortCode carries nearly
// verbatim (it was itself inherited from CANopen, which POWERLINK's SDO
// reuses unchanged).
type AbortCode uint32

const (
	AbortToggleBit         AbortCode = 0x05030000
	AbortTimeout           AbortCode = 0x05040000
	AbortCommandInvalid    AbortCode = 0x05040001
	AbortUnsupportedAccess AbortCode = 0x06010000
	AbortWriteOnly         AbortCode = 0x06010001
	AbortReadOnly          AbortCode = 0x06010002
	AbortNotExist          AbortCode = 0x06020000
	AbortNoMap             AbortCode = 0x06040041
	AbortMapLen            AbortCode = 0x06040042
	AbortHardware          AbortCode = 0x06060000
	AbortTypeMismatch      AbortCode = 0x06070010
	AbortDataLong          AbortCode = 0x06070012
	AbortDataShort         AbortCode = 0x06070013
	AbortSubUnknown        AbortCode = 0x06090011
	AbortInvalidValue      AbortCode = 0x06090030
	AbortValueHigh         AbortCode = 0x06090031
	AbortValueLow          AbortCode = 0x06090032
	AbortGeneral           AbortCode = 0x08000000
	AbortDataTransfer      AbortCode = 0x08000020
	AbortDataDeviceState   AbortCode = 0x08000022
	AbortNoData            AbortCode = 0x08000024
)

var abortDescription = map[AbortCode]string{
	AbortToggleBit:         "toggle bit not altered",
	AbortTimeout:           "SDO protocol timed out",
	AbortCommandInvalid:    "command specifier not valid or unknown",
	AbortUnsupportedAccess: "unsupported access to an object",
	AbortWriteOnly:         "attempt to read a write only object",
	AbortReadOnly:          "attempt to write a read only object",
	AbortNotExist:          "object does not exist in the object dictionary",
	AbortNoMap:             "object cannot be mapped to the PDO",
	AbortMapLen:            "num and len of object to be mapped exceeds PDO len",
	AbortHardware:          "access failed due to hardware error",
	AbortTypeMismatch:      "data type does not match, length does not match",
	AbortDataLong:          "data type does not match, length too high",
	AbortDataShort:         "data type does not match, length too short",
	AbortSubUnknown:        "sub-index does not exist",
	AbortInvalidValue:      "invalid value for parameter",
	AbortValueHigh:         "value range of parameter written too high",
	AbortValueLow:          "value range of parameter written too low",
	AbortGeneral:           "general error",
	AbortDataTransfer:      "data cannot be transferred or stored to application",
	AbortDataDeviceState:   "data cannot be transferred because of present device state",
	AbortNoData:            "no data available",
}

func (a AbortCode) Error() string {
	return fmt.Sprintf("0x%08X: %s", uint32(a), a.Description())
}

func (a AbortCode) Description() string {
	if d, ok := abortDescription[a]; ok {
		return d
	}
	return abortDescription[AbortGeneral]
}

// FromPlerr translates a plerr.Error raised by the OD layer into the wire
// abort code a command-layer response should carry, per spec.md §4.4's
// "errors follow the SDO abort taxonomy".
func FromPlerr(err error) AbortCode {
	pe, ok := err.(*plerr.Error)
	if !ok {
		return AbortGeneral
	}
	switch pe.Code {
	case plerr.CodeObjectNotFound:
		return AbortNotExist
	case plerr.CodeSubObjectNotFound:
		return AbortSubUnknown
	case plerr.CodeAccessDenied:
		return AbortUnsupportedAccess
	case plerr.CodeTypeMismatch:
		return AbortTypeMismatch
	case plerr.CodeValueOutOfRange:
		return AbortInvalidValue
	case plerr.CodeBufferTooShort:
		return AbortDataShort
	case plerr.CodeNotReady:
		return AbortDataDeviceState
	default:
		return AbortGeneral
	}
}
