// Package od implements the Object Dictionary: an indexed store of
// strongly-typed entries with per-entry access rules, PDO-mapping
// eligibility, default/actual/limit values and write hooks, grounded on the
// teacher's pkg/od (entry.go/variable.go/interface.go), generalised from
// CANopen's access-type/PDO-mapping-bit model to the richer access-class and
// mapping-eligibility model DS 301 specifies (spec.md §3).
package od

import "fmt"

// DataType tags the wire representation of a Variable, mirroring the
// teacher's od_constants.go DataType set (CiA 301 §7.1.2), which POWERLINK
// shares verbatim with CANopen.
type DataType uint8

const (
	BOOLEAN DataType = iota + 1
	INTEGER8
	INTEGER16
	INTEGER32
	UNSIGNED8
	UNSIGNED16
	UNSIGNED32
	REAL32
	VISIBLE_STRING
	OCTET_STRING
	UNICODE_STRING
	TIME_OF_DAY
	TIME_DIFFERENCE
	DOMAIN
	INTEGER24
	REAL64
	INTEGER40
	INTEGER48
	INTEGER56
	INTEGER64
	UNSIGNED24
	UNSIGNED40
	UNSIGNED48
	UNSIGNED56
	UNSIGNED64
)

// FixedSize returns the wire length in bytes for fixed-size data types, or
// (0, false) for variable-length types (VISIBLE_STRING, OCTET_STRING,
// UNICODE_STRING, DOMAIN).
func (d DataType) FixedSize() (int, bool) {
	switch d {
	case BOOLEAN, INTEGER8, UNSIGNED8:
		return 1, true
	case INTEGER16, UNSIGNED16:
		return 2, true
	case INTEGER24, UNSIGNED24:
		return 3, true
	case INTEGER32, UNSIGNED32, REAL32, TIME_OF_DAY, TIME_DIFFERENCE:
		return 4, true
	case INTEGER40, UNSIGNED40:
		return 5, true
	case INTEGER48, UNSIGNED48:
		return 6, true
	case INTEGER56, UNSIGNED56:
		return 7, true
	case INTEGER64, UNSIGNED64, REAL64:
		return 8, true
	default:
		return 0, false
	}
}

func (d DataType) String() string {
	switch d {
	case BOOLEAN:
		return "BOOLEAN"
	case INTEGER8:
		return "INTEGER8"
	case INTEGER16:
		return "INTEGER16"
	case INTEGER32:
		return "INTEGER32"
	case UNSIGNED8:
		return "UNSIGNED8"
	case UNSIGNED16:
		return "UNSIGNED16"
	case UNSIGNED32:
		return "UNSIGNED32"
	case REAL32:
		return "REAL32"
	case VISIBLE_STRING:
		return "VISIBLE_STRING"
	case OCTET_STRING:
		return "OCTET_STRING"
	case UNICODE_STRING:
		return "UNICODE_STRING"
	case TIME_OF_DAY:
		return "TIME_OF_DAY"
	case TIME_DIFFERENCE:
		return "TIME_DIFFERENCE"
	case DOMAIN:
		return "DOMAIN"
	case REAL64:
		return "REAL64"
	case UNSIGNED64:
		return "UNSIGNED64"
	case INTEGER64:
		return "INTEGER64"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(d))
	}
}

// AccessClass is the entry/sub-entry access rule (spec.md §3).
type AccessClass uint8

const (
	AccessNoAccess AccessClass = iota
	AccessReadOnly
	AccessWriteOnly
	AccessReadWrite
	AccessConst
)

// Readable reports whether an SDO/PDO/application read is permitted.
func (a AccessClass) Readable() bool {
	return a == AccessReadOnly || a == AccessReadWrite || a == AccessConst
}

// Writable reports whether an SDO/application write is permitted. Constant
// entries are never writable, even though they are readable.
func (a AccessClass) Writable() bool {
	return a == AccessWriteOnly || a == AccessReadWrite
}

// PDOMap is the PDO-mapping eligibility of an entry/sub-entry (spec.md §3).
type PDOMap uint8

const (
	PDOMapNone PDOMap = iota
	PDOMapDefault
	PDOMapOptional
	PDOMapTPDOOnly
	PDOMapRPDOOnly
)

// AllowsDirection reports whether mapping this sub-entry into a TPDO (isRPDO
// == false) or RPDO (isRPDO == true) is permitted.
func (m PDOMap) AllowsDirection(isRPDO bool) bool {
	switch m {
	case PDOMapNone:
		return false
	case PDOMapDefault, PDOMapOptional:
		return true
	case PDOMapTPDOOnly:
		return !isRPDO
	case PDOMapRPDOOnly:
		return isRPDO
	default:
		return false
	}
}

// ObjectType distinguishes the three entry shapes spec.md §3 defines.
type ObjectType uint8

const (
	ObjectVAR ObjectType = iota
	ObjectARRAY
	ObjectRECORD
)

// Mandatory/standard index ranges and indices (spec.md §4.2, EPSG DS 301 §6),
// matching the teacher's RPDO/TPDO base constants (od/constants.go) which
// already sit at the CANopen analogue of these ranges.
const (
	IdxDeviceType          uint16 = 0x1000
	IdxErrorRegister       uint16 = 0x1001
	IdxCycleLength         uint16 = 0x1006
	IdxIdentity            uint16 = 0x1018
	IdxVerifyConfiguration uint16 = 0x1020
	IdxInterfaceBase       uint16 = 0x1030
	IdxSDOSequenceTimeout  uint16 = 0x1300
	IdxRPDOCommBase        uint16 = 0x1400
	IdxRPDOCommEnd         uint16 = 0x16FF
	IdxRPDOMappingBase     uint16 = 0x1600
	IdxTPDOCommBase        uint16 = 0x1800
	IdxTPDOCommEnd         uint16 = 0x1AFF
	IdxTPDOMappingBase     uint16 = 0x1A00
	IdxDLLErrorThreshBase  uint16 = 0x1C0A
	IdxDLLErrorThreshEnd   uint16 = 0x1C0F
	IdxDiagnosticBase      uint16 = 0x1E40
	IdxDiagnosticEnd       uint16 = 0x1E4F
	IdxNodeAssignment      uint16 = 0x1F81
	IdxFeatureFlags        uint16 = 0x1F82
	IdxNMTCurrentState     uint16 = 0x1F8C
	IdxPResPayloadLimits   uint16 = 0x1F8D
	IdxCycleTimingRecord   uint16 = 0x1F98
	IdxCNBusyTimeout       uint16 = 0x1F99
	IdxHostname            uint16 = 0x1F9A
	IdxNMTResetCause       uint16 = 0x1F9E
	IdxRestoreDefaults     uint16 = 0x1011
)

// MaxMappedEntriesPDO bounds the number of (index,sub,length) triples a
// single mapping object may list, matching the teacher's MaxMappedEntriesPdo.
const MaxMappedEntriesPDO = 8

// MNDefaultNodeID is the fixed POWERLINK Node ID reserved for the managing
// node (spec.md §3: "The MN is fixed at 240").
const MNDefaultNodeID uint8 = 240

// Node assignment flag bits for IdxNodeAssignment sub-entries (spec.md §3 MN
// node record "assignment flags").
const (
	NodeAssignValid         uint32 = 1 << 0
	NodeAssignIsochronous   uint32 = 1 << 1
	NodeAssignMandatory     uint32 = 1 << 3
	NodeAssignAsyncOnly     uint32 = 1 << 8
	NodeAssignMultiplexed   uint32 = 1 << 10
	NodeAssignPresentAtBoot uint32 = 1 << 12
)
