package od

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// Variable is the storage cell for a single OD value: sub-index 0 of a VAR
// entry, or one sub-index of an ARRAY/RECORD. Grounded on the teacher's
// od_variable.go Variable, generalised to the richer AccessClass/PDOMap
// model and given an explicit mutex since the DLL path and SDO/application
// path touch the same cells from different goroutines (spec.md §5).
type Variable struct {
	mu sync.RWMutex

	Name     string
	SubIndex uint8
	DataType DataType
	Access   AccessClass
	PDOMap   PDOMap

	defaultValue []byte
	value        []byte
	lowLimit     []byte
	highLimit    []byte
	hasLimits    bool
}

// NewVariable builds a Variable from its default raw bytes. The caller is
// responsible for ensuring defaultValue already matches DataType's wire
// length for fixed-size types.
func NewVariable(name string, sub uint8, dt DataType, access AccessClass, pdoMap PDOMap, defaultValue []byte) *Variable {
	v := &Variable{
		Name:         name,
		SubIndex:     sub,
		DataType:     dt,
		Access:       access,
		PDOMap:       pdoMap,
		defaultValue: append([]byte(nil), defaultValue...),
	}
	v.value = append([]byte(nil), defaultValue...)
	return v
}

// SetLimits installs an inclusive [low, high] range check, only meaningful
// for fixed-size numeric types.
func (v *Variable) SetLimits(low, high []byte) {
	v.lowLimit = append([]byte(nil), low...)
	v.highLimit = append([]byte(nil), high...)
	v.hasLimits = true
}

// Raw returns a copy of the current raw value.
func (v *Variable) Raw() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]byte, len(v.value))
	copy(out, v.value)
	return out
}

// Len returns the current byte length of the stored value.
func (v *Variable) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.value)
}

// setRaw overwrites the stored value without any access/type/range checks.
// Used internally once those checks have already passed, and by extensions
// layer bypass writes (e.g. PDO apply, which re-validates attributes itself).
func (v *Variable) setRaw(b []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = append([]byte(nil), b...)
}

// checkRange validates b against the configured [low, high], if any, for
// fixed-size integer types. Float types and variable-length types are not
// range-checked here.
func (v *Variable) checkRange(b []byte) error {
	if !v.hasLimits {
		return nil
	}
	cur := decodeUint(b, v.DataType)
	low := decodeUint(v.lowLimit, v.DataType)
	high := decodeUint(v.highLimit, v.DataType)
	if signedType(v.DataType) {
		curS := decodeInt(b, v.DataType)
		lowS := decodeInt(v.lowLimit, v.DataType)
		highS := decodeInt(v.highLimit, v.DataType)
		if curS < lowS {
			return plerr.New(plerr.CodeValueOutOfRange, "below minimum")
		}
		if curS > highS {
			return plerr.New(plerr.CodeValueOutOfRange, "above maximum")
		}
		return nil
	}
	if cur < low {
		return plerr.New(plerr.CodeValueOutOfRange, "below minimum")
	}
	if cur > high {
		return plerr.New(plerr.CodeValueOutOfRange, "above maximum")
	}
	return nil
}

func signedType(dt DataType) bool {
	switch dt {
	case INTEGER8, INTEGER16, INTEGER24, INTEGER32, INTEGER40, INTEGER48, INTEGER56, INTEGER64:
		return true
	default:
		return false
	}
}

func decodeUint(b []byte, dt DataType) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		var padded [8]byte
		copy(padded[:], b)
		return binary.LittleEndian.Uint64(padded[:])
	}
}

func decodeInt(b []byte, dt DataType) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		return int64(decodeUint(b, dt))
	}
}

// EncodeUint encodes an unsigned integer value into the wire width implied
// by dt. It mirrors the teacher's od_variable.go encode() LE packing.
func EncodeUint(value uint64, dt DataType) []byte {
	size, _ := dt.FixedSize()
	b := make([]byte, size)
	switch size {
	case 1:
		b[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(b, value)
	}
	return b
}

// EncodeInt encodes a signed integer value into the wire width implied by dt.
func EncodeInt(value int64, dt DataType) []byte {
	return EncodeUint(uint64(value), dt)
}

// EncodeFloat32 encodes a REAL32 value.
func EncodeFloat32(value float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(value))
	return b
}

// EncodeFloat64 encodes a REAL64 value.
func EncodeFloat64(value float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(value))
	return b
}

// DecodeValue decodes raw bytes into a Go value (uint64, int64, float32,
// float64 or string) according to dt, mirroring the teacher's
// od_variable.go decode().
func DecodeValue(b []byte, dt DataType) (any, error) {
	switch dt {
	case BOOLEAN, UNSIGNED8, UNSIGNED16, UNSIGNED24, UNSIGNED32, UNSIGNED40, UNSIGNED48, UNSIGNED56, UNSIGNED64:
		if size, ok := dt.FixedSize(); ok && len(b) != size {
			return nil, plerr.New(plerr.CodeTypeMismatch, "size mismatch")
		}
		return decodeUint(b, dt), nil
	case INTEGER8, INTEGER16, INTEGER24, INTEGER32, INTEGER40, INTEGER48, INTEGER56, INTEGER64:
		if size, ok := dt.FixedSize(); ok && len(b) != size {
			return nil, plerr.New(plerr.CodeTypeMismatch, "size mismatch")
		}
		return decodeInt(b, dt), nil
	case REAL32:
		if len(b) != 4 {
			return nil, plerr.New(plerr.CodeTypeMismatch, "size mismatch")
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case REAL64:
		if len(b) != 8 {
			return nil, plerr.New(plerr.CodeTypeMismatch, "size mismatch")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING, DOMAIN:
		return string(b), nil
	default:
		return nil, plerr.New(plerr.CodeTypeMismatch, "unknown data type")
	}
}

// CheckSize validates that b's length matches the wire size dt implies. It
// is the type-decode step of the OD write contract (spec.md §4.2): "access
// class check, type decode, range check, atomic swap".
func CheckSize(b []byte, dt DataType) error {
	size, fixed := dt.FixedSize()
	if !fixed {
		return nil
	}
	if len(b) < size {
		return plerr.New(plerr.CodeTypeMismatch, "data too short")
	}
	if len(b) > size {
		return plerr.New(plerr.CodeTypeMismatch, "data too long")
	}
	return nil
}
