// Package pdo implements the PDO Mapping Engine: compiling a mapping
// object's sub-entries into a flat list of (byte_offset, bit_offset,
// bit_length, od_ref) descriptors and projecting OD values to/from a PDO
// payload buffer, grounded on the teacher's pkg/pdo (common.go/rpdo.go/
// tpdo.go) mapping-validation logic, generalised from CANopen's byte-
// granular CAN-frame mapping to POWERLINK's bit-granular Ethernet payload
// mapping (spec.md §4.3).
package pdo

import (
	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/plerr"
)

// MaxPayloadBits bounds a single channel's mapped payload, mirroring the
// teacher's MaxPdoLength but expressed in bits since POWERLINK mappings are
// not byte-aligned.
const MaxPayloadBits = 1490 * 8

// Descriptor is one compiled mapping entry: where in the frame payload this
// OD cell lives, and which OD cell it is. A dummy padding entry (mapped
// Index 0x0000..0x001F) has Index == 0 and reserves space without touching
// the OD.
type Descriptor struct {
	ByteOffset uint16
	BitOffset  uint8
	BitLength  uint16
	Index      uint16
	Sub        uint8
}

// Channel is a compiled RPDO or TPDO mapping: the ordered descriptor list
// plus the configured PDO version that incoming/outgoing frames must match
// (spec.md §4.3).
type Channel struct {
	IsRPDO      bool
	Version     uint8
	Descriptors []Descriptor
	TotalBits   int
}

// packMapParam/unpackMapParam encode a mapping sub-entry as
// index(16) | sub(8) | bitLength(16), matching the teacher's packed-uint32
// mapping parameter layout widened to a 16-bit length field since POWERLINK
// payloads exceed CANopen's 8-byte frame.
func packMapParam(index uint16, sub uint8, bitLength uint16) uint64 {
	return uint64(index)<<24 | uint64(sub)<<16 | uint64(bitLength)
}

func unpackMapParam(param uint64) (index uint16, sub uint8, bitLength uint16) {
	index = uint16(param >> 24)
	sub = uint8(param >> 16)
	bitLength = uint16(param)
	return
}

// Compile reads a mapping object's sub-entries (od.IdxRPDOMappingBase.. /
// od.IdxTPDOMappingBase..) and builds a Channel, validating each mapped OD
// cell's PDOMap eligibility and accumulating (byte_offset, bit_offset)
// pairs in declaration order (spec.md §4.3: "sorted by frame offset" -
// declaration order is frame offset order since entries are appended
// sequentially).
func Compile(dict *od.ObjectDictionary, mappingEntry *od.Entry, version uint8, isRPDO bool) (*Channel, error) {
	countVar, err := mappingEntry.Sub(0)
	if err != nil {
		return nil, err
	}
	countAny, err := od.DecodeValue(countVar.Raw(), od.UNSIGNED8)
	if err != nil {
		return nil, err
	}
	count := int(countAny.(uint64))
	if count > od.MaxMappedEntriesPDO {
		return nil, plerr.New(plerr.CodePdoMapOverrun, "mapping entry count exceeds maximum")
	}

	ch := &Channel{IsRPDO: isRPDO, Version: version}
	bitCursor := 0
	for i := 1; i <= count; i++ {
		sub, err := mappingEntry.Sub(uint8(i))
		if err != nil {
			return nil, err
		}
		raw := sub.Raw()
		var param uint64
		for shift, b := range raw {
			param |= uint64(b) << (8 * shift)
		}
		index, subIndex, bitLength := unpackMapParam(param)

		if index < 0x20 && subIndex == 0 {
			// dummy padding entry: reserves space but maps nothing
			ch.Descriptors = append(ch.Descriptors, Descriptor{
				ByteOffset: uint16(bitCursor / 8),
				BitOffset:  uint8(bitCursor % 8),
				BitLength:  bitLength,
				Index:      0,
				Sub:        0,
			})
			bitCursor += int(bitLength)
			continue
		}

		target := dict.Index(index)
		if target == nil {
			return nil, plerr.NewOD(plerr.CodeObjectNotFound, index, subIndex, "mapped entry not found")
		}
		variable, err := target.Sub(subIndex)
		if err != nil {
			return nil, err
		}
		if !variable.PDOMap.AllowsDirection(isRPDO) {
			log.WithFields(log.Fields{"index": index, "sub": subIndex}).Warn("pdo mapping attribute error")
			return nil, plerr.NewOD(plerr.CodeAccessDenied, index, subIndex, "not mappable in this direction")
		}
		if size, fixed := variable.DataType.FixedSize(); fixed && uint16(bitLength) > uint16(size*8) {
			return nil, plerr.NewOD(plerr.CodeTypeMismatch, index, subIndex, "mapping bit length exceeds entry size")
		}

		ch.Descriptors = append(ch.Descriptors, Descriptor{
			ByteOffset: uint16(bitCursor / 8),
			BitOffset:  uint8(bitCursor % 8),
			BitLength:  bitLength,
			Index:      index,
			Sub:        subIndex,
		})
		bitCursor += int(bitLength)
	}

	if bitCursor > MaxPayloadBits {
		return nil, plerr.New(plerr.CodePdoMapOverrun, "total mapped bits exceed payload budget")
	}
	ch.TotalBits = bitCursor
	return ch, nil
}

func byteLen(bits int) int {
	return (bits + 7) / 8
}
