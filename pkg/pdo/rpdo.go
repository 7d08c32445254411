package pdo

import (
	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/plerr"
)

// ApplyFromFrame validates an incoming RPDO payload against a compiled
// channel (length and PDO version) and writes each mapped cell into the OD
// (spec.md §4.3 apply_from_frame). A wire PDO version mismatch signals
// CodePdoVersionMismatch and the whole payload is rejected without touching
// the OD.
func ApplyFromFrame(buf []byte, ch *Channel, dict *od.ObjectDictionary, wireVersion uint8) error {
	if !ch.IsRPDO {
		return plerr.New(plerr.CodeInternal, "ApplyFromFrame called on TPDO channel")
	}
	if wireVersion != ch.Version {
		return plerr.New(plerr.CodePdoVersionMismatch, "")
	}
	need := byteLen(ch.TotalBits)
	if len(buf) < need {
		return plerr.New(plerr.CodeBufferTooShort, "frame payload smaller than compiled mapping total")
	}
	for _, d := range ch.Descriptors {
		if d.Index == 0 {
			continue
		}
		entry := dict.Index(d.Index)
		if entry == nil {
			return plerr.NewOD(plerr.CodeObjectNotFound, d.Index, d.Sub, "")
		}
		variable, err := entry.Sub(d.Sub)
		if err != nil {
			return err
		}
		bitOffset := int(d.ByteOffset)*8 + int(d.BitOffset)
		value := readBits(buf, bitOffset, d.BitLength)
		nbytes := byteLen(int(d.BitLength))
		if size, fixed := variable.DataType.FixedSize(); fixed {
			nbytes = size
		}
		raw := uint64ToRaw(value, nbytes)
		if err := dict.WriteOrigin(d.Index, d.Sub, raw); err != nil {
			return err
		}
	}
	return nil
}
