package pdo

import (
	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/plerr"
)

// rawToUint64 interprets b as a little-endian unsigned integer, zero-padded.
// Mirrors the teacher's od_variable.go LE decode idiom but works on a plain
// byte slice since the PDO engine only needs bit patterns, not typed
// values.
func rawToUint64(b []byte) uint64 {
	var v uint64
	for i, by := range b {
		if i >= 8 {
			break
		}
		v |= uint64(by) << uint(8*i)
	}
	return v
}

// uint64ToRaw packs v into n little-endian bytes.
func uint64ToRaw(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> uint(8*i))
	}
	return b
}

// ProjectToFrame serialises every descriptor of a TPDO channel into buf,
// which must already be sized to at least byteLen(ch.TotalBits)
// (spec.md §4.3 project_to_frame).
func ProjectToFrame(buf []byte, ch *Channel, dict *od.ObjectDictionary) error {
	if ch.IsRPDO {
		return plerr.New(plerr.CodeInternal, "ProjectToFrame called on RPDO channel")
	}
	need := byteLen(ch.TotalBits)
	if len(buf) < need {
		return plerr.New(plerr.CodeBufferTooShort, "frame payload too small for mapped TPDO")
	}
	for _, d := range ch.Descriptors {
		if d.Index == 0 {
			continue // dummy padding, nothing to project
		}
		entry := dict.Index(d.Index)
		if entry == nil {
			return plerr.NewOD(plerr.CodeObjectNotFound, d.Index, d.Sub, "")
		}
		variable, err := entry.Sub(d.Sub)
		if err != nil {
			return err
		}
		value := rawToUint64(variable.Raw())
		bitOffset := int(d.ByteOffset)*8 + int(d.BitOffset)
		writeBits(buf, bitOffset, d.BitLength, value)
	}
	return nil
}
