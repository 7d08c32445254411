package boot

import (
	"encoding/binary"

	"github.com/powerlink-go/plstack/pkg/plerr"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// cdcEntry is one (index, sub-index, data) tuple of a Concise Device
// Configuration stream (original_source/hal.rs's ConfigurationInterface),
// wire shape: index (2 bytes LE), sub-index (1 byte), size (2 bytes LE),
// data (size bytes).
type cdcEntry struct {
	Index uint16
	Sub   uint8
	Data  []byte
}

// EncodeCDC packs entries into a single CDC byte stream, the shape
// ConfigurationProvider.Configuration returns.
func EncodeCDC(entries []cdcEntry) []byte {
	var buf []byte
	for _, e := range entries {
		header := make([]byte, 5)
		binary.LittleEndian.PutUint16(header[0:2], e.Index)
		header[2] = e.Sub
		binary.LittleEndian.PutUint16(header[3:5], uint16(len(e.Data)))
		buf = append(buf, header...)
		buf = append(buf, e.Data...)
	}
	return buf
}

// decodeCDC unpacks a CDC byte stream into its entries.
func decodeCDC(b []byte) ([]cdcEntry, error) {
	var entries []cdcEntry
	for len(b) > 0 {
		if len(b) < 5 {
			return nil, plerr.New(plerr.CodeTruncatedFrame, "boot: truncated cdc entry header")
		}
		index := binary.LittleEndian.Uint16(b[0:2])
		sub := b[2]
		size := int(binary.LittleEndian.Uint16(b[3:5]))
		b = b[5:]
		if len(b) < size {
			return nil, plerr.New(plerr.CodeTruncatedFrame, "boot: truncated cdc entry data")
		}
		entries = append(entries, cdcEntry{Index: index, Sub: sub, Data: append([]byte(nil), b[:size]...)})
		b = b[size:]
	}
	return entries, nil
}

// pushConfiguration streams every CDC entry to the CN via SDO WriteByIndex
// commands, in order (spec.md §4.8 phase 3).
func pushConfiguration(client *sdo.Client, cdc []byte) error {
	if len(cdc) == 0 {
		return nil
	}
	entries, err := decodeCDC(cdc)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := client.WriteByIndex(e.Index, e.Sub, e.Data); err != nil {
			return err
		}
	}
	return nil
}
