package sdo

import (
	"encoding/binary"

	"github.com/powerlink-go/plstack/pkg/plerr"
)

// CommandID identifies the mandatory SDO commands spec.md §4.4 names
// (DS 301 Table 58). Grounded on original_source/sdo/command.rs's
// CommandId enum.
type CommandID uint8

const (
	CommandNil CommandID = iota
	CommandWriteByIndex
	CommandReadByIndex
)

// Segmentation is the segmentation state of a command layer frame
// (DS 301 Table 55): a payload that fits in one sequence-layer frame is
// Expedited; otherwise it is segmented Initiate -> Segment* -> Complete.
type Segmentation uint8

const (
	SegExpedited Segmentation = iota
	SegInitiate
	SegSegment
	SegComplete
)

// cmdHeaderLen is the fixed portion of the command layer header (DS 301
// Table 54): reserved, transaction id, flags, command id, segment size.
const cmdHeaderLen = 8

// CommandHeader is the command layer's fixed header.
type CommandHeader struct {
	TransactionID uint8
	IsResponse    bool
	IsAborted     bool
	Segmentation  Segmentation
	CommandID     CommandID
	SegmentSize   uint16
}

// Command is a full command layer frame: header, an optional total data
// size (present only on a segmented Initiate), and payload.
type Command struct {
	Header   CommandHeader
	DataSize *uint32
	Payload  []byte
}

// Encode serialises the command per original_source/sdo/command.rs's wire
// layout.
func (c *Command) Encode() []byte {
	size := cmdHeaderLen
	if c.DataSize != nil {
		size += 4
	}
	size += len(c.Payload)
	b := make([]byte, size)

	b[0] = 0 // reserved
	b[1] = c.Header.TransactionID
	flags := uint8(0)
	if c.Header.IsResponse {
		flags |= 1 << 7
	}
	if c.Header.IsAborted {
		flags |= 1 << 6
	}
	flags |= uint8(c.Header.Segmentation) << 4
	b[2] = flags
	b[3] = uint8(c.Header.CommandID)
	binary.LittleEndian.PutUint16(b[4:6], c.Header.SegmentSize)
	// b[6:8] reserved, already zero

	offset := cmdHeaderLen
	if c.DataSize != nil {
		binary.LittleEndian.PutUint32(b[offset:offset+4], *c.DataSize)
		offset += 4
	}
	copy(b[offset:], c.Payload)
	return b
}

// DecodeCommand parses a command layer frame.
func DecodeCommand(b []byte) (*Command, error) {
	if len(b) < cmdHeaderLen {
		return nil, plerr.New(plerr.CodeTruncatedFrame, "command header")
	}
	flags := b[2]
	segmentation := Segmentation((flags >> 4) & 0x03)
	header := CommandHeader{
		TransactionID: b[1],
		IsResponse:    flags&(1<<7) != 0,
		IsAborted:     flags&(1<<6) != 0,
		Segmentation:  segmentation,
		CommandID:     CommandID(b[3]),
		SegmentSize:   binary.LittleEndian.Uint16(b[4:6]),
	}

	offset := cmdHeaderLen
	var dataSize *uint32
	if segmentation == SegInitiate {
		if len(b) < cmdHeaderLen+4 {
			return nil, plerr.New(plerr.CodeTruncatedFrame, "segmented initiate data size")
		}
		v := binary.LittleEndian.Uint32(b[cmdHeaderLen : cmdHeaderLen+4])
		dataSize = &v
		offset = cmdHeaderLen + 4
	}

	payload := append([]byte(nil), b[offset:]...)
	return &Command{Header: header, DataSize: dataSize, Payload: payload}, nil
}

// ReadByIndexRequest is the payload shape of a ReadByIndex command
// (DS 301 Table 61).
type ReadByIndexRequest struct {
	Index    uint16
	SubIndex uint8
}

func DecodeReadByIndexRequest(payload []byte) (ReadByIndexRequest, error) {
	if len(payload) < 4 {
		return ReadByIndexRequest{}, plerr.New(plerr.CodeTruncatedFrame, "read by index request")
	}
	return ReadByIndexRequest{Index: binary.LittleEndian.Uint16(payload[0:2]), SubIndex: payload[2]}, nil
}

func (r ReadByIndexRequest) Encode() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint16(b[0:2], r.Index)
	b[2] = r.SubIndex
	return b
}

// WriteByIndexRequest is the payload shape of a WriteByIndex command
// (DS 301 Table 59).
type WriteByIndexRequest struct {
	Index    uint16
	SubIndex uint8
	Data     []byte
}

func DecodeWriteByIndexRequest(payload []byte) (WriteByIndexRequest, error) {
	if len(payload) < 4 {
		return WriteByIndexRequest{}, plerr.New(plerr.CodeTruncatedFrame, "write by index request")
	}
	return WriteByIndexRequest{
		Index:    binary.LittleEndian.Uint16(payload[0:2]),
		SubIndex: payload[2],
		Data:     append([]byte(nil), payload[4:]...),
	}, nil
}

func (w WriteByIndexRequest) Encode() []byte {
	b := make([]byte, 4+len(w.Data))
	binary.LittleEndian.PutUint16(b[0:2], w.Index)
	b[2] = w.SubIndex
	copy(b[4:], w.Data)
	return b
}
