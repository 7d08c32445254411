package sdo

import (
	"github.com/powerlink-go/plstack/pkg/plerr"
)

// maxExpeditedPayload is the largest WriteByIndex/ReadByIndex response
// payload that fits in a single segment, matching the teacher's
// MaxPdoLength-scale reasoning but sized to a UDP/ASnd command frame
// rather than a CAN frame; a payload up to this size is sent Expedited,
// larger payloads are segmented Initiate/Segment/Complete (spec.md §4.4).
const maxExpeditedPayload = 220

// Client issues ReadByIndex/WriteByIndex requests over a Session,
// reassembling segmented transfers transparently.
type Client struct {
	session *Session
}

// NewClient wraps an open Session in the command-layer API.
func NewClient(session *Session) *Client {
	return &Client{session: session}
}

// ReadByIndex fetches the raw value at (index, sub), transparently
// reassembling a segmented transfer.
func (c *Client) ReadByIndex(index uint16, sub uint8) ([]byte, error) {
	req := ReadByIndexRequest{Index: index, SubIndex: sub}
	cmd := &Command{
		Header: CommandHeader{CommandID: CommandReadByIndex, Segmentation: SegExpedited},
		Payload: req.Encode(),
	}
	resp, err := c.session.Enqueue(cmd)
	if err != nil {
		return nil, err
	}

	switch resp.Header.Segmentation {
	case SegExpedited:
		return resp.Payload, nil
	case SegInitiate:
		data := append([]byte(nil), resp.Payload...)
		for {
			contReq := &Command{Header: CommandHeader{CommandID: CommandReadByIndex, Segmentation: SegSegment}}
			part, err := c.session.Enqueue(contReq)
			if err != nil {
				return nil, err
			}
			data = append(data, part.Payload...)
			if part.Header.Segmentation == SegComplete {
				return data, nil
			}
		}
	default:
		return nil, plerr.New(plerr.CodeSdoSequenceError, "unexpected segmentation in response")
	}
}

// WriteByIndex writes raw bytes to (index, sub), segmenting automatically
// when the payload exceeds maxExpeditedPayload.
func (c *Client) WriteByIndex(index uint16, sub uint8, data []byte) error {
	if len(data) <= maxExpeditedPayload {
		req := WriteByIndexRequest{Index: index, SubIndex: sub, Data: data}
		cmd := &Command{
			Header:  CommandHeader{CommandID: CommandWriteByIndex, Segmentation: SegExpedited},
			Payload: req.Encode(),
		}
		if _, err := c.session.Enqueue(cmd); err != nil {
			return err
		}
		return nil
	}

	total := uint32(len(data))
	req := WriteByIndexRequest{Index: index, SubIndex: sub}
	initCmd := &Command{
		Header:   CommandHeader{CommandID: CommandWriteByIndex, Segmentation: SegInitiate},
		DataSize: &total,
		Payload:  req.Encode(),
	}
	if _, err := c.session.Enqueue(initCmd); err != nil {
		return err
	}

	offset := 0
	for offset < len(data) {
		end := offset + maxExpeditedPayload
		seg := SegSegment
		if end >= len(data) {
			end = len(data)
			seg = SegComplete
		}
		segCmd := &Command{
			Header:  CommandHeader{CommandID: CommandWriteByIndex, Segmentation: seg},
			Payload: data[offset:end],
		}
		if _, err := c.session.Enqueue(segCmd); err != nil {
			return err
		}
		offset = end
	}
	return nil
}
