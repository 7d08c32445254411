package sdo

import (
	log "github.com/sirupsen/logrus"

	"github.com/powerlink-go/plstack/pkg/od"
)

// segmentReassembly holds an in-progress inbound segmented WriteByIndex
// transfer, keyed by transaction id.
type segmentReassembly struct {
	index    uint16
	sub      uint8
	total    uint32
	received []byte
}

// Server answers ReadByIndex/WriteByIndex commands against an
// ObjectDictionary. One Server instance handles every session for a node;
// segmented transfers are tracked per transaction id since a session
// carries at most one in-flight command at a time (spec.md §4.4).
type Server struct {
	od      *od.ObjectDictionary
	logger  *log.Entry
	inbound map[uint8]*segmentReassembly
}

// NewServer wraps an ObjectDictionary in the command-layer responder.
func NewServer(dict *od.ObjectDictionary, logger *log.Entry) *Server {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	return &Server{od: dict, logger: logger, inbound: map[uint8]*segmentReassembly{}}
}

// Handle processes one inbound command and returns the response command to
// send back. An OD error is translated into an abort response rather than
// a Go error (spec.md §4.4: "an aborted command closes the transaction but
// not the sequence-layer connection").
func (s *Server) Handle(req *Command) *Command {
	switch req.Header.CommandID {
	case CommandReadByIndex:
		return s.handleRead(req)
	case CommandWriteByIndex:
		return s.handleWrite(req)
	default:
		return abortResponse(req, AbortCommandInvalid)
	}
}

func (s *Server) handleRead(req *Command) *Command {
	rreq, err := DecodeReadByIndexRequest(req.Payload)
	if err != nil {
		return abortResponse(req, AbortGeneral)
	}
	buf := make([]byte, 4096)
	n, err := s.od.ReadRaw(rreq.Index, rreq.SubIndex, buf)
	if err != nil {
		s.logger.WithFields(log.Fields{"index": rreq.Index, "sub": rreq.SubIndex}).Warn("sdo read failed")
		return abortResponse(req, FromPlerr(err))
	}
	data := buf[:n]

	if len(data) <= maxExpeditedPayload {
		return &Command{
			Header:  CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, CommandID: CommandReadByIndex, Segmentation: SegExpedited},
			Payload: data,
		}
	}
	total := uint32(len(data))
	return &Command{
		Header:   CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, CommandID: CommandReadByIndex, Segmentation: SegInitiate},
		DataSize: &total,
		Payload:  data[:maxExpeditedPayload],
	}
}

func (s *Server) handleWrite(req *Command) *Command {
	switch req.Header.Segmentation {
	case SegExpedited:
		wreq, err := DecodeWriteByIndexRequest(req.Payload)
		if err != nil {
			return abortResponse(req, AbortGeneral)
		}
		if err := s.od.Write(wreq.Index, wreq.SubIndex, wreq.Data); err != nil {
			return abortResponse(req, FromPlerr(err))
		}
		return &Command{Header: CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, CommandID: CommandWriteByIndex}}

	case SegInitiate:
		wreq, err := DecodeWriteByIndexRequest(req.Payload)
		if err != nil {
			return abortResponse(req, AbortGeneral)
		}
		total := uint32(0)
		if req.DataSize != nil {
			total = *req.DataSize
		}
		s.inbound[req.Header.TransactionID] = &segmentReassembly{
			index: wreq.Index, sub: wreq.SubIndex, total: total,
			received: append([]byte(nil), wreq.Data...),
		}
		return &Command{Header: CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, CommandID: CommandWriteByIndex, Segmentation: SegInitiate}}

	case SegSegment, SegComplete:
		r, ok := s.inbound[req.Header.TransactionID]
		if !ok {
			return abortResponse(req, AbortCommandInvalid)
		}
		r.received = append(r.received, req.Payload...)
		if req.Header.Segmentation != SegComplete {
			return &Command{Header: CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, CommandID: CommandWriteByIndex, Segmentation: SegSegment}}
		}
		delete(s.inbound, req.Header.TransactionID)
		if err := s.od.Write(r.index, r.sub, r.received); err != nil {
			return abortResponse(req, FromPlerr(err))
		}
		return &Command{Header: CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, CommandID: CommandWriteByIndex, Segmentation: SegComplete}}

	default:
		return abortResponse(req, AbortCommandInvalid)
	}
}

func abortResponse(req *Command, code AbortCode) *Command {
	payload := make([]byte, 4)
	v := uint32(code)
	payload[0] = byte(v)
	payload[1] = byte(v >> 8)
	payload[2] = byte(v >> 16)
	payload[3] = byte(v >> 24)
	return &Command{
		Header:  CommandHeader{TransactionID: req.Header.TransactionID, IsResponse: true, IsAborted: true, CommandID: req.Header.CommandID},
		Payload: payload,
	}
}
