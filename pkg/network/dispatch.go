package network

import (
	"errors"
	"time"

	"github.com/powerlink-go/plstack/pkg/dll"
	"github.com/powerlink-go/plstack/pkg/frame"
	"github.com/powerlink-go/plstack/pkg/nmt"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// responseTimeout bounds how long the MN waits for a CN's PRes or ASnd
// before treating the slot as missed (spec.md §4.5 step 2's per-node
// timeout).
const responseTimeout = 5 * time.Millisecond

// errShortIdentResponse is returned when an inbound IdentResponse payload
// is too short to carry the vendor/product/revision/serial quadruple.
var errShortIdentResponse = errors.New("network: short IdentResponse payload")

// mnCycle drives exactly one full isochronous+asynchronous cycle: emit
// SoC, poll every continuous/multiplexed CN in order, optionally emit the
// MN's own PRes, then run one async-phase slot, all per spec.md §4.5's
// per-cycle algorithm.
func (n *Network) mnCycle(buf []byte) {
	n.MNEngine.StartCycle()
	if err := n.bus.SendFrame(n.buildSoC()); err != nil {
		n.logger.WithError(err).Warn("network: failed to send SoC")
		return
	}

	for {
		action, err := n.MNEngine.Next()
		if err != nil {
			n.logger.WithError(err).Warn("network: cycle engine error")
			return
		}
		switch action.Kind {
		case dll.ActionNone:
			n.Boot.Tick()
			return

		case dll.ActionSendPReq:
			preq := &frame.PReq{
				Header:  frame.Header{PlDest: frame.NodeID(action.NodeID), PlSource: frame.NodeIDMN},
				Payload: action.Data,
			}
			if err := n.bus.SendFrame(preq.Encode()); err != nil {
				n.logger.WithError(err).Warn("network: failed to send PReq")
				continue
			}
			pres, ok := n.awaitPRes(buf, action.NodeID)
			if !ok {
				n.MNEngine.HandlePResTimeout()
				continue
			}
			if err := n.MNEngine.HandlePRes(action.NodeID, pres); err != nil {
				n.logger.WithError(err).Warn("network: failed to apply PRes")
			}

		case dll.ActionSendOwnPRes:
			pres := &frame.PRes{
				Header:     frame.Header{Destination: frame.MulticastPRes, PlDest: frame.NodeIDBroadcast, PlSource: frame.NodeIDMN},
				NMTStatus:  n.MNMachine.CurrentState().WireByte(),
				PDOVersion: 0,
				Payload:    action.Data,
			}
			if err := n.bus.SendFrame(pres.Encode()); err != nil {
				n.logger.WithError(err).Warn("network: failed to send own PRes")
			}

		case dll.ActionSendSoA:
			target := frame.NodeID(action.NodeID)
			svc := action.Queue.Service()
			if target == frame.NodeIDInvalid {
				svc = frame.ServiceNoService
			}
			soa := &frame.SoA{
				Header:             frame.Header{PlDest: frame.NodeIDBroadcast, PlSource: frame.NodeIDMN},
				NMTStatus:          n.MNMachine.CurrentState().WireByte(),
				RequestedServiceID: svc,
				RequestedTarget:    target,
			}
			if err := n.bus.SendFrame(soa.Encode()); err != nil {
				n.logger.WithError(err).Warn("network: failed to send SoA")
				continue
			}
			if target == frame.NodeIDInvalid {
				continue
			}
			// Generic is MN-originated (spec.md §4.5.1): the MN sends its
			// own ASnd in the reserved slot instead of awaiting one from
			// the target, used by the boot coordinator's phase 4 NMT
			// commands (spec.md §4.8).
			if action.Queue == dll.QueueGeneric {
				if cmd, ok := n.Boot.NextCommandFor(uint8(target)); ok {
					asnd := &frame.ASnd{
						Header:    frame.Header{Destination: frame.MulticastASnd, PlDest: target, PlSource: frame.NodeIDMN},
						ServiceID: frame.ServiceIDNMTCommand,
						Payload:   nmt.EncodeCommandPayload(cmd, uint8(target)),
					}
					if err := n.bus.SendFrame(asnd.Encode()); err != nil {
						n.logger.WithError(err).Warn("network: failed to send NMT command")
					}
				}
				continue
			}
			if asnd, ok := n.awaitASnd(buf, action.NodeID); ok {
				n.handleAsyncResponse(asnd)
			}
		}
	}
}

// awaitPRes polls the bus until a PRes from nodeID arrives or
// responseTimeout elapses.
func (n *Network) awaitPRes(buf []byte, nodeID uint8) (*frame.PRes, bool) {
	deadline := time.Now().Add(responseTimeout)
	for time.Now().Before(deadline) {
		nread, ok, err := n.bus.RecvFrame(buf)
		if err != nil || !ok {
			continue
		}
		decoded, err := frame.Decode(buf[:nread])
		if err != nil {
			continue
		}
		if pres, isPres := decoded.(*frame.PRes); isPres && uint8(pres.Header.PlSource) == nodeID {
			return pres, true
		}
	}
	return nil, false
}

// awaitASnd polls the bus until an ASnd from nodeID arrives or
// responseTimeout elapses.
func (n *Network) awaitASnd(buf []byte, nodeID uint8) (*frame.ASnd, bool) {
	deadline := time.Now().Add(responseTimeout)
	for time.Now().Before(deadline) {
		nread, ok, err := n.bus.RecvFrame(buf)
		if err != nil || !ok {
			continue
		}
		decoded, err := frame.Decode(buf[:nread])
		if err != nil {
			continue
		}
		if asnd, isAsnd := decoded.(*frame.ASnd); isAsnd && uint8(asnd.Header.PlSource) == nodeID {
			return asnd, true
		}
	}
	return nil, false
}

// handleAsyncResponse routes an ASnd received during the MN's own async
// phase: SDO traffic goes to the originating RemoteNode's client session,
// IdentResponse goes to the boot coordinator.
func (n *Network) handleAsyncResponse(asnd *frame.ASnd) {
	nodeID := uint8(asnd.Header.PlSource)
	switch asnd.ServiceID {
	case frame.ServiceIDIdentResponse:
		identity, err := decodeIdentResponse(asnd.Payload)
		if err != nil {
			n.logger.WithError(err).Warn("network: malformed IdentResponse")
			return
		}
		if err := n.Boot.HandleIdentResponse(nodeID, identity); err != nil {
			n.logger.WithError(err).WithField("node", nodeID).Warn("network: ident response rejected")
		}
	case frame.ServiceIDSDO:
		if rn := n.remoteNode(nodeID); rn != nil && rn.Session != nil && len(asnd.Payload) > sdo.SeqHeaderLen {
			if cmd, err := sdo.DecodeCommand(asnd.Payload[sdo.SeqHeaderLen:]); err == nil {
				rn.Session.Deliver(cmd)
			}
		}
	}
}

// handleInbound decodes one raw frame and routes it into the CN's own
// cycle engine and SDO server (Run's CN receive loop).
func (n *Network) handleInbound(data []byte) error {
	decoded, err := frame.Decode(data)
	if err != nil {
		return err
	}

	switch f := decoded.(type) {
	case *frame.SoC:
		n.Local.Engine.HandleSoC(f)

	case *frame.PReq:
		if f.Header.PlDest != frame.NodeID(n.Local.NodeID) && f.Header.PlDest != frame.NodeIDBroadcast {
			return nil
		}
		result, err := n.Local.Engine.HandlePReq(f)
		if err != nil {
			return err
		}
		if result.Action == dll.CNActionSendPRes {
			return n.bus.SendFrame(result.Data)
		}

	case *frame.SoA:
		asndPayload, serviceID := n.buildOutgoingASnd(f)
		result := n.Local.Engine.HandleSoA(f, asndPayload, serviceID)
		if result.Action == dll.CNActionSendASnd {
			return n.bus.SendFrame(result.Data)
		}

	case *frame.ASnd:
		if f.ServiceID == frame.ServiceIDSDO && f.Header.PlDest == frame.NodeID(n.Local.NodeID) {
			return n.handleInboundSDO(f)
		}
		if f.ServiceID == frame.ServiceIDNMTCommand {
			cmd, target, ok := nmt.DecodeCommandPayload(f.Payload)
			if !ok {
				return nil
			}
			if target == n.Local.NodeID || target == 0 {
				return n.Local.NMT.Process(cmd.ToEvent())
			}
		}
	}
	return nil
}

// buildOutgoingASnd decides what this CN answers with when an SoA invites
// it: an IdentResponse for ServiceIdentRequest, or nothing (the pending
// SDO server reply, if any, already went out via handleInboundSDO's direct
// send — POWERLINK's SoA/ASnd pairing only reserves the slot).
func (n *Network) buildOutgoingASnd(soa *frame.SoA) ([]byte, frame.ASndServiceID) {
	if soa.RequestedServiceID == frame.ServiceIdentRequest {
		return encodeIdentResponse(n.Local.Dict), frame.ServiceIDIdentResponse
	}
	return nil, frame.ServiceIDNMTRequest
}

func (n *Network) handleInboundSDO(f *frame.ASnd) error {
	if len(f.Payload) < sdo.SeqHeaderLen {
		return nil
	}
	cmd, err := sdo.DecodeCommand(f.Payload[sdo.SeqHeaderLen:])
	if err != nil {
		return err
	}
	resp := n.Local.Server.Handle(cmd)
	asnd := &frame.ASnd{
		Header:    frame.Header{Destination: frame.MulticastASnd, PlDest: f.Header.PlSource, PlSource: frame.NodeID(n.Local.NodeID)},
		ServiceID: frame.ServiceIDSDO,
		Payload:   append(sdo.SequenceHeader{SendCon: sdo.SConConnectionValid}.Encode(), resp.Encode()...),
	}
	return n.bus.SendFrame(asnd.Encode())
}

// buildSoC composes the SoC frame for the current cycle, stamping the
// network time base from the local monotonic clock (spec.md §4.5 step 1;
// a real deployment sources NetTime from a synchronised clock, out of
// scope here per spec.md §2's "clock source" exclusion).
func (n *Network) buildSoC() []byte {
	now := time.Now()
	soc := &frame.SoC{
		Header:      frame.Header{Destination: frame.MulticastSoC, PlDest: frame.NodeIDBroadcast, PlSource: frame.NodeIDMN},
		NetTimeSec:  uint32(now.Unix()),
		NetTimeNsec: uint32(now.Nanosecond()),
	}
	return soc.Encode()
}

// encodeIdentResponse builds the minimal IdentResponse ASnd payload
// (vendor/product/revision/serial from 0x1018), the fields the boot
// coordinator's ExpectedIdentity check consumes.
func encodeIdentResponse(dict interface {
	Read(index uint16, sub uint8) (any, error)
}) []byte {
	read := func(sub uint8) uint32 {
		v, err := dict.Read(0x1018, sub)
		if err != nil {
			return 0
		}
		if u, ok := v.(uint64); ok {
			return uint32(u)
		}
		return 0
	}
	buf := make([]byte, 16)
	putU32(buf[0:4], read(1))
	putU32(buf[4:8], read(2))
	putU32(buf[8:12], read(3))
	putU32(buf[12:16], read(4))
	return buf
}

func decodeIdentResponse(payload []byte) (nmt.Identity, error) {
	if len(payload) < 16 {
		return nmt.Identity{}, errShortIdentResponse
	}
	return nmt.Identity{
		Vendor:   getU32(payload[0:4]),
		Product:  getU32(payload[4:8]),
		Revision: getU32(payload[8:12]),
		Serial:   getU32(payload[12:16]),
	}, nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
