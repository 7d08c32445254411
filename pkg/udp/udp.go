// Package udp implements the UDP driver external interface of spec.md §6:
// SDO command/sequence traffic framed in UDP datagrams on port 3819, over
// POWERLINK's fixed Class-C default subnet 192.168.100.0/24 where a node's
// last IP octet equals its POWERLINK Node ID. Bus satisfies pkg/sdo's
// Transport interface directly, so the SDO command layer built in the
// earlier session rides over it unchanged (spec.md §4.4: "the transport
// adapter injects the source/destination identifiers; the command layer
// is unaware").
package udp

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// Port is the fixed UDP port POWERLINK reserves for SDO traffic.
const Port = 3819

// Subnet is POWERLINK's fixed default Class-C subnet; NodeAddr derives a
// peer's IP from it by substituting the last octet with the Node ID.
var Subnet = net.IPv4(192, 168, 100, 0)

// NodeAddr returns the conventional POWERLINK UDP address for nodeID:
// 192.168.100.<nodeID>:3819.
func NodeAddr(nodeID uint8) *net.UDPAddr {
	ip := make(net.IP, len(Subnet.To4()))
	copy(ip, Subnet.To4())
	ip[3] = nodeID
	return &net.UDPAddr{IP: ip, Port: Port}
}

// Bus is a UDP-backed pkg/sdo.Transport plus the non-blocking recv_udp
// capability spec.md §6 names for the driver boundary (send_udp/recv_udp
// generalised into Go method names).
type Bus struct {
	conn   *net.UDPConn
	nodeID uint8
	logger *log.Entry
}

// NewBus opens a UDP socket bound to this node's conventional address
// (192.168.100.<nodeID>:3819). RecvFrame gives each call a short read
// deadline for its poll contract.
func NewBus(nodeID uint8, logger *log.Entry) (*Bus, error) {
	if logger == nil {
		l := log.New()
		l.SetLevel(log.PanicLevel)
		logger = log.NewEntry(l)
	}
	conn, err := net.ListenUDP("udp4", NodeAddr(nodeID))
	if err != nil {
		return nil, fmt.Errorf("udp: failed to bind node %d: %w", nodeID, err)
	}
	if err := conn.SetReadBuffer(1 << 16); err != nil {
		logger.WithError(err).Warn("udp: failed to widen read buffer")
	}
	return &Bus{conn: conn, nodeID: nodeID, logger: logger}, nil
}

// Send implements sdo.Transport: peer is the destination Node ID
// formatted as a decimal string (e.g. "5"), resolved to its conventional
// 192.168.100.<id>:3819 address.
func (b *Bus) Send(peer string, payload []byte) error {
	var peerID uint8
	if _, err := fmt.Sscanf(peer, "%d", &peerID); err != nil {
		return fmt.Errorf("udp: invalid peer %q: %w", peer, err)
	}
	_, err := b.conn.WriteToUDP(payload, NodeAddr(peerID))
	return err
}

// RecvFrame polls for one inbound datagram without blocking: ok=false
// means none was available this call, matching spec.md §6's
// "recv_udp -> Some((src_ip, src_port, len)) | None | io_error".
func (b *Bus) RecvFrame(buf []byte) (n int, srcIP net.IP, srcPort int, ok bool, err error) {
	if err := b.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, nil, 0, false, err
	}
	n, addr, err := b.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
			return 0, nil, 0, false, nil
		}
		return 0, nil, 0, false, err
	}
	return n, addr.IP, addr.Port, true, nil
}

func (b *Bus) LocalNodeID() uint8 { return b.nodeID }

func (b *Bus) Close() error { return b.conn.Close() }
