//go:build linux

package eth

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	plframe "github.com/powerlink-go/plstack/pkg/frame"
)

func init() {
	RegisterInterface("afpacket", NewAFPacketBus)
}

// htons converts a host-order uint16 to network byte order, the same
// conversion socketcanv3's bind path performs for CAN_RAW protocol
// numbers, needed here for the AF_PACKET protocol argument.
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// AFPacketBus is a raw-Ethernet Bus backed by an AF_PACKET SOCK_RAW
// socket bound to EtherType 0x88AB, grounded on
// pkg/can/socketcanv2/socketcanv2.go's AF_CAN raw-socket-plus-bind shape
// (swap CAN_RAW for ETH_P_PLINK-equivalent, swap SockaddrCAN for
// SockaddrLinklayer).
type AFPacketBus struct {
	fd     int
	nodeID uint8
	mac    plframe.MAC
}

// NewAFPacketBus opens a promiscuous, non-blocking raw socket on ifaceName
// filtered to POWERLINK's EtherType (spec.md §6: "required promiscuous
// reception of EtherType 0x88AB plus ARP").
func NewAFPacketBus(ifaceName string, nodeID uint8) (Bus, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, err
	}

	proto := htons(plframe.EtherTypePowerlink)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("eth: failed to create AF_PACKET socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eth: failed to set non-blocking: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eth: failed to bind: %w", err)
	}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &unix.PacketMreq{
		Ifindex: int32(iface.Index),
		Type:    unix.PACKET_MR_PROMISC,
	}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eth: failed to enable promiscuous mode: %w", err)
	}

	var mac plframe.MAC
	copy(mac[:], iface.HardwareAddr)

	return &AFPacketBus{fd: fd, nodeID: nodeID, mac: mac}, nil
}

// SendFrame transmits one frame, matching the teacher's direct raw-socket
// Write call (socketcanv2.go's SocketcanBus.Send).
func (b *AFPacketBus) SendFrame(data []byte) error {
	_, err := syscall.Write(b.fd, data)
	return err
}

// RecvFrame polls the socket once: EAGAIN/EWOULDBLOCK is translated to
// ok=false, never an error, matching spec.md §6's "recv_frame -> Some(len)
// | None | io_error" contract.
func (b *AFPacketBus) RecvFrame(buf []byte) (int, bool, error) {
	n, err := syscall.Read(b.fd, buf)
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

func (b *AFPacketBus) LocalNodeID() uint8    { return b.nodeID }
func (b *AFPacketBus) LocalMAC() plframe.MAC { return b.mac }

func (b *AFPacketBus) Close() error {
	return unix.Close(b.fd)
}
