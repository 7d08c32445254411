// Package eth implements the raw Ethernet driver external interface of
// spec.md §6: a non-blocking send_frame/recv_frame capability boundary
// over EtherType 0x88AB, plus a registry of named backend constructors
// grounded on the teacher's pkg/can/bus.go `RegisterInterface`/`NewBus`
// pattern (CAN bus selection generalised to raw-Ethernet backend
// selection).
package eth

import (
	"fmt"

	"github.com/powerlink-go/plstack/pkg/frame"
)

// Bus is the raw Ethernet capability the DLL cycle engine polls, mirrored
// from original_source/hal.rs's NetworkInterface shape (send_frame,
// receive_frame, local_node_id, local_mac_address), spec.md §6.
type Bus interface {
	// SendFrame transmits one already-encoded frame. It must not block the
	// caller for longer than a bounded I/O timeout (spec.md §5).
	SendFrame(data []byte) error
	// RecvFrame polls for one inbound frame without blocking: ok=false
	// means none was available this call, not an error.
	RecvFrame(buf []byte) (n int, ok bool, err error)
	LocalNodeID() uint8
	LocalMAC() frame.MAC
	Close() error
}

// NewBusFunc constructs a Bus bound to the named network interface
// (e.g. "eth0").
type NewBusFunc func(ifaceName string, nodeID uint8) (Bus, error)

var registry = make(map[string]NewBusFunc)

// RegisterInterface registers a named Bus backend, called from an init()
// in the backend's file (matching the teacher's plugin-registration
// idiom).
func RegisterInterface(name string, newBus NewBusFunc) {
	registry[name] = newBus
}

// NewBus looks up a registered backend by name and constructs it.
func NewBus(name, ifaceName string, nodeID uint8) (Bus, error) {
	newBus, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("eth: unregistered backend %q", name)
	}
	return newBus(ifaceName, nodeID)
}
