package network

import (
	"sync"

	"github.com/powerlink-go/plstack/pkg/frame"
)

// virtualMedium is an in-memory shared Ethernet segment for tests,
// grounded on the teacher's pkg/can/virtual.VirtualCanBus (a loopback bus
// keyed by a shared name/address instead of a real socket): every
// virtualBus attached to the same medium receives every frame sent by any
// other attached bus, mirroring a real POWERLINK segment's broadcast
// domain without needing root or a live NIC.
type virtualMedium struct {
	mu   sync.Mutex
	subs []*virtualBus
}

func newVirtualMedium() *virtualMedium {
	return &virtualMedium{}
}

func (m *virtualMedium) attach(b *virtualBus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, b)
}

func (m *virtualMedium) send(from *virtualBus, data []byte) {
	frameCopy := append([]byte(nil), data...)
	m.mu.Lock()
	subs := append([]*virtualBus(nil), m.subs...)
	m.mu.Unlock()
	for _, sub := range subs {
		if sub == from {
			continue
		}
		sub.deliver(frameCopy)
	}
}

// virtualBus implements pkg/eth.Bus over a virtualMedium.
type virtualBus struct {
	medium *virtualMedium
	nodeID uint8
	mac    frame.MAC

	mu    sync.Mutex
	queue [][]byte
}

func newVirtualBus(medium *virtualMedium, nodeID uint8) *virtualBus {
	b := &virtualBus{medium: medium, nodeID: nodeID, mac: frame.MAC{0, 0, 0, 0, 0, nodeID}}
	medium.attach(b)
	return b
}

func (b *virtualBus) deliver(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, data)
}

func (b *virtualBus) SendFrame(data []byte) error {
	b.medium.send(b, data)
	return nil
}

func (b *virtualBus) RecvFrame(buf []byte) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return 0, false, nil
	}
	next := b.queue[0]
	b.queue = b.queue[1:]
	n := copy(buf, next)
	return n, true, nil
}

func (b *virtualBus) LocalNodeID() uint8    { return b.nodeID }
func (b *virtualBus) LocalMAC() frame.MAC   { return b.mac }
func (b *virtualBus) Close() error          { return nil }
