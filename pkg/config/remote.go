package config

import (
	"encoding/binary"
	"fmt"

	"github.com/powerlink-go/plstack/pkg/od"
	"github.com/powerlink-go/plstack/pkg/sdo"
)

// RemoteConfigurator issues SDO reads/writes against a single node's
// well-known objects: identity/version diagnostics (0x1018) and PDO
// mapping object read/write (0x1600../0x1A00..). CobId/TransmissionType/
// InhibitTime/EventTimer-style comm-record fields have no POWERLINK
// meaning under the fixed SoC/PReq/PRes cycle and are not exposed here.
type RemoteConfigurator struct {
	client *sdo.Client
	nodeID uint8
}

// NewRemoteConfigurator wraps an established SDO client for one node.
func NewRemoteConfigurator(nodeID uint8, client *sdo.Client) *RemoteConfigurator {
	return &RemoteConfigurator{client: client, nodeID: nodeID}
}

// Identity mirrors nmt.Identity's field set as a separate type: the boot
// coordinator (pkg/boot) consumes nmt.Identity from the ident-response ASnd
// shortcut, while this type is for operator-facing SDO diagnostics.
type Identity struct {
	VendorID    uint32
	ProductCode uint32
	RevisionNo  uint32
	SerialNo    uint32
}

// ReadIdentity reads the four sub-entries of 0x1018.
func (c *RemoteConfigurator) ReadIdentity() (Identity, error) {
	vendor, err := c.readUint32(od.IdxIdentity, 1)
	if err != nil {
		return Identity{}, fmt.Errorf("config: read vendor id: %w", err)
	}
	product, err := c.readUint32(od.IdxIdentity, 2)
	if err != nil {
		return Identity{}, fmt.Errorf("config: read product code: %w", err)
	}
	revision, err := c.readUint32(od.IdxIdentity, 3)
	if err != nil {
		return Identity{}, fmt.Errorf("config: read revision number: %w", err)
	}
	serial, err := c.readUint32(od.IdxIdentity, 4)
	if err != nil {
		return Identity{}, fmt.Errorf("config: read serial number: %w", err)
	}
	return Identity{VendorID: vendor, ProductCode: product, RevisionNo: revision, SerialNo: serial}, nil
}

// ReadMappingCount reads sub-index 0 (NrOfEntries) of a PDO mapping object.
func (c *RemoteConfigurator) ReadMappingCount(mappingIndex uint16) (uint8, error) {
	raw, err := c.client.ReadByIndex(mappingIndex, 0)
	if err != nil {
		return 0, fmt.Errorf("config: read mapping count: %w", err)
	}
	if len(raw) < 1 {
		return 0, fmt.Errorf("config: short mapping count response")
	}
	return raw[0], nil
}

// ReadMapping reads one packed (index, sub, bitLength) mapping parameter,
// one sub-entry per call to match Client.ReadByIndex's shape.
func (c *RemoteConfigurator) ReadMapping(mappingIndex uint16, sub uint8) (index uint16, subIndex uint8, bitLength uint16, err error) {
	raw, err := c.client.ReadByIndex(mappingIndex, sub)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("config: read mapping %04Xsub%d: %w", mappingIndex, sub, err)
	}
	param := paddedUint64(raw)
	index = uint16(param >> 24)
	subIndex = uint8(param >> 16)
	bitLength = uint16(param)
	return index, subIndex, bitLength, nil
}

// WriteMapping writes one packed mapping parameter, the remote-configuration
// counterpart of pkg/pdo's packMapParam layout. Callers must clear the
// mapping's NrOfEntries (sub-index 0) to 0 before reconfiguring sub-entries
// and restore it afterward: PDO mapping objects only accept writes to their
// sub-entries while disabled.
func (c *RemoteConfigurator) WriteMapping(mappingIndex uint16, sub uint8, index uint16, subIndex uint8, bitLength uint16) error {
	param := uint64(index)<<24 | uint64(subIndex)<<16 | uint64(bitLength)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, param)
	if err := c.client.WriteByIndex(mappingIndex, sub, buf); err != nil {
		return fmt.Errorf("config: write mapping %04Xsub%d: %w", mappingIndex, sub, err)
	}
	return nil
}

// WriteMappingCount sets sub-index 0 (NrOfEntries), enabling or disabling
// the mapping object's currently-configured entries.
func (c *RemoteConfigurator) WriteMappingCount(mappingIndex uint16, count uint8) error {
	if err := c.client.WriteByIndex(mappingIndex, 0, []byte{count}); err != nil {
		return fmt.Errorf("config: write mapping count: %w", err)
	}
	return nil
}

func (c *RemoteConfigurator) readUint32(index uint16, sub uint8) (uint32, error) {
	raw, err := c.client.ReadByIndex(index, sub)
	if err != nil {
		return 0, err
	}
	return uint32(paddedUint64(raw)), nil
}

func paddedUint64(raw []byte) uint64 {
	var padded [8]byte
	copy(padded[:], raw)
	return binary.LittleEndian.Uint64(padded[:])
}
